package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/credano/bifrost/core"
	"github.com/credano/bifrost/ports"
)

// RedisStore is a Redis implementation of the SessionStore interface.
// The entry carries a TTL matching the session's expiry so stale sessions
// disappear on their own.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a new Redis session store scoped to one bridge
// instance.
func NewRedisStore(client *redis.Client, instanceID string) ports.SessionStore {
	return &RedisStore{
		client: client,
		key:    "bifrost:session:" + instanceID,
	}
}

type persistedSession struct {
	UserID           string    `json:"user_id"`
	WalletAddress    string    `json:"wallet_address"`
	AccessTokenAlias string    `json:"access_token_alias,omitempty"`
	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	RawToken         string    `json:"raw_token"`
}

// Save persists the session with a TTL bound to its expiry.
func (s *RedisStore) Save(ctx context.Context, session *core.Session) error {
	payload, err := json.Marshal(persistedSession{
		UserID:           session.UserID,
		WalletAddress:    session.WalletAddress,
		AccessTokenAlias: session.AccessTokenAlias,
		IssuedAt:         session.IssuedAt,
		ExpiresAt:        session.ExpiresAt,
		RawToken:         session.RawToken,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return core.ErrSessionExpired
	}

	if err := s.client.Set(ctx, s.key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// Load returns the persisted session or core.ErrNoSession.
func (s *RedisStore) Load(ctx context.Context) (*core.Session, error) {
	payload, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, core.ErrNoSession
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var persisted persistedSession
	if err := json.Unmarshal(payload, &persisted); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	return &core.Session{
		UserID:           persisted.UserID,
		WalletAddress:    persisted.WalletAddress,
		AccessTokenAlias: persisted.AccessTokenAlias,
		IssuedAt:         persisted.IssuedAt,
		ExpiresAt:        persisted.ExpiresAt,
		RawToken:         persisted.RawToken,
	}, nil
}

// Clear removes the persisted session.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
