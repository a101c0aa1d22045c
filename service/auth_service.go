package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/credano/bifrost/core"
	"github.com/credano/bifrost/ports"
	"github.com/credano/bifrost/sessioncodec"
)

// TransactionPurger empties the watched-transaction store. Logout purges
// immediately instead of waiting for the next cleanup sweep.
type TransactionPurger interface {
	Purge()
}

// AuthConfig carries the tunables of the authentication state machine.
type AuthConfig struct {
	// WalletCheckInterval is the cadence of the wallet-switch detector.
	// Polling rather than subscribing is deliberate: some wallet
	// extensions change the active account without emitting any event.
	WalletCheckInterval time.Duration

	// IdentityAssetPrefix distinguishes the identity token among the
	// wallet's assets; the access alias is the asset name's suffix
	// after this prefix.
	IdentityAssetPrefix string
}

const (
	DefaultWalletCheckInterval = 15 * time.Second
	DefaultIdentityAssetPrefix = "222"
)

// AuthService owns the authentication state machine: the challenge
// handshake, session restoration, wallet-switch detection and logout.
// It is the single writer of the session; everything else reads.
type AuthService struct {
	wallet  ports.Wallet
	gateway ports.Gateway
	store   ports.SessionStore
	events  ports.EventPublisher
	purger  TransactionPurger
	logger  *zap.Logger
	cfg     AuthConfig

	mu      sync.Mutex
	status  core.AuthStatus
	session *core.Session
	lastErr error

	// restoring is the synchronous restoration guard. It flips with
	// compare-and-swap inside the same call that starts restoration, so
	// an auto-authenticate trigger can never observe a window where
	// restoration has started but no flag is up yet.
	restoring atomic.Bool

	// restoreDone records that restoration has been attempted at least
	// once; auto-authenticate waits for it.
	restoreDone atomic.Bool

	// authBusy single-flights Authenticate.
	authBusy atomic.Bool
}

// NewAuthService creates the authentication state machine. The purger and
// publisher are optional; pass nil to skip transaction purging on logout
// and lifecycle events respectively.
func NewAuthService(
	wallet ports.Wallet,
	gateway ports.Gateway,
	store ports.SessionStore,
	events ports.EventPublisher,
	purger TransactionPurger,
	logger *zap.Logger,
	cfg AuthConfig,
) *AuthService {
	if cfg.WalletCheckInterval <= 0 {
		cfg.WalletCheckInterval = DefaultWalletCheckInterval
	}
	if cfg.IdentityAssetPrefix == "" {
		cfg.IdentityAssetPrefix = DefaultIdentityAssetPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthService{
		wallet:  wallet,
		gateway: gateway,
		store:   store,
		events:  events,
		purger:  purger,
		logger:  logger.Named("auth"),
		cfg:     cfg,
		status:  core.StatusUnauthenticated,
	}
}

// Status returns the current state and, for the error states, the cause.
func (s *AuthService) Status() (core.AuthStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastErr
}

// CurrentSession returns a copy of the active session, or nil.
func (s *AuthService) CurrentSession() *core.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	copied := *s.session
	return &copied
}

// ReadyToAutoAuthenticate reports whether an auto-authenticate trigger may
// fire: restoration has completed (not merely started) and the machine is
// still unauthenticated.
func (s *AuthService) ReadyToAutoAuthenticate() bool {
	if s.restoring.Load() || !s.restoreDone.Load() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == core.StatusUnauthenticated
}

// Authenticate runs the challenge-response handshake against the
// currently connected wallet. Failures become state, not panics: the
// caller reads Status afterwards and every failure is retryable by
// calling Authenticate again.
func (s *AuthService) Authenticate(ctx context.Context) error {
	if s.restoring.Load() {
		return core.ErrRestoreInProgress
	}
	if !s.authBusy.CompareAndSwap(false, true) {
		return nil
	}
	defer s.authBusy.Store(false)

	s.mu.Lock()
	if s.status == core.StatusAuthenticated {
		s.mu.Unlock()
		return nil
	}
	s.status = core.StatusAuthenticating
	s.lastErr = nil
	s.mu.Unlock()

	session, err := s.handshake(ctx)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.session = session
	s.status = core.StatusAuthenticated
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Info("authenticated",
		zap.String("user_id", session.UserID),
		zap.String("address", session.WalletAddress))

	// Best-effort: pick up an identity alias the wallet already holds.
	s.reconcileAlias(ctx)

	if s.events != nil {
		if err := s.events.PublishLogin(ctx, session.UserID, session.WalletAddress); err != nil {
			s.logger.Warn("failed to publish login event", zap.Error(err))
		}
	}

	return nil
}

// handshake performs the wallet and gateway round trips of Authenticate.
func (s *AuthService) handshake(ctx context.Context) (*core.Session, error) {
	connected, err := s.wallet.Connected(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet connection state: %w", err)
	}
	if !connected {
		return nil, core.ErrWalletNotConnected
	}

	address, err := s.canonicalWalletAddress(ctx)
	if err != nil {
		return nil, err
	}

	nonce, err := s.gateway.Challenge(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain challenge: %w", err)
	}

	signature, err := s.wallet.SignPayload(ctx, []byte(nonce))
	if err != nil {
		if errors.Is(err, core.ErrPopupBlocked) || errors.Is(err, core.ErrSigningDeclined) {
			return nil, err
		}
		return nil, fmt.Errorf("wallet signing failed: %w", err)
	}

	result, err := s.gateway.Exchange(ctx, address, nonce, signature)
	if err != nil {
		return nil, fmt.Errorf("signature exchange failed: %w", err)
	}

	session, err := sessioncodec.SessionFromToken(result.Token, time.Now())
	if err != nil {
		return nil, fmt.Errorf("gateway issued an unusable session token: %w", err)
	}

	// The decoded claims are advisory; the exchange response and the
	// live wallet fill the gaps.
	if session.UserID == "" {
		session.UserID = result.UserID
	}
	if session.WalletAddress == "" {
		session.WalletAddress = address
	}
	if session.AccessTokenAlias == "" {
		session.AccessTokenAlias = result.AccessTokenAlias
	}

	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return session, nil
}

// RestoreSession validates a persisted session against expiry and the
// connected wallet. An invalid session is discarded silently: stale
// sessions are expected lifecycle, not failures. Safe to call once at
// startup; concurrent calls return core.ErrRestoreInProgress.
func (s *AuthService) RestoreSession(ctx context.Context) error {
	if !s.restoring.CompareAndSwap(false, true) {
		return core.ErrRestoreInProgress
	}
	defer func() {
		s.restoreDone.Store(true)
		s.restoring.Store(false)
	}()

	persisted, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, core.ErrNoSession) {
			return nil
		}
		return fmt.Errorf("failed to load persisted session: %w", err)
	}

	// Expiry comes first; an expired session is discarded before any
	// wallet interaction.
	session, err := sessioncodec.SessionFromToken(persisted.RawToken, time.Now())
	if err != nil {
		s.discardPersisted(ctx, "expired or undecodable session", err)
		return nil
	}
	if session.WalletAddress == "" {
		session.WalletAddress = persisted.WalletAddress
	}
	if session.AccessTokenAlias == "" {
		session.AccessTokenAlias = persisted.AccessTokenAlias
	}

	connected, err := s.wallet.Connected(ctx)
	if err != nil {
		return fmt.Errorf("failed to read wallet connection state: %w", err)
	}
	if !connected {
		// Retain the persisted session unvalidated; authentication
		// stays down until the wallet connects.
		s.logger.Debug("wallet not connected, keeping session unvalidated")
		return nil
	}

	address, err := s.canonicalWalletAddress(ctx)
	if err != nil {
		return err
	}
	if address != session.WalletAddress {
		s.discardPersisted(ctx, "wallet address mismatch", nil)
		return nil
	}

	walletAlias, err := s.detectWalletAlias(ctx)
	if err != nil {
		return fmt.Errorf("failed to list wallet assets: %w", err)
	}
	if walletAlias != "" && walletAlias != session.AccessTokenAlias {
		s.discardPersisted(ctx, "identity alias mismatch", nil)
		return nil
	}

	s.mu.Lock()
	s.session = session
	s.status = core.StatusAuthenticated
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Info("session restored",
		zap.String("user_id", session.UserID),
		zap.String("address", session.WalletAddress))
	return nil
}

// Logout discards the session, purges tracked transactions immediately
// and disconnects the wallet. Always lands in unauthenticated.
func (s *AuthService) Logout(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.status = core.StatusUnauthenticated
	s.lastErr = nil
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear persisted session", zap.Error(err))
	}

	if s.purger != nil {
		s.purger.Purge()
	}

	if err := s.wallet.Disconnect(ctx); err != nil {
		s.logger.Warn("failed to disconnect wallet", zap.Error(err))
	}

	if session != nil {
		s.logger.Info("logged out", zap.String("user_id", session.UserID))
		if s.events != nil {
			if err := s.events.PublishLogout(ctx, session.UserID, session.WalletAddress); err != nil {
				s.logger.Warn("failed to publish logout event", zap.Error(err))
			}
		}
	}

	return nil
}

// CheckWalletBinding re-reads the wallet's address and alias and compares
// them to the session's claims. Any mismatch, disconnect or read failure
// while authenticated forces a logout so a session obtained under one
// wallet identity can't outlive a silent account switch. Returns whether
// the session survived the check.
func (s *AuthService) CheckWalletBinding(ctx context.Context) bool {
	s.mu.Lock()
	session := s.session
	authenticated := s.status == core.StatusAuthenticated
	s.mu.Unlock()

	if !authenticated || session == nil {
		return true
	}

	if session.Expired(time.Now()) {
		s.logger.Info("session expired while authenticated, logging out",
			zap.String("user_id", session.UserID))
		_ = s.Logout(ctx)
		return false
	}

	connected, err := s.wallet.Connected(ctx)
	if err != nil || !connected {
		s.logger.Info("wallet disconnected while authenticated, logging out", zap.Error(err))
		_ = s.Logout(ctx)
		return false
	}

	address, err := s.canonicalWalletAddress(ctx)
	if err != nil || address != session.WalletAddress {
		s.logger.Info("wallet address changed while authenticated, logging out",
			zap.String("session_address", session.WalletAddress))
		_ = s.Logout(ctx)
		return false
	}

	walletAlias, err := s.detectWalletAlias(ctx)
	if err == nil && walletAlias != "" && session.AccessTokenAlias != "" && walletAlias != session.AccessTokenAlias {
		s.logger.Info("identity alias changed while authenticated, logging out")
		_ = s.Logout(ctx)
		return false
	}

	return true
}

// StartWalletMonitor runs the wallet-switch detector until ctx ends.
func (s *AuthService) StartWalletMonitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.WalletCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CheckWalletBinding(ctx)
			}
		}
	}()
}

// reconcileAlias adopts an identity alias found in the wallet's asset list
// into a session that doesn't carry one yet. Explicitly best-effort: a
// failure is logged and authentication still succeeds. A gone legacy sync
// endpoint degrades to a local-only update.
func (s *AuthService) reconcileAlias(ctx context.Context) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil || session.AccessTokenAlias != "" {
		return
	}

	alias, err := s.detectWalletAlias(ctx)
	if err != nil {
		s.logger.Warn("alias reconciliation: failed to list wallet assets", zap.Error(err))
		return
	}
	if alias == "" {
		return
	}

	if err := s.gateway.SyncAlias(ctx, session.RawToken, alias); err != nil {
		if errors.Is(err, core.ErrAliasSyncGone) {
			s.logger.Info("legacy alias sync endpoint gone, updating local state only",
				zap.String("alias", alias))
		} else {
			s.logger.Warn("alias reconciliation failed, updating local state only",
				zap.String("alias", alias), zap.Error(err))
		}
	}

	s.mu.Lock()
	if s.session == nil {
		// Logout landed while the sync was in flight; the session is gone
		// and must stay gone.
		s.mu.Unlock()
		return
	}
	s.session.AccessTokenAlias = alias
	session = s.session
	s.mu.Unlock()

	if err := s.store.Save(ctx, session); err != nil {
		s.logger.Warn("failed to persist reconciled alias", zap.Error(err))
	}
}

// canonicalWalletAddress reads the wallet's address in canonical form.
// Conversion failures surface as core.ErrAddressConversion so the state
// machine lands in the recoverable error state.
func (s *AuthService) canonicalWalletAddress(ctx context.Context) (string, error) {
	raw, err := s.wallet.CanonicalAddress(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrAddressConversion, err)
	}
	return core.NormalizeAddress(raw)
}

// detectWalletAlias scans the wallet's assets for the identity token and
// returns the alias encoded in its name, or "" when none is held.
func (s *AuthService) detectWalletAlias(ctx context.Context) (string, error) {
	assets, err := s.wallet.Assets(ctx)
	if err != nil {
		return "", err
	}
	for _, asset := range assets {
		if !asset.Quantity.IsPositive() {
			continue
		}
		if strings.HasPrefix(asset.Name, s.cfg.IdentityAssetPrefix) {
			return strings.TrimPrefix(asset.Name, s.cfg.IdentityAssetPrefix), nil
		}
	}
	return "", nil
}

// discardPersisted drops an invalid persisted session without surfacing
// an error; this path is expected lifecycle.
func (s *AuthService) discardPersisted(ctx context.Context, reason string, cause error) {
	s.logger.Info("discarding persisted session", zap.String("reason", reason), zap.Error(cause))
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear persisted session", zap.Error(err))
	}
}

// fail converts a handshake error into the matching recoverable state.
func (s *AuthService) fail(err error) {
	status := core.StatusError
	if errors.Is(err, core.ErrPopupBlocked) {
		status = core.StatusPopupBlocked
	}

	s.mu.Lock()
	s.status = status
	s.lastErr = err
	s.mu.Unlock()

	s.logger.Warn("authentication failed", zap.String("status", string(status)), zap.Error(err))
}
