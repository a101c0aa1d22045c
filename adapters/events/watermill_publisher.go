package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/credano/bifrost/core"
	"github.com/credano/bifrost/ports"
)

const (
	TopicLogin      = "bifrost.session.login"
	TopicLogout     = "bifrost.session.logout"
	TopicTxTerminal = "bifrost.tx.terminal"
)

// SessionEvent is published on login and logout.
type SessionEvent struct {
	UserID  string `json:"user_id"`
	Address string `json:"address"`
}

// TransactionEvent is published when a watched transaction reaches a
// terminal state.
type TransactionEvent struct {
	TxHash    string `json:"tx_hash"`
	TxType    string `json:"tx_type"`
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
}

// WatermillPublisher implements the EventPublisher interface using
// Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogin publishes a login event.
func (p *WatermillPublisher) PublishLogin(ctx context.Context, userID, address string) error {
	return p.publish(TopicLogin, SessionEvent{UserID: userID, Address: address})
}

// PublishLogout publishes a logout event.
func (p *WatermillPublisher) PublishLogout(ctx context.Context, userID, address string) error {
	return p.publish(TopicLogout, SessionEvent{UserID: userID, Address: address})
}

// PublishTransactionTerminal publishes a terminal transaction event.
func (p *WatermillPublisher) PublishTransactionTerminal(ctx context.Context, tx *core.WatchedTransaction) error {
	return p.publish(TopicTxTerminal, TransactionEvent{
		TxHash:    tx.TxHash,
		TxType:    string(tx.TxType),
		State:     string(tx.State),
		LastError: tx.LastError,
	})
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
