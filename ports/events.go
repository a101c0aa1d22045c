package ports

import (
	"context"

	"github.com/credano/bifrost/core"
)

// EventPublisher notifies other components about session and transaction
// lifecycle changes. Publishing is always best-effort: failures are logged
// by the caller and never fail the primary operation.
type EventPublisher interface {
	PublishLogin(ctx context.Context, userID, address string) error
	PublishLogout(ctx context.Context, userID, address string) error
	PublishTransactionTerminal(ctx context.Context, tx *core.WatchedTransaction) error
}
