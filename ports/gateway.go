package ports

import (
	"context"
	"time"

	"github.com/credano/bifrost/core"
)

// AuthResult is the gateway's response to a successful signature exchange.
type AuthResult struct {
	Token            string // Signed session token
	UserID           string // Gateway-assigned user identifier
	AccessTokenAlias string // Identity alias the gateway already knows, may be empty
}

// TxStatus is the gateway's view of one transaction's progress.
type TxStatus struct {
	State       core.TxState
	RetryCount  int
	LastError   string
	ConfirmedAt time.Time // Zero until the gateway saw the transaction on the ledger
}

// Gateway is the remote authority consulted during authentication and
// polled for transaction confirmation facts. State transitions are driven
// exclusively by its responses, never inferred locally (local expiry of an
// aged-out entry being the one documented exception).
type Gateway interface {
	// Challenge issues a server-generated nonce for the address to sign.
	Challenge(ctx context.Context, address string) (string, error)

	// Exchange trades a signed nonce for a session token and user record.
	Exchange(ctx context.Context, address, nonce, signature string) (*AuthResult, error)

	// RegisterTransaction registers a submitted transaction for
	// server-side tracking.
	RegisterTransaction(ctx context.Context, txHash string, txType core.TxType, metadata map[string]string) error

	// TransactionStatus queries one transaction's confirmation state.
	// Returns core.ErrTxNotFound while the gateway has not ingested the
	// transaction yet; that window is expected, not an error.
	TransactionStatus(ctx context.Context, txHash string) (*TxStatus, error)

	// SyncAlias reconciles a wallet-held identity alias into the user
	// record. Returns core.ErrAliasSyncGone once the legacy endpoint is
	// retired; callers fall back to updating local state only.
	SyncAlias(ctx context.Context, token, alias string) error
}
