package core

import "time"

// TxState is the confirmation state of a watched transaction. Transitions
// only ever move forward: pending -> confirmed -> updated, with failed and
// expired reachable from any non-terminal state.
type TxState string

const (
	// TxPending means the transaction was submitted but the gateway has
	// not yet seen it on the ledger.
	TxPending TxState = "pending"

	// TxConfirmed means the transaction is on the ledger but downstream
	// persistence is still outstanding. Not a terminal state: consumers
	// must not treat confirmed as done.
	TxConfirmed TxState = "confirmed"

	// TxUpdated means downstream persistence completed. Terminal.
	TxUpdated TxState = "updated"

	// TxFailed means the gateway reported failure or local retries were
	// exhausted. Terminal.
	TxFailed TxState = "failed"

	// TxExpired means the transaction aged out before confirmation.
	// Terminal.
	TxExpired TxState = "expired"
)

// Terminal reports whether no further transition can occur from the state.
func (s TxState) Terminal() bool {
	switch s {
	case TxUpdated, TxFailed, TxExpired:
		return true
	}
	return false
}

// TxType tags a transaction with the downstream side-effect class it maps
// to (e.g. "COURSE_CREATE", "PROJECT_COMMIT"). The bridge treats it as an
// opaque categorical value.
type TxType string

// WatchedTransaction is one submitted write operation tracked from
// submission through ledger confirmation to downstream persistence.
type WatchedTransaction struct {
	TxHash      string            // Unique key within the store
	TxType      TxType            // Downstream side-effect class
	State       TxState           // Current confirmation state
	RetryCount  int               // Transient-failure count, only ever increases
	LastError   string            // Gateway-reported or local error text
	SubmittedAt time.Time         // When tracking began
	ConfirmedAt time.Time         // Gateway-reported confirmation time, zero until known
	TerminalAt  time.Time         // When the entry became terminal, zero until then
	Metadata    map[string]string // Free-form display metadata, never interpreted
}

// IsTerminal reports whether the entry has reached a terminal state.
func (t *WatchedTransaction) IsTerminal() bool {
	return t.State.Terminal()
}
