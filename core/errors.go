package core

import "errors"

var (
	// Authentication
	ErrWalletNotConnected = errors.New("wallet is not connected")
	ErrPopupBlocked       = errors.New("wallet signing prompt was blocked")
	ErrSigningDeclined    = errors.New("wallet declined to sign")
	ErrAddressConversion  = errors.New("failed to convert wallet address to canonical form")
	ErrRestoreInProgress  = errors.New("session restoration is in progress")

	// Session
	ErrNoSession      = errors.New("no persisted session")
	ErrSessionExpired = errors.New("session has expired")
	ErrInvalidToken   = errors.New("invalid session token")
	ErrInvalidClaims  = errors.New("invalid session token claims")

	// Gateway
	ErrTxNotFound    = errors.New("transaction not yet known to the gateway")
	ErrAliasSyncGone = errors.New("legacy alias sync endpoint no longer exists")
)
