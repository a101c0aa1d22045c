package core

import "time"

// AuthStatus is the authentication state machine's current state.
type AuthStatus string

const (
	StatusUnauthenticated AuthStatus = "unauthenticated"
	StatusAuthenticating  AuthStatus = "authenticating"
	StatusAuthenticated   AuthStatus = "authenticated"

	// StatusPopupBlocked means the wallet's signing prompt was suppressed
	// by the browser. Recoverable: the user re-triggers authentication
	// with a direct click so the prompt passes the popup-trust heuristic.
	StatusPopupBlocked AuthStatus = "popup-blocked"

	// StatusError covers every other recoverable authentication failure.
	StatusError AuthStatus = "error"
)

// Session is the bridge's record of a successfully authenticated wallet
// identity. The raw token stays opaque; decoded claims are advisory and
// authority over validity remains with the gateway exchange.
type Session struct {
	UserID           string    // Gateway-assigned user identifier
	WalletAddress    string    // Canonical (bech32, lowercased) wallet address
	AccessTokenAlias string    // Alias of the on-chain identity token, empty until minted
	IssuedAt         time.Time // When the session was created
	ExpiresAt        time.Time // When the session expires
	RawToken         string    // The signed session token as issued
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
