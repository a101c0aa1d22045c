// Package sessioncodec decodes the gateway-issued session token on the
// client side so basic identity checks avoid a round trip. The decode is
// advisory only: no signature verification happens here, and authority
// over validity always remains with the originating exchange.
package sessioncodec

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/credano/bifrost/core"
)

// Decode parses a session token's claims without verifying its signature.
func Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, core.ErrInvalidToken
	}

	if claims.UserID == "" || claims.ExpiresAt == nil {
		return nil, core.ErrInvalidClaims
	}

	return claims, nil
}

// SessionFromToken decodes a token and builds the session it describes.
// Returns core.ErrSessionExpired for a token whose expiry has passed; an
// expired session is never treated as valid regardless of other checks.
func SessionFromToken(raw string, now time.Time) (*core.Session, error) {
	claims, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	session := &core.Session{
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt.Time,
		RawToken:  raw,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.CardanoBech32Addr != nil {
		addr, err := core.NormalizeAddress(*claims.CardanoBech32Addr)
		if err != nil {
			return nil, core.ErrInvalidClaims
		}
		session.WalletAddress = addr
	}
	if claims.AccessTokenAlias != nil {
		session.AccessTokenAlias = *claims.AccessTokenAlias
	}

	if session.Expired(now) {
		return nil, core.ErrSessionExpired
	}

	return session, nil
}
