package sessioncodec

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credano/bifrost/core"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestDecode(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	raw := signToken(t, jwt.MapClaims{
		"userId":            "user-1",
		"cardanoBech32Addr": "addr1qxy",
		"accessTokenAlias":  "alice",
		"exp":               exp.Unix(),
		"iat":               time.Now().Unix(),
	})

	claims, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	require.NotNil(t, claims.CardanoBech32Addr)
	assert.Equal(t, "addr1qxy", *claims.CardanoBech32Addr)
	require.NotNil(t, claims.AccessTokenAlias)
	assert.Equal(t, "alice", *claims.AccessTokenAlias)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())
}

func TestDecodeNullableClaims(t *testing.T) {
	raw := signToken(t, jwt.MapClaims{
		"userId": "user-1",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	claims, err := Decode(raw)
	require.NoError(t, err)
	assert.Nil(t, claims.CardanoBech32Addr)
	assert.Nil(t, claims.AccessTokenAlias)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("not-a-token")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestDecodeRejectsMissingClaims(t *testing.T) {
	// No userId
	raw := signToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	_, err := Decode(raw)
	assert.ErrorIs(t, err, core.ErrInvalidClaims)

	// No expiry
	raw = signToken(t, jwt.MapClaims{"userId": "user-1"})
	_, err = Decode(raw)
	assert.ErrorIs(t, err, core.ErrInvalidClaims)
}

func TestSessionFromToken(t *testing.T) {
	now := time.Now()
	raw := signToken(t, jwt.MapClaims{
		"userId":            "user-1",
		"cardanoBech32Addr": "  Addr1QXY  ",
		"accessTokenAlias":  "alice",
		"exp":               now.Add(time.Hour).Unix(),
		"iat":               now.Unix(),
	})

	session, err := SessionFromToken(raw, now)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "addr1qxy", session.WalletAddress, "address must be normalized")
	assert.Equal(t, "alice", session.AccessTokenAlias)
	assert.Equal(t, raw, session.RawToken)
	assert.False(t, session.Expired(now))
}

func TestSessionFromTokenExpired(t *testing.T) {
	now := time.Now()
	raw := signToken(t, jwt.MapClaims{
		"userId": "user-1",
		"exp":    now.Add(-time.Minute).Unix(),
	})

	_, err := SessionFromToken(raw, now)
	assert.ErrorIs(t, err, core.ErrSessionExpired)
}
