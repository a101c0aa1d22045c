package sessioncodec

import "github.com/golang-jwt/jwt/v5"

// Claims are the session token's claims as issued by the gateway. The
// wallet address and alias are nullable: a user can authenticate before
// minting an on-chain identity token.
type Claims struct {
	jwt.RegisteredClaims
	UserID            string  `json:"userId"`
	CardanoBech32Addr *string `json:"cardanoBech32Addr"`
	AccessTokenAlias  *string `json:"accessTokenAlias"`
}
