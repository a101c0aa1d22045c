package core

import "github.com/shopspring/decimal"

// Asset is one token held by the connected wallet, as reported by the
// wallet connector. The identity token that carries the user's access
// alias is found among these by name prefix.
type Asset struct {
	Unit     string          // Policy id + hex-encoded asset name
	Name     string          // Decoded asset name
	Quantity decimal.Decimal // Held amount
}
