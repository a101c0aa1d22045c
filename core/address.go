package core

import "strings"

// NormalizeAddress reduces a wallet-reported canonical address to the
// single comparable form used for every equality check in the bridge.
// The wallet connector performs the actual native-to-bech32 conversion;
// this only canonicalizes its output.
func NormalizeAddress(addr string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(addr))
	if normalized == "" {
		return "", ErrAddressConversion
	}
	return normalized, nil
}
