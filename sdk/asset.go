package sdk

import "strings"

// Asset identifies what a value transfer moves: the native currency or a
// fungible token addressed by its contract address.
type Asset string

// AssetNative is the marker for the chain's native currency.
const AssetNative Asset = "native"

// TokenAsset wraps a token contract address as an asset.
func TokenAsset(token Address) Asset {
	return Asset(token)
}

// String returns the raw asset string for logging or host calls.
func (a Asset) String() string {
	return string(a)
}

// IsNative is true for the native marker (case insensitive, blank counts as native).
func (a Asset) IsNative() bool {
	s := strings.TrimSpace(string(a))
	return s == "" || strings.EqualFold(s, string(AssetNative))
}

// Token returns the token contract address, or the null address for native.
func (a Asset) Token() Address {
	if a.IsNative() {
		return NullAddress
	}
	return Address(strings.TrimSpace(string(a)))
}
