package contract

import "okinoko_governor/sdk"

// namespace separates contract keyspaces; the NUL cannot appear in an address.
func namespace(addr sdk.Address) string {
	return addr.String() + "\x00"
}

// packU64LEInline sprinkles a uint64 into dst in little-endian order so our keys stay compact.
func packU64LEInline(x uint64, dst []byte) {
	dst[0] = byte(x)
	dst[1] = byte(x >> 8)
	dst[2] = byte(x >> 16)
	dst[3] = byte(x >> 24)
	dst[4] = byte(x >> 32)
	dst[5] = byte(x >> 40)
	dst[6] = byte(x >> 48)
	dst[7] = byte(x >> 56)
}

// packU64LE appends the encoded number to dst and returns the new slice.
func packU64LE(x uint64, dst []byte) []byte {
	var b [8]byte
	packU64LEInline(x, b[:])
	return append(dst, b[:]...)
}

// singleKey is a one byte key for per-contract singletons (owner, config, ...).
func singleKey(prefix byte) string {
	return string([]byte{prefix})
}

// idKey builds prefix|id, used for proposals and the treasury flags.
func idKey(prefix byte, id uint64) string {
	var buf [9]byte
	buf[0] = prefix
	packU64LEInline(id, buf[1:])
	return string(buf[:])
}

// accountKey builds prefix|address for balances and delegation records.
func accountKey(prefix byte, addr sdk.Address) string {
	s := addr.String()
	buf := make([]byte, 0, 1+len(s))
	buf = append(buf, prefix)
	buf = append(buf, s...)
	return string(buf)
}

// allowanceKey keeps owner and spender apart with a NUL.
func allowanceKey(owner, spender sdk.Address) string {
	o, s := owner.String(), spender.String()
	buf := make([]byte, 0, 2+len(o)+len(s))
	buf = append(buf, kAllowance)
	buf = append(buf, o...)
	buf = append(buf, 0)
	buf = append(buf, s...)
	return string(buf)
}

// proposalKey encodes id under 0x10 prefix keeping metadata lumps contiguous.
func proposalKey(id uint64) string {
	return idKey(kProposalMeta, id)
}

// proposalVoteKey is proposal id plus the voter, one receipt per voter.
func proposalVoteKey(id uint64, voter sdk.Address) string {
	addr := voter.String()
	buf := make([]byte, 0, 1+8+len(addr))
	buf = append(buf, kVoteReceipt)
	buf = packU64LE(id, buf)
	buf = append(buf, addr...)
	return string(buf)
}
