package contract

import (
	"math/bits"
	"strconv"
)

// getCount reads the string counter under the key and defaults to zero, nothing magical here.
func getCount(st State, key string) uint64 {
	ptr := st.Get(key)
	if ptr == nil || *ptr == "" {
		return 0
	}
	n, _ := strconv.ParseUint(*ptr, 10, 64)
	return n
}

// setCount stores uint64 counters back as decimal strings for the kv.
// Zero deletes the key so empty balances do not pile up.
func setCount(st State, key string, n uint64) {
	if n == 0 {
		st.Delete(key)
		return
	}
	st.Set(key, strconv.FormatUint(n, 10))
}

// nextID hands out sequential ids starting at 0.
func nextID(st State, key string) uint64 {
	id := getCount(st, key)
	st.Set(key, strconv.FormatUint(id+1, 10))
	return id
}

// addAmount adds with overflow detection.
func addAmount(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}
