package contract

import "okinoko_governor/sdk"

// DelegationKey exposes the raw delegation record key to the tests.
func DelegationKey(account sdk.Address) string { return accountKey(kDelegation, account) }

// SetRaw writes value under key in the keyspace of owner.
func SetRaw(c *Context, owner sdk.Address, key, value string) { c.state(owner).Set(key, value) }
