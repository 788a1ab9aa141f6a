package contract

import "okinoko_governor/sdk"

// Every contract carries one administrator stored under kOwner in its own
// keyspace. Only the administrator can hand the role over.

func ownerOf(st State) sdk.Address {
	ptr := st.Get(singleKey(kOwner))
	if ptr == nil {
		return sdk.NullAddress
	}
	return sdk.Address(*ptr)
}

func isInitialized(st State) bool {
	return st.Get(singleKey(kInit)) != nil
}

// initContract stamps the caller as administrator; a second init fails.
func initContract(c *Context, addr sdk.Address, kind string) (State, error) {
	st := c.state(addr)
	if isInitialized(st) {
		return nil, ErrInitialized
	}
	if c.Caller().IsNull() {
		return nil, ErrInvalidAddress
	}
	st.Set(singleKey(kInit), kind)
	st.Set(singleKey(kOwner), c.Caller().String())
	emitInitEvent(c, kind, c.Caller())
	return st, nil
}

// requireOwner is the administrator predicate of a contract.
func requireOwner(c *Context, addr sdk.Address) (State, error) {
	st := c.state(addr)
	if !isInitialized(st) {
		return nil, ErrNotInitialized
	}
	if owner := ownerOf(st); owner.IsNull() || owner != c.Caller() {
		return nil, ErrUnauthorized
	}
	return st, nil
}

func transferOwnership(c *Context, addr, newOwner sdk.Address) error {
	st, err := requireOwner(c, addr)
	if err != nil {
		return err
	}
	if newOwner.IsNull() {
		return ErrInvalidAddress
	}
	prev := ownerOf(st)
	st.Set(singleKey(kOwner), newOwner.String())
	emitOwnershipChanged(c, prev, newOwner)
	return nil
}
