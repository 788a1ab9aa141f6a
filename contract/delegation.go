package contract

import (
	"fmt"

	"okinoko_governor/contract/dao"
	"okinoko_governor/sdk"
)

// Delegation moves custody: the delegated units are transferred to the
// delegate, who then votes with them as part of its own balance. The register
// only remembers who delegated to whom and how much each delegate received in
// total. Re-delegating overwrites the target without pulling back the earlier
// transfer, and undelegation is checked against the delegate's aggregate
// counter, not the delegator's own share.

func (l *Ledger) loadDelegation(st State, account sdk.Address) (*dao.Delegation, error) {
	ptr := st.Get(accountKey(kDelegation, account))
	if ptr == nil {
		return &dao.Delegation{}, nil
	}
	d, err := dao.DecodeDelegation([]byte(*ptr))
	if err != nil {
		return nil, fmt.Errorf("decode delegation of %s: %w", account, err)
	}
	return d, nil
}

// DelegationOf returns the delegation record of account (zero value if none).
func (l *Ledger) DelegationOf(c *Context, account sdk.Address) (dao.Delegation, error) {
	d, err := l.loadDelegation(c.state(l.addr), account)
	if err != nil {
		return dao.Delegation{}, err
	}
	return *d, nil
}

// DelegatedVotesReceived is the aggregate delegated to d by everyone.
func (l *Ledger) DelegatedVotesReceived(c *Context, d sdk.Address) uint64 {
	return getCount(c.state(l.addr), accountKey(kDelegatedVotes, d))
}

// Delegate hands amount of the caller's units to delegateTo.
// Example payload: {"to":"hive:dave","amount":10000}
func (l *Ledger) Delegate(c *Context, delegateTo sdk.Address, amount uint64) error {
	caller := c.Caller()
	if delegateTo.IsNull() || delegateTo == caller {
		return ErrInvalidDelegate
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	st := c.state(l.addr)
	counterKey := accountKey(kDelegatedVotes, delegateTo)
	received, ok := addAmount(getCount(st, counterKey), amount)
	if !ok {
		return ErrOverflow
	}
	if err := l.move(c, caller, delegateTo, amount); err != nil {
		return err
	}
	rec := &dao.Delegation{Active: true, Delegate: delegateTo}
	st.Set(accountKey(kDelegation, caller), string(dao.EncodeDelegation(rec)))
	setCount(st, counterKey, received)
	emitDelegated(c, caller, delegateTo, amount)
	return nil
}

// Undelegate pulls amount back from the caller's recorded delegate. Once the
// delegate's aggregate counter hits zero the caller's record is cleared.
func (l *Ledger) Undelegate(c *Context, amount uint64) error {
	caller := c.Caller()
	st := c.state(l.addr)
	rec, err := l.loadDelegation(st, caller)
	if err != nil {
		return err
	}
	if !rec.Active {
		return ErrNoActiveDelegation
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	counterKey := accountKey(kDelegatedVotes, rec.Delegate)
	received := getCount(st, counterKey)
	if amount > received {
		return fmt.Errorf("%w: %s received %d, undelegating %d", ErrInsufficientDelegatedAmount, rec.Delegate, received, amount)
	}
	if err := l.move(c, rec.Delegate, caller, amount); err != nil {
		return err
	}
	left := received - amount
	setCount(st, counterKey, left)
	cleared := left == 0
	if cleared {
		st.Delete(accountKey(kDelegation, caller))
	}
	emitUndelegated(c, caller, rec.Delegate, amount, cleared)
	return nil
}
