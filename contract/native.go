package contract

import (
	"context"
	"fmt"

	"okinoko_governor/sdk"
)

// ReceiveHook runs synchronously inside a native transfer to the address it
// is registered for. c executes as the receiver with the payer as caller, so
// the hook may call back into any contract through c.Invoke. Returning an
// error fails the transfer.
type ReceiveHook func(c *Context, from sdk.Address, amount uint64) error

// OnReceive registers (or with nil removes) the receive hook of addr.
func (e *Engine) OnReceive(addr sdk.Address, hook ReceiveHook) {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	if hook == nil {
		delete(e.hooks, addr)
		return
	}
	e.hooks[addr] = hook
}

func (e *Engine) receiveHook(addr sdk.Address) ReceiveHook {
	e.regMu.RLock()
	defer e.regMu.RUnlock()
	return e.hooks[addr]
}

// Deposit credits native value to an account out of thin air (genesis/faucet).
func (e *Engine) Deposit(ctx context.Context, env sdk.Env, to sdk.Address, amount uint64) error {
	return e.Execute(ctx, env, NativeNamespace, func(c *Context) error {
		if to.IsNull() {
			return ErrInvalidRecipient
		}
		if amount == 0 {
			return ErrZeroValue
		}
		st := c.state(NativeNamespace)
		key := accountKey(kNativeBalance, to)
		bal, ok := addAmount(getCount(st, key), amount)
		if !ok {
			return ErrOverflow
		}
		setCount(st, key, bal)
		c.emit(EventNativeDeposited, "to", to.String(), "am", u64(amount))
		return nil
	})
}

// NativeBalance reads the native value held by addr.
func (c *Context) NativeBalance(addr sdk.Address) uint64 {
	return getCount(c.state(NativeNamespace), accountKey(kNativeBalance, addr))
}

// TransferNative pushes native value from Self to a recipient.
func (c *Context) TransferNative(to sdk.Address, amount uint64) error {
	return c.moveNative(c.self, to, amount)
}

// moveNative debits from, credits to and then runs the receiver hook. The
// whole thing is one savepoint: a rejecting hook undoes the balance move.
func (c *Context) moveNative(from, to sdk.Address, amount uint64) error {
	if to.IsNull() {
		return ErrInvalidRecipient
	}
	if amount == 0 {
		return ErrZeroValue
	}
	return c.savepoint(func(sc *Context) error {
		st := sc.state(NativeNamespace)
		fromKey := accountKey(kNativeBalance, from)
		toKey := accountKey(kNativeBalance, to)
		fromBal := getCount(st, fromKey)
		if fromBal < amount {
			return fmt.Errorf("%w: %s holds %d native, needs %d", ErrInsufficientFunds, from, fromBal, amount)
		}
		setCount(st, fromKey, fromBal-amount)
		toBal, ok := addAmount(getCount(st, toKey), amount)
		if !ok {
			return ErrOverflow
		}
		setCount(st, toKey, toBal)
		hook := sc.engine.receiveHook(to)
		if hook == nil {
			return nil
		}
		if err := sc.nested(to, from, func(hc *Context) error {
			return hook(hc, from, amount)
		}); err != nil {
			return fmt.Errorf("%w: %s rejected %d native: %v", ErrTransferFailed, to, amount, err)
		}
		return nil
	})
}
