package contract

import (
	"fmt"
	"strings"

	"okinoko_governor/sdk"
)

// Ledger is the fungible governance token. A balance is also the holder's
// voting power, read live whenever it is needed.
type Ledger struct {
	addr sdk.Address
}

// TokenMeta is the descriptive part of a ledger.
type TokenMeta struct {
	Name   string
	Symbol string
}

func (l *Ledger) Address() sdk.Address { return l.addr }

// Init makes the caller the administrator (the only one allowed to mint).
// Example payload: {"name":"Okinoko Vote","symbol":"OKV"}
func (l *Ledger) Init(c *Context, name, symbol string) error {
	name, symbol = strings.TrimSpace(name), strings.TrimSpace(symbol)
	if name == "" || symbol == "" || strings.Contains(name, "|") || strings.Contains(symbol, "|") {
		return fmt.Errorf("%w: name and symbol required", ErrInvalidInput)
	}
	st, err := initContract(c, l.addr, "ledger")
	if err != nil {
		return err
	}
	st.Set(singleKey(kTokenMeta), name+"|"+symbol)
	return nil
}

// Meta returns name and symbol.
func (l *Ledger) Meta(c *Context) TokenMeta {
	ptr := c.state(l.addr).Get(singleKey(kTokenMeta))
	if ptr == nil {
		return TokenMeta{}
	}
	name, symbol, _ := strings.Cut(*ptr, "|")
	return TokenMeta{Name: name, Symbol: symbol}
}

func (l *Ledger) Owner(c *Context) sdk.Address { return ownerOf(c.state(l.addr)) }

func (l *Ledger) TransferOwnership(c *Context, newOwner sdk.Address) error {
	return transferOwnership(c, l.addr, newOwner)
}

// BalanceOf returns the current balance of account.
func (l *Ledger) BalanceOf(c *Context, account sdk.Address) uint64 {
	return getCount(c.state(l.addr), accountKey(kBalance, account))
}

// VotingPowerOf is the spendable balance right now, there are no snapshots.
func (l *Ledger) VotingPowerOf(c *Context, account sdk.Address) uint64 {
	return l.BalanceOf(c, account)
}

func (l *Ledger) TotalSupply(c *Context) uint64 {
	return getCount(c.state(l.addr), singleKey(kSupply))
}

func (l *Ledger) Allowance(c *Context, owner, spender sdk.Address) uint64 {
	return getCount(c.state(l.addr), allowanceKey(owner, spender))
}

// Mint creates new units for to. Administrator only.
func (l *Ledger) Mint(c *Context, to sdk.Address, amount uint64) error {
	st, err := requireOwner(c, l.addr)
	if err != nil {
		return err
	}
	if to.IsNull() {
		return ErrInvalidRecipient
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	supply, ok := addAmount(getCount(st, singleKey(kSupply)), amount)
	if !ok {
		return ErrOverflow
	}
	// a balance never exceeds the supply, so it cannot wrap either
	key := accountKey(kBalance, to)
	setCount(st, key, getCount(st, key)+amount)
	setCount(st, singleKey(kSupply), supply)
	emitMinted(c, to, amount)
	return nil
}

// Burn destroys units from the caller's own balance.
func (l *Ledger) Burn(c *Context, amount uint64) error {
	st := c.state(l.addr)
	if !isInitialized(st) {
		return ErrNotInitialized
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	from := c.Caller()
	key := accountKey(kBalance, from)
	bal := getCount(st, key)
	if bal < amount {
		return fmt.Errorf("%w: %s holds %d, burning %d", ErrInsufficientBalance, from, bal, amount)
	}
	setCount(st, key, bal-amount)
	setCount(st, singleKey(kSupply), getCount(st, singleKey(kSupply))-amount)
	emitBurned(c, from, amount)
	return nil
}

// Transfer moves units from the caller to to.
func (l *Ledger) Transfer(c *Context, to sdk.Address, amount uint64) error {
	return l.move(c, c.Caller(), to, amount)
}

// Approve sets how much spender may pull from the caller via TransferFrom.
func (l *Ledger) Approve(c *Context, spender sdk.Address, amount uint64) error {
	st := c.state(l.addr)
	if !isInitialized(st) {
		return ErrNotInitialized
	}
	if spender.IsNull() {
		return ErrInvalidAddress
	}
	setCount(st, allowanceKey(c.Caller(), spender), amount)
	emitAllowance(c, c.Caller(), spender, amount)
	return nil
}

// TransferFrom moves units out of from on behalf of the caller, who must hold
// a large enough allowance.
func (l *Ledger) TransferFrom(c *Context, from, to sdk.Address, amount uint64) error {
	st := c.state(l.addr)
	spender := c.Caller()
	key := allowanceKey(from, spender)
	allowed := getCount(st, key)
	if allowed < amount {
		return fmt.Errorf("%w: %s may pull %d from %s", ErrInsufficientAllowance, spender, allowed, from)
	}
	if err := l.move(c, from, to, amount); err != nil {
		return err
	}
	setCount(st, key, allowed-amount)
	return nil
}

// move is the atomic pairwise balance update everything else builds on.
func (l *Ledger) move(c *Context, from, to sdk.Address, amount uint64) error {
	st := c.state(l.addr)
	if !isInitialized(st) {
		return ErrNotInitialized
	}
	if to.IsNull() {
		return ErrInvalidRecipient
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	fromKey := accountKey(kBalance, from)
	fromBal := getCount(st, fromKey)
	if fromBal < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientBalance, from, fromBal, amount)
	}
	if from != to {
		toKey := accountKey(kBalance, to)
		setCount(st, fromKey, fromBal-amount)
		setCount(st, toKey, getCount(st, toKey)+amount)
	}
	emitTransferred(c, from, to, amount)
	return nil
}
