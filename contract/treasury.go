package contract

import (
	"errors"
	"fmt"

	"okinoko_governor/sdk"
)

// Treasury custodies native value and ledger tokens. Spending goes through
// two flags per proposal id, approved then spent, and only the registered
// governor may set them. The administrator keeps an emergency drain.
type Treasury struct {
	addr sdk.Address
}

func (t *Treasury) Address() sdk.Address { return t.addr }

// Init makes the caller the administrator and registers the governor.
// Example payload: {"account":"contract:governor"}
func (t *Treasury) Init(c *Context, governor sdk.Address) error {
	if governor.IsNull() {
		return ErrInvalidAddress
	}
	st, err := initContract(c, t.addr, "treasury")
	if err != nil {
		return err
	}
	st.Set(singleKey(kTreasuryGovernor), governor.String())
	return nil
}

func (t *Treasury) Owner(c *Context) sdk.Address { return ownerOf(c.state(t.addr)) }

func (t *Treasury) TransferOwnership(c *Context, newOwner sdk.Address) error {
	return transferOwnership(c, t.addr, newOwner)
}

// Governor is the identity allowed to approve and spend.
func (t *Treasury) Governor(c *Context) sdk.Address {
	ptr := c.state(t.addr).Get(singleKey(kTreasuryGovernor))
	if ptr == nil {
		return sdk.NullAddress
	}
	return sdk.Address(*ptr)
}

// SetDAO re-points the governor. Administrator only.
func (t *Treasury) SetDAO(c *Context, governor sdk.Address) error {
	st, err := requireOwner(c, t.addr)
	if err != nil {
		return err
	}
	if governor.IsNull() {
		return ErrInvalidAddress
	}
	prev := t.Governor(c)
	st.Set(singleKey(kTreasuryGovernor), governor.String())
	emitAddressChanged(c, "dao", prev, governor)
	return nil
}

func (t *Treasury) requireGovernor(c *Context) (State, error) {
	st := c.state(t.addr)
	if !isInitialized(st) {
		return nil, ErrNotInitialized
	}
	if gov := t.Governor(c); gov.IsNull() || gov != c.Caller() {
		return nil, ErrUnauthorized
	}
	return st, nil
}

func (t *Treasury) IsApproved(c *Context, id uint64) bool {
	return c.state(t.addr).Get(idKey(kApproved, id)) != nil
}

func (t *Treasury) IsSpent(c *Context, id uint64) bool {
	return c.state(t.addr).Get(idKey(kSpent, id)) != nil
}

// Approve is phase one: flag id as cleared for spending, once.
func (t *Treasury) Approve(c *Context, id uint64) error {
	st, err := t.requireGovernor(c)
	if err != nil {
		return err
	}
	if t.IsApproved(c, id) {
		return ErrAlreadyApproved
	}
	st.Set(idKey(kApproved, id), "1")
	emitProposalApproved(c, id)
	return nil
}

// Spend is phase two: pay out an approved id, once. The spent flag is written
// before the value leaves so a reentrant Spend for the same id is refused; if
// the transfer fails the flag goes down with the rest of the call.
func (t *Treasury) Spend(c *Context, id uint64, recipient sdk.Address, amount uint64, asset sdk.Asset) error {
	st, err := t.requireGovernor(c)
	if err != nil {
		return err
	}
	if !t.IsApproved(c, id) {
		return ErrNotApproved
	}
	if t.IsSpent(c, id) {
		return ErrAlreadyExecuted
	}
	if err := t.checkPayout(c, recipient, amount, asset); err != nil {
		return err
	}
	st.Set(idKey(kSpent, id), "1")
	emitFundsRemoved(c, id, recipient, amount, asset)
	return t.payout(c, recipient, amount, asset)
}

// EmergencyWithdraw drains funds without any proposal. Administrator only.
func (t *Treasury) EmergencyWithdraw(c *Context, asset sdk.Asset, amount uint64, recipient sdk.Address) error {
	if _, err := requireOwner(c, t.addr); err != nil {
		return err
	}
	if err := t.checkPayout(c, recipient, amount, asset); err != nil {
		return err
	}
	emitEmergencyWithdrawn(c, recipient, amount, asset)
	return t.payout(c, recipient, amount, asset)
}

// Fund deposits native value from the caller.
func (t *Treasury) Fund(c *Context, amount uint64) error {
	if !isInitialized(c.state(t.addr)) {
		return ErrNotInitialized
	}
	if amount == 0 {
		return ErrZeroValue
	}
	if err := c.moveNative(c.Caller(), t.addr, amount); err != nil {
		return err
	}
	emitFundsAdded(c, c.Caller(), amount, sdk.AssetNative)
	return nil
}

// FundWithToken pulls amount of token from the caller. The caller must have
// approved the treasury as spender on the token beforehand.
func (t *Treasury) FundWithToken(c *Context, token sdk.Address, amount uint64) error {
	if !isInitialized(c.state(t.addr)) {
		return ErrNotInitialized
	}
	ledger, err := t.token(c, token)
	if err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	funder := c.Caller()
	if err := c.Invoke(token, func(tc *Context) error {
		return ledger.TransferFrom(tc, funder, t.addr, amount)
	}); err != nil {
		return err
	}
	emitFundsAdded(c, funder, amount, sdk.TokenAsset(token))
	return nil
}

// Balance reports what the substrate says the treasury holds of asset.
func (t *Treasury) Balance(c *Context, asset sdk.Asset) (uint64, error) {
	if asset.IsNative() {
		return c.NativeBalance(t.addr), nil
	}
	ledger, err := t.token(c, asset.Token())
	if err != nil {
		return 0, err
	}
	return ledger.BalanceOf(c, t.addr), nil
}

func (t *Treasury) token(c *Context, token sdk.Address) (*Ledger, error) {
	if token.IsNull() {
		return nil, ErrInvalidToken
	}
	ledger, ok := c.Engine().Ledger(token)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, token)
	}
	return ledger, nil
}

// checkPayout is the validation shared by Spend and EmergencyWithdraw.
func (t *Treasury) checkPayout(c *Context, recipient sdk.Address, amount uint64, asset sdk.Asset) error {
	if recipient.IsNull() {
		return ErrInvalidRecipient
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	bal, err := t.Balance(c, asset)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: treasury holds %d %s, needs %d", ErrInsufficientFunds, bal, asset, amount)
	}
	return nil
}

// payout is the external value transfer. It may reenter through receive hooks.
func (t *Treasury) payout(c *Context, recipient sdk.Address, amount uint64, asset sdk.Asset) error {
	var err error
	if asset.IsNative() {
		err = c.TransferNative(recipient, amount)
	} else {
		var ledger *Ledger
		if ledger, err = t.token(c, asset.Token()); err == nil {
			err = c.Invoke(ledger.Address(), func(tc *Context) error {
				return ledger.Transfer(tc, recipient, amount)
			})
		}
	}
	if err != nil && !errors.Is(err, ErrTransferFailed) {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return err
}
