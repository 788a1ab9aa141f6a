package contract

import (
	"fmt"
	"math"
	"strings"

	"okinoko_governor/contract/dao"
	"okinoko_governor/sdk"
)

// Governor owns the proposal registry and the vote tally, and drives the
// treasury through approve then spend once a proposal passed.
type Governor struct {
	addr sdk.Address
}

func (g *Governor) Address() sdk.Address { return g.addr }

// Init wires the governor to its voting ledger and treasury and stores the
// first configuration. The caller becomes administrator.
func (g *Governor) Init(c *Context, token, treasury sdk.Address, cfg dao.GovernorConfig) error {
	if _, ok := c.Engine().Ledger(token); !ok {
		return fmt.Errorf("%w: %s", ErrInvalidToken, token)
	}
	if treasury.IsNull() {
		return ErrInvalidAddress
	}
	if cfg.VotingPeriod <= 0 {
		return ErrInvalidPeriod
	}
	st, err := initContract(c, g.addr, "governor")
	if err != nil {
		return err
	}
	st.Set(singleKey(kGovToken), token.String())
	st.Set(singleKey(kGovTreasury), treasury.String())
	st.Set(singleKey(kGovConfig), string(dao.EncodeGovernorConfig(&cfg)))
	return nil
}

func (g *Governor) Owner(c *Context) sdk.Address { return ownerOf(c.state(g.addr)) }

func (g *Governor) TransferOwnership(c *Context, newOwner sdk.Address) error {
	return transferOwnership(c, g.addr, newOwner)
}

// -----------------------------------------------------------------------------
// Wiring
// -----------------------------------------------------------------------------

func (g *Governor) pointer(c *Context, prefix byte) sdk.Address {
	ptr := c.state(g.addr).Get(singleKey(prefix))
	if ptr == nil {
		return sdk.NullAddress
	}
	return sdk.Address(*ptr)
}

// TokenAddress is the ledger whose balances count as voting power.
func (g *Governor) TokenAddress(c *Context) sdk.Address { return g.pointer(c, kGovToken) }

// TreasuryAddress is where passed proposals get paid from.
func (g *Governor) TreasuryAddress(c *Context) sdk.Address { return g.pointer(c, kGovTreasury) }

// SetTreasury re-points the treasury. Administrator only.
func (g *Governor) SetTreasury(c *Context, treasury sdk.Address) error {
	st, err := requireOwner(c, g.addr)
	if err != nil {
		return err
	}
	if treasury.IsNull() {
		return ErrInvalidAddress
	}
	prev := g.TreasuryAddress(c)
	st.Set(singleKey(kGovTreasury), treasury.String())
	emitAddressChanged(c, "treasury", prev, treasury)
	return nil
}

func (g *Governor) ledger(c *Context) (*Ledger, error) {
	addr := g.TokenAddress(c)
	l, ok := c.Engine().Ledger(addr)
	if !ok {
		return nil, fmt.Errorf("%w: token %s", ErrUnknownContract, addr)
	}
	return l, nil
}

func (g *Governor) treasury(c *Context) (*Treasury, error) {
	addr := g.TreasuryAddress(c)
	t, ok := c.Engine().Treasury(addr)
	if !ok {
		return nil, fmt.Errorf("%w: treasury %s", ErrUnknownContract, addr)
	}
	return t, nil
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config returns the current global parameters.
func (g *Governor) Config(c *Context) (dao.GovernorConfig, error) {
	ptr := c.state(g.addr).Get(singleKey(kGovConfig))
	if ptr == nil {
		return dao.GovernorConfig{}, ErrNotInitialized
	}
	cfg, err := dao.DecodeGovernorConfig([]byte(*ptr))
	if err != nil {
		return dao.GovernorConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return *cfg, nil
}

// UpdateConfiguration replaces threshold, period and quorum. New periods only
// apply to proposals created afterwards; the quorum is read at execution.
func (g *Governor) UpdateConfiguration(c *Context, cfg dao.GovernorConfig) error {
	st, err := requireOwner(c, g.addr)
	if err != nil {
		return err
	}
	if cfg.VotingPeriod <= 0 {
		return ErrInvalidPeriod
	}
	st.Set(singleKey(kGovConfig), string(dao.EncodeGovernorConfig(&cfg)))
	emitConfigUpdated(c, &cfg)
	return nil
}

// -----------------------------------------------------------------------------
// Proposal storage
// -----------------------------------------------------------------------------

func (g *Governor) saveProposal(c *Context, p *dao.Proposal) {
	c.state(g.addr).Set(proposalKey(p.ID), string(dao.EncodeProposal(p)))
}

// GetProposal loads a proposal or fails with ErrProposalNotFound.
func (g *Governor) GetProposal(c *Context, id uint64) (*dao.Proposal, error) {
	ptr := c.state(g.addr).Get(proposalKey(id))
	if ptr == nil {
		return nil, ErrProposalNotFound
	}
	p, err := dao.DecodeProposal([]byte(*ptr))
	if err != nil {
		return nil, fmt.Errorf("decode proposal %d: %w", id, err)
	}
	return p, nil
}

// ProposalCount is the number of proposals ever created (ids are 0..n-1).
func (g *Governor) ProposalCount(c *Context) uint64 {
	return getCount(c.state(g.addr), ProposalsCount)
}

// Receipt returns the vote of voter on id; HasVoted is false if none.
func (g *Governor) Receipt(c *Context, id uint64, voter sdk.Address) (dao.Receipt, error) {
	rc, err := loadReceipt(c.state(g.addr), id, voter)
	if err != nil || rc == nil {
		return dao.Receipt{}, err
	}
	return *rc, nil
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// CreateProposal opens a spending proposal; voting starts right away.
// Example payload: {"description":"pay the relay","recipient":"hive:bob","amount":1,"token":"native"}
func (g *Governor) CreateProposal(c *Context, description string, recipient sdk.Address, amount uint64, token sdk.Asset) (uint64, error) {
	cfg, err := g.Config(c)
	if err != nil {
		return 0, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return 0, ErrEmptyDescription
	}
	if len(description) > MaxDescriptionLength {
		return 0, fmt.Errorf("%w: description longer than %d", ErrInvalidInput, MaxDescriptionLength)
	}
	if recipient.IsNull() {
		return 0, ErrInvalidRecipient
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	ledger, err := g.ledger(c)
	if err != nil {
		return 0, err
	}
	proposer := c.Caller()
	if power := ledger.VotingPowerOf(c, proposer); power < cfg.ProposalThreshold {
		return 0, fmt.Errorf("%w: voting power %d, threshold %d", ErrBelowThreshold, power, cfg.ProposalThreshold)
	}
	if token.IsNative() {
		token = sdk.AssetNative
	} else if _, ok := c.Engine().Ledger(token.Token()); !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidToken, token)
	}
	now := c.Now()
	if now > 0 && cfg.VotingPeriod > math.MaxInt64-now {
		return 0, fmt.Errorf("%w: voting period %d from %d", ErrOverflow, cfg.VotingPeriod, now)
	}
	p := &dao.Proposal{
		ID:          nextID(c.state(g.addr), ProposalsCount),
		Proposer:    proposer,
		Description: description,
		StartTime:   now,
		EndTime:     now + cfg.VotingPeriod,
		Recipient:   recipient,
		Amount:      amount,
		Token:       token,
		Tx:          c.TxID(),
	}
	g.saveProposal(c, p)
	emitProposalCreatedEvent(c, p)
	return p.ID, nil
}

// Vote adds the caller's current voting power to one side.
func (g *Governor) Vote(c *Context, id uint64, support bool) error {
	p, err := g.GetProposal(c, id)
	if err != nil {
		return err
	}
	now := c.Now()
	if now < p.StartTime {
		return ErrVotingNotStarted
	}
	if now >= p.EndTime {
		return ErrVotingEnded
	}
	st := c.state(g.addr)
	voter := c.Caller()
	prev, err := loadReceipt(st, id, voter)
	if err != nil {
		return err
	}
	if prev != nil && prev.HasVoted {
		return ErrAlreadyVoted
	}
	if p.Canceled {
		return ErrProposalCanceled
	}
	if p.Executed {
		return ErrAlreadyExecuted
	}
	ledger, err := g.ledger(c)
	if err != nil {
		return err
	}
	weight := ledger.VotingPowerOf(c, voter)
	if weight == 0 {
		return ErrNoVotingPower
	}
	var ok bool
	if support {
		p.ForVotes, ok = addAmount(p.ForVotes, weight)
	} else {
		p.AgainstVotes, ok = addAmount(p.AgainstVotes, weight)
	}
	if !ok {
		return ErrOverflow
	}
	saveReceipt(st, id, voter, &dao.Receipt{HasVoted: true, Support: support, Weight: weight, VotedAt: now})
	g.saveProposal(c, p)
	emitVoteCasted(c, id, voter, support, weight)
	return nil
}

// checkOutcome is the shared gate of ExecuteProposal, ProposalPassed and
// State: window closed, not terminal, quorum met, more for than against.
// The quorum is the one configured now, not at creation.
func (g *Governor) checkOutcome(c *Context, p *dao.Proposal) error {
	if c.Now() < p.EndTime {
		return ErrVotingNotEnded
	}
	if p.Executed {
		return ErrAlreadyExecuted
	}
	if p.Canceled {
		return ErrProposalCanceled
	}
	cfg, err := g.Config(c)
	if err != nil {
		return err
	}
	if p.TotalVotes() < cfg.QuorumVotes {
		return fmt.Errorf("%w: %d of %d votes", ErrQuorumNotReached, p.TotalVotes(), cfg.QuorumVotes)
	}
	if p.ForVotes <= p.AgainstVotes {
		return ErrProposalNotPassed
	}
	return nil
}

// ExecuteProposal pays out a passed proposal; anyone may call it after the
// window closed. The executed flag is written before the treasury is called
// so reentrant executions and cancellations bounce; if either treasury call
// fails the whole call fails and the flag is never committed.
func (g *Governor) ExecuteProposal(c *Context, id uint64) error {
	p, err := g.GetProposal(c, id)
	if err != nil {
		return err
	}
	if err := g.checkOutcome(c, p); err != nil {
		return err
	}
	treasury, err := g.treasury(c)
	if err != nil {
		return err
	}
	p.Executed = true
	g.saveProposal(c, p)

	// an approval left over from an earlier, non-atomic attempt is reused
	if !treasury.IsApproved(c, id) {
		if err := c.Invoke(treasury.Address(), func(tc *Context) error {
			return treasury.Approve(tc, id)
		}); err != nil {
			return fmt.Errorf("treasury approve %d: %w", id, err)
		}
	}
	if err := c.Invoke(treasury.Address(), func(tc *Context) error {
		return treasury.Spend(tc, id, p.Recipient, p.Amount, p.Token)
	}); err != nil {
		return fmt.Errorf("treasury spend %d: %w", id, err)
	}
	emitProposalExecuted(c, p)
	return nil
}

// CancelProposal is open to the proposer and the administrator, at any time
// before execution.
func (g *Governor) CancelProposal(c *Context, id uint64) error {
	p, err := g.GetProposal(c, id)
	if err != nil {
		return err
	}
	caller := c.Caller()
	if caller != p.Proposer && caller != g.Owner(c) {
		return ErrUnauthorized
	}
	if p.Executed {
		return ErrAlreadyExecuted
	}
	if p.Canceled {
		return ErrAlreadyCanceled
	}
	p.Canceled = true
	g.saveProposal(c, p)
	emitProposalCanceled(c, id, caller)
	return nil
}

// ProposalPassed is true only for an unfinalized proposal whose window closed
// with quorum and a for-majority.
func (g *Governor) ProposalPassed(c *Context, id uint64) bool {
	p, err := g.GetProposal(c, id)
	if err != nil {
		return false
	}
	return g.checkOutcome(c, p) == nil
}

// State derives the lifecycle state of id from the record and the clock.
func (g *Governor) State(c *Context, id uint64) (dao.ProposalState, error) {
	p, err := g.GetProposal(c, id)
	if err != nil {
		return dao.ProposalPending, err
	}
	now := c.Now()
	switch {
	case p.Executed:
		return dao.ProposalExecuted, nil
	case p.Canceled:
		return dao.ProposalCanceled, nil
	case now < p.StartTime:
		return dao.ProposalPending, nil
	case now < p.EndTime:
		return dao.ProposalActive, nil
	case g.checkOutcome(c, p) == nil:
		return dao.ProposalSucceeded, nil
	default:
		return dao.ProposalDefeated, nil
	}
}
