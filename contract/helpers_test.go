package contract_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"okinoko_governor/contract"
	"okinoko_governor/contract/dao"
	"okinoko_governor/sdk"
)

const (
	adminAddress    = sdk.Address("hive:tibfox")
	tokenAddress    = sdk.Address("contract:okv")
	treasuryAddress = sdk.Address("contract:treasury")
	governorAddress = sdk.Address("contract:governor")
	defaultPeriod   = int64(3 * 24 * 60 * 60)
)

var defaultTimestamp = time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)

// testDAO is one engine with a ledger, a treasury and a governor wired to
// each other, plus a clock that only moves when the test says so.
type testDAO struct {
	t        *testing.T
	store    *contract.MemoryStore
	engine   *contract.Engine
	ledger   *contract.Ledger
	treasury *contract.Treasury
	governor *contract.Governor
	events   []contract.Event
	now      time.Time
	txCount  int
}

func defaultConfig() dao.GovernorConfig {
	return dao.GovernorConfig{ProposalThreshold: 1, VotingPeriod: defaultPeriod, QuorumVotes: 1}
}

// SetupDAO deploys and initializes the three contracts with the admin as owner.
func SetupDAO(t *testing.T, cfg dao.GovernorConfig) *testDAO {
	t.Helper()
	d := SetupEngine(t)
	var err error
	d.ledger, err = d.engine.DeployLedger(tokenAddress)
	require.NoError(t, err)
	d.treasury, err = d.engine.DeployTreasury(treasuryAddress)
	require.NoError(t, err)
	d.governor, err = d.engine.DeployGovernor(governorAddress)
	require.NoError(t, err)

	d.mustExec(adminAddress, tokenAddress, func(c *contract.Context) error {
		return d.ledger.Init(c, "Okinoko Vote", "OKV")
	})
	d.mustExec(adminAddress, treasuryAddress, func(c *contract.Context) error {
		return d.treasury.Init(c, governorAddress)
	})
	d.mustExec(adminAddress, governorAddress, func(c *contract.Context) error {
		return d.governor.Init(c, tokenAddress, treasuryAddress, cfg)
	})
	d.events = nil
	return d
}

// SetupEngine is a bare engine on a memory store that records every event.
func SetupEngine(t *testing.T) *testDAO {
	t.Helper()
	d := &testDAO{t: t, store: contract.NewMemoryStore(), now: defaultTimestamp}
	d.engine = contract.NewEngine(d.store, contract.WithEventSink(contract.EventSinkFunc(func(evt contract.Event) {
		d.events = append(d.events, evt)
	})))
	return d
}

func (d *testDAO) env(sender sdk.Address) sdk.Env {
	d.txCount++
	env := sdk.NewEnv(sender, fmt.Sprintf("tx-%d", d.txCount), d.now)
	env.BlockHeight = uint64(d.txCount)
	return env
}

// advance moves the block clock forward.
func (d *testDAO) advance(by time.Duration) {
	d.now = d.now.Add(by)
}

func (d *testDAO) exec(sender, target sdk.Address, fn func(*contract.Context) error) error {
	return d.engine.Execute(context.Background(), d.env(sender), target, fn)
}

func (d *testDAO) mustExec(sender, target sdk.Address, fn func(*contract.Context) error) {
	d.t.Helper()
	require.NoError(d.t, d.exec(sender, target, fn))
}

func (d *testDAO) view(fn func(*contract.Context)) {
	d.t.Helper()
	require.NoError(d.t, d.engine.View(context.Background(), d.env(adminAddress), governorAddress, func(c *contract.Context) error {
		fn(c)
		return nil
	}))
}

// -----------------------------------------------------------------------------
// contract shortcuts
// -----------------------------------------------------------------------------

func (d *testDAO) mint(to sdk.Address, amount uint64) {
	d.t.Helper()
	d.mustExec(adminAddress, tokenAddress, func(c *contract.Context) error {
		return d.ledger.Mint(c, to, amount)
	})
}

func (d *testDAO) transfer(from, to sdk.Address, amount uint64) error {
	return d.exec(from, tokenAddress, func(c *contract.Context) error {
		return d.ledger.Transfer(c, to, amount)
	})
}

func (d *testDAO) balance(account sdk.Address) uint64 {
	var bal uint64
	d.view(func(c *contract.Context) { bal = d.ledger.BalanceOf(c, account) })
	return bal
}

func (d *testDAO) supply() uint64 {
	var s uint64
	d.view(func(c *contract.Context) { s = d.ledger.TotalSupply(c) })
	return s
}

func (d *testDAO) nativeBalance(account sdk.Address) uint64 {
	var bal uint64
	d.view(func(c *contract.Context) { bal = c.NativeBalance(account) })
	return bal
}

func (d *testDAO) deposit(to sdk.Address, amount uint64) {
	d.t.Helper()
	require.NoError(d.t, d.engine.Deposit(context.Background(), d.env(adminAddress), to, amount))
}

func (d *testDAO) fundTreasury(from sdk.Address, amount uint64) {
	d.t.Helper()
	d.mustExec(from, treasuryAddress, func(c *contract.Context) error {
		return d.treasury.Fund(c, amount)
	})
}

func (d *testDAO) propose(proposer, recipient sdk.Address, amount uint64, asset sdk.Asset) (uint64, error) {
	var id uint64
	err := d.exec(proposer, governorAddress, func(c *contract.Context) error {
		var err error
		id, err = d.governor.CreateProposal(c, "pay the relay operator", recipient, amount, asset)
		return err
	})
	return id, err
}

func (d *testDAO) mustPropose(proposer, recipient sdk.Address, amount uint64, asset sdk.Asset) uint64 {
	d.t.Helper()
	id, err := d.propose(proposer, recipient, amount, asset)
	require.NoError(d.t, err)
	return id
}

func (d *testDAO) vote(voter sdk.Address, id uint64, support bool) error {
	return d.exec(voter, governorAddress, func(c *contract.Context) error {
		return d.governor.Vote(c, id, support)
	})
}

func (d *testDAO) execute(caller sdk.Address, id uint64) error {
	return d.exec(caller, governorAddress, func(c *contract.Context) error {
		return d.governor.ExecuteProposal(c, id)
	})
}

func (d *testDAO) cancel(caller sdk.Address, id uint64) error {
	return d.exec(caller, governorAddress, func(c *contract.Context) error {
		return d.governor.CancelProposal(c, id)
	})
}

func (d *testDAO) proposal(id uint64) *dao.Proposal {
	d.t.Helper()
	var p *dao.Proposal
	d.view(func(c *contract.Context) {
		var err error
		p, err = d.governor.GetProposal(c, id)
		require.NoError(d.t, err)
	})
	return p
}

func (d *testDAO) state(id uint64) dao.ProposalState {
	d.t.Helper()
	var s dao.ProposalState
	d.view(func(c *contract.Context) {
		var err error
		s, err = d.governor.State(c, id)
		require.NoError(d.t, err)
	})
	return s
}

// eventCodes returns the codes of the recorded events in delivery order.
func (d *testDAO) eventCodes() []string {
	codes := make([]string, 0, len(d.events))
	for _, evt := range d.events {
		codes = append(codes, evt.Code)
	}
	return codes
}

func (d *testDAO) lastEvent(code string) (contract.Event, bool) {
	for i := len(d.events) - 1; i >= 0; i-- {
		if d.events[i].Code == code {
			return d.events[i], true
		}
	}
	return contract.Event{}, false
}
