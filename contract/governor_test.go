package contract_test

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okinoko_governor/contract"
	"okinoko_governor/contract/dao"
	"okinoko_governor/sdk"
)

const (
	holderA = sdk.Address("hive:someone")
	holderB = sdk.Address("hive:someoneelse")
	holderC = sdk.Address("hive:member2")
)

var votingPeriod = time.Duration(defaultPeriod) * time.Second

// setupHolders mints 1,000,000 to the admin and hands out 50k/30k/20k.
func setupHolders(t *testing.T, cfg dao.GovernorConfig) *testDAO {
	d := SetupDAO(t, cfg)
	d.mint(adminAddress, 1_000_000)
	require.NoError(t, d.transfer(adminAddress, holderA, 50_000))
	require.NoError(t, d.transfer(adminAddress, holderB, 30_000))
	require.NoError(t, d.transfer(adminAddress, holderC, 20_000))
	d.events = nil
	return d
}

// =============================================================================
// Setup Tests
// =============================================================================

func TestGovernorInitValidation(t *testing.T) {
	d := SetupDAO(t, defaultConfig())
	g, err := d.engine.DeployGovernor("contract:governor2")
	require.NoError(t, err)
	initWith := func(token, treasury sdk.Address, cfg dao.GovernorConfig) error {
		return d.exec(adminAddress, g.Address(), func(c *contract.Context) error {
			return g.Init(c, token, treasury, cfg)
		})
	}
	assert.ErrorIs(t, initWith("contract:nope", treasuryAddress, defaultConfig()), contract.ErrInvalidToken)
	assert.ErrorIs(t, initWith(tokenAddress, sdk.NullAddress, defaultConfig()), contract.ErrInvalidAddress)
	assert.ErrorIs(t, initWith(tokenAddress, treasuryAddress, dao.GovernorConfig{VotingPeriod: 0}), contract.ErrInvalidPeriod)

	require.NoError(t, initWith(tokenAddress, treasuryAddress, defaultConfig()))
	assert.ErrorIs(t, initWith(tokenAddress, treasuryAddress, defaultConfig()), contract.ErrInitialized)
}

// TestDeployAddressTaken checks one address cannot host two contracts.
func TestDeployAddressTaken(t *testing.T) {
	d := SetupDAO(t, defaultConfig())
	_, err := d.engine.DeployLedger(governorAddress)
	assert.Error(t, err)
	_, err = d.engine.DeployGovernor(sdk.NullAddress)
	assert.ErrorIs(t, err, contract.ErrInvalidAddress)
}

// =============================================================================
// Proposal Lifecycle Tests
// =============================================================================

// TestProposalLifecycle checks the full fund-and-execute flow so we dont break it again.
func TestProposalLifecycle(t *testing.T) {
	d := setupHolders(t, dao.GovernorConfig{ProposalThreshold: 1_000, VotingPeriod: defaultPeriod, QuorumVotes: 10_000})

	id := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)
	assert.Equal(t, uint64(0), id)
	require.NoError(t, d.vote(holderB, id, true))
	require.NoError(t, d.vote(holderC, id, false))
	assert.Equal(t, dao.ProposalActive, d.state(id))

	p := d.proposal(id)
	assert.Equal(t, uint64(30_000), p.ForVotes)
	assert.Equal(t, uint64(20_000), p.AgainstVotes)

	d.advance(votingPeriod)
	assert.Equal(t, dao.ProposalSucceeded, d.state(id))

	// the treasury is empty, nothing may stick
	err := d.execute(holderC, id)
	assert.ErrorIs(t, err, contract.ErrInsufficientFunds)
	assert.False(t, d.proposal(id).Executed)
	d.view(func(c *contract.Context) {
		assert.False(t, d.treasury.IsApproved(c, id))
		assert.True(t, d.governor.ProposalPassed(c, id))
	})

	d.deposit(holderB, 5)
	d.fundTreasury(holderB, 1)
	require.NoError(t, d.execute(holderC, id))

	assert.Equal(t, uint64(1), d.nativeBalance(holderA))
	assert.Zero(t, d.nativeBalance(treasuryAddress))
	assert.True(t, d.proposal(id).Executed)
	assert.Equal(t, dao.ProposalExecuted, d.state(id))
	d.view(func(c *contract.Context) {
		assert.True(t, d.treasury.IsApproved(c, id))
		assert.True(t, d.treasury.IsSpent(c, id))
		assert.False(t, d.governor.ProposalPassed(c, id))
	})

	codes := d.eventCodes()
	require.GreaterOrEqual(t, len(codes), 3)
	assert.Equal(t, []string{contract.EventProposalApproved, contract.EventFundsRemoved, contract.EventProposalExecuted}, codes[len(codes)-3:])

	assert.ErrorIs(t, d.execute(holderC, id), contract.ErrAlreadyExecuted)
	assert.ErrorIs(t, d.cancel(holderA, id), contract.ErrAlreadyExecuted)
}

// TestExecuteReusesEarlierApproval checks a half finished sequence is retryable.
func TestExecuteReusesEarlierApproval(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	id := d.mustPropose(holderA, holderB, 10, sdk.AssetNative)
	require.NoError(t, d.vote(holderA, id, true))
	d.advance(votingPeriod)

	// an approval already sitting on the treasury side
	require.NoError(t, d.approve(governorAddress, id))
	d.deposit(treasuryAddress, 10)
	require.NoError(t, d.execute(holderA, id))
	assert.Equal(t, uint64(10), d.nativeBalance(holderB))
}

func TestExecuteTokenProposal(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	require.NoError(t, d.transfer(adminAddress, treasuryAddress, 5_000))

	id := d.mustPropose(holderA, holderC, 2_500, sdk.TokenAsset(tokenAddress))
	require.NoError(t, d.vote(holderA, id, true))
	d.advance(votingPeriod)
	require.NoError(t, d.execute(holderA, id))

	assert.Equal(t, uint64(2_500), d.balance(treasuryAddress))
	assert.Equal(t, uint64(22_500), d.balance(holderC))
}

// =============================================================================
// Proposal Creation Tests
// =============================================================================

func TestCreateProposalValidation(t *testing.T) {
	d := setupHolders(t, dao.GovernorConfig{ProposalThreshold: 25_000, VotingPeriod: defaultPeriod, QuorumVotes: 1})
	create := func(proposer sdk.Address, desc string, recipient sdk.Address, amount uint64, asset sdk.Asset) error {
		return d.exec(proposer, governorAddress, func(c *contract.Context) error {
			_, err := d.governor.CreateProposal(c, desc, recipient, amount, asset)
			return err
		})
	}

	assert.ErrorIs(t, create(holderA, "   ", holderA, 1, sdk.AssetNative), contract.ErrEmptyDescription)
	assert.ErrorIs(t, create(holderA, strings.Repeat("x", contract.MaxDescriptionLength+1), holderA, 1, sdk.AssetNative), contract.ErrInvalidInput)
	assert.ErrorIs(t, create(holderA, "pay", sdk.NullAddress, 1, sdk.AssetNative), contract.ErrInvalidRecipient)
	assert.ErrorIs(t, create(holderA, "pay", holderA, 0, sdk.AssetNative), contract.ErrInvalidAmount)
	assert.ErrorIs(t, create(holderA, "pay", holderA, 1, sdk.TokenAsset("contract:nope")), contract.ErrInvalidToken)

	err := create(holderC, "pay", holderC, 1, sdk.AssetNative)
	assert.ErrorIs(t, err, contract.ErrBelowThreshold)
	assert.ErrorIs(t, err, contract.ErrUnauthorized)

	d.view(func(c *contract.Context) {
		assert.Zero(t, d.governor.ProposalCount(c))
	})
	require.NoError(t, create(holderA, "  pay  ", holderA, 1, ""))
	p := d.proposal(0)
	assert.Equal(t, "pay", p.Description)
	assert.Equal(t, sdk.AssetNative, p.Token)
	assert.Equal(t, holderA, p.Proposer)
}

// TestHugeVotingPeriodOverflows checks a period that would wrap EndTime is
// refused instead of opening a proposal that is already closed.
func TestHugeVotingPeriodOverflows(t *testing.T) {
	d := setupHolders(t, dao.GovernorConfig{ProposalThreshold: 1, VotingPeriod: math.MaxInt64, QuorumVotes: 1})

	_, err := d.propose(holderA, holderA, 1, sdk.AssetNative)
	assert.ErrorIs(t, err, contract.ErrOverflow)
	d.view(func(c *contract.Context) {
		assert.Zero(t, d.governor.ProposalCount(c))
	})

	d.mustExec(adminAddress, governorAddress, func(c *contract.Context) error {
		return d.governor.UpdateConfiguration(c, dao.GovernorConfig{ProposalThreshold: 1, VotingPeriod: defaultPeriod, QuorumVotes: 1})
	})
	id := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)
	p := d.proposal(id)
	assert.Greater(t, p.EndTime, p.StartTime)
	require.NoError(t, d.vote(holderA, id, true))
}

// TestProposalIDsAreSequential checks ids start at 0 and never repeat.
func TestProposalIDsAreSequential(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	for want := uint64(0); want < 3; want++ {
		assert.Equal(t, want, d.mustPropose(holderA, holderA, 1, sdk.AssetNative))
	}
	d.view(func(c *contract.Context) {
		assert.Equal(t, uint64(3), d.governor.ProposalCount(c))
	})

	p := d.proposal(2)
	assert.Equal(t, d.now.Unix(), p.StartTime)
	assert.Equal(t, d.now.Unix()+defaultPeriod, p.EndTime)

	evt, ok := d.lastEvent(contract.EventProposalCreated)
	require.True(t, ok)
	assert.Equal(t, "2", evt.Field("id"))
	assert.Equal(t, holderA.String(), evt.Field("by"))
	assert.Equal(t, "native", evt.Field("as"))
	assert.Equal(t, "pay the relay operator", evt.Field("d"))
}

// =============================================================================
// Voting Tests
// =============================================================================

// TestVotingWindow checks [start, end) so we dont break it again.
func TestVotingWindow(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	id := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)

	// the start second itself is inside
	require.NoError(t, d.vote(holderA, id, true))
	d.advance(votingPeriod - time.Second)
	require.NoError(t, d.vote(holderB, id, true))
	d.advance(time.Second)
	assert.ErrorIs(t, d.vote(holderC, id, false), contract.ErrVotingEnded)
	assert.ErrorIs(t, d.vote(holderC, id, false), contract.ErrWindowClosed)
}

func TestVoteRules(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	id := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)

	assert.ErrorIs(t, d.vote(holderA, 42, true), contract.ErrProposalNotFound)
	assert.ErrorIs(t, d.vote(holderA, 42, true), contract.ErrNotFound)
	assert.ErrorIs(t, d.vote("hive:outsider", id, true), contract.ErrNoVotingPower)

	require.NoError(t, d.vote(holderB, id, false))
	assert.ErrorIs(t, d.vote(holderB, id, true), contract.ErrAlreadyVoted)

	d.view(func(c *contract.Context) {
		rc, err := d.governor.Receipt(c, id, holderB)
		require.NoError(t, err)
		assert.True(t, rc.HasVoted)
		assert.False(t, rc.Support)
		assert.Equal(t, uint64(30_000), rc.Weight)
		assert.Equal(t, d.now.Unix(), rc.VotedAt)

		none, err := d.governor.Receipt(c, id, holderC)
		require.NoError(t, err)
		assert.False(t, none.HasVoted)
	})

	evt, ok := d.lastEvent(contract.EventVoteCast)
	require.True(t, ok)
	assert.Equal(t, "30000", evt.Field("w"))
	assert.Equal(t, "false", evt.Field("s"))
}

// TestVotingPowerIsLive checks that weight is read when the vote is cast,
// not when the proposal was created.
func TestVotingPowerIsLive(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	id := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)

	require.NoError(t, d.transfer(holderA, holderC, 40_000))
	require.NoError(t, d.vote(holderC, id, true))
	require.NoError(t, d.vote(holderA, id, true))

	p := d.proposal(id)
	assert.Equal(t, uint64(60_000+10_000), p.ForVotes)
}

// TestDelegatedPowerVotes checks that delegated units count for the delegate.
func TestDelegatedPowerVotes(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	id := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)

	require.NoError(t, d.delegate(holderA, "hive:dave", 10_000))
	require.NoError(t, d.vote("hive:dave", id, false))
	assert.Equal(t, uint64(10_000), d.proposal(id).AgainstVotes)
}

// =============================================================================
// Outcome Tests
// =============================================================================

func TestExecuteBeforeWindowCloses(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	id := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)
	require.NoError(t, d.vote(holderA, id, true))

	assert.ErrorIs(t, d.execute(holderA, id), contract.ErrVotingNotEnded)
	assert.ErrorIs(t, d.execute(holderA, 99), contract.ErrProposalNotFound)
	d.view(func(c *contract.Context) {
		assert.False(t, d.governor.ProposalPassed(c, id))
		assert.False(t, d.governor.ProposalPassed(c, 99))
	})
}

// TestTieIsNotPassed checks for must be strictly above against.
func TestTieIsNotPassed(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	require.NoError(t, d.transfer(holderA, holderB, 10_000))
	id := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)
	require.NoError(t, d.vote(holderA, id, false))
	require.NoError(t, d.vote(holderB, id, true))
	d.advance(votingPeriod)

	assert.ErrorIs(t, d.execute(holderA, id), contract.ErrProposalNotPassed)
	assert.ErrorIs(t, d.execute(holderA, id), contract.ErrNotPassed)
	assert.Equal(t, dao.ProposalDefeated, d.state(id))
}

// TestQuorumReadAtExecution checks that the quorum in force at execution
// decides, not the one at creation.
func TestQuorumReadAtExecution(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	d.deposit(treasuryAddress, 100)
	id := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)
	require.NoError(t, d.vote(holderC, id, true))
	d.advance(votingPeriod)

	update := func(quorum uint64) {
		d.mustExec(adminAddress, governorAddress, func(c *contract.Context) error {
			return d.governor.UpdateConfiguration(c, dao.GovernorConfig{ProposalThreshold: 1, VotingPeriod: defaultPeriod, QuorumVotes: quorum})
		})
	}
	update(20_001)
	assert.ErrorIs(t, d.execute(holderA, id), contract.ErrQuorumNotReached)
	assert.Equal(t, dao.ProposalDefeated, d.state(id))

	update(20_000)
	assert.Equal(t, dao.ProposalSucceeded, d.state(id))
	require.NoError(t, d.execute(holderA, id))
}

// TestPeriodChangeOnlyAffectsNewProposals checks stamped windows stay put.
func TestPeriodChangeOnlyAffectsNewProposals(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	first := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)
	d.mustExec(adminAddress, governorAddress, func(c *contract.Context) error {
		return d.governor.UpdateConfiguration(c, dao.GovernorConfig{ProposalThreshold: 1, VotingPeriod: 60, QuorumVotes: 1})
	})
	second := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)

	assert.Equal(t, defaultPeriod, d.proposal(first).EndTime-d.proposal(first).StartTime)
	assert.Equal(t, int64(60), d.proposal(second).EndTime-d.proposal(second).StartTime)

	d.advance(time.Minute)
	require.NoError(t, d.vote(holderB, first, true))
	assert.ErrorIs(t, d.vote(holderB, second, true), contract.ErrVotingEnded)
}

func TestUpdateConfiguration(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	cfg := dao.GovernorConfig{ProposalThreshold: 7, VotingPeriod: 120, QuorumVotes: 9}
	update := func(caller sdk.Address, cfg dao.GovernorConfig) error {
		return d.exec(caller, governorAddress, func(c *contract.Context) error {
			return d.governor.UpdateConfiguration(c, cfg)
		})
	}
	assert.ErrorIs(t, update(holderA, cfg), contract.ErrUnauthorized)
	assert.ErrorIs(t, update(adminAddress, dao.GovernorConfig{VotingPeriod: -1}), contract.ErrInvalidPeriod)
	require.NoError(t, update(adminAddress, cfg))

	d.view(func(c *contract.Context) {
		got, err := d.governor.Config(c)
		require.NoError(t, err)
		assert.Equal(t, cfg, got)
	})
	evt, ok := d.lastEvent(contract.EventConfigUpdated)
	require.True(t, ok)
	assert.Equal(t, "7", evt.Field("th"))
	assert.Equal(t, "120", evt.Field("vp"))
	assert.Equal(t, "9", evt.Field("q"))
}

// =============================================================================
// Cancel Tests
// =============================================================================

func TestCancelRules(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	id := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)

	assert.ErrorIs(t, d.cancel(holderB, id), contract.ErrUnauthorized)
	assert.ErrorIs(t, d.cancel(holderB, 5), contract.ErrProposalNotFound)
	require.NoError(t, d.cancel(holderA, id))
	assert.ErrorIs(t, d.cancel(holderA, id), contract.ErrAlreadyCanceled)
	assert.ErrorIs(t, d.vote(holderB, id, true), contract.ErrProposalCanceled)
	assert.Equal(t, dao.ProposalCanceled, d.state(id))

	d.advance(votingPeriod)
	assert.ErrorIs(t, d.execute(holderA, id), contract.ErrProposalCanceled)

	p := d.proposal(id)
	assert.True(t, p.Canceled)
	assert.False(t, p.Executed)
}

// TestAdminCancelsAfterWindow checks there is no time restriction on cancel.
func TestAdminCancelsAfterWindow(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	id := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)
	require.NoError(t, d.vote(holderA, id, true))
	d.advance(2 * votingPeriod)

	require.NoError(t, d.cancel(adminAddress, id))
	evt, ok := d.lastEvent(contract.EventProposalCanceled)
	require.True(t, ok)
	assert.Equal(t, adminAddress.String(), evt.Field("by"))
}

// =============================================================================
// Reentrancy Tests
// =============================================================================

// TestReentrantExecute has the payout recipient try to execute and cancel the
// same proposal again while the treasury is paying it.
func TestReentrantExecute(t *testing.T) {
	const evil = sdk.Address("hive:evil")
	d := setupHolders(t, defaultConfig())
	require.NoError(t, d.transfer(holderA, evil, 1_000))
	d.deposit(treasuryAddress, 100)

	id := d.mustPropose(evil, evil, 10, sdk.AssetNative)
	require.NoError(t, d.vote(holderA, id, true))
	d.advance(votingPeriod)

	var executeErr, cancelErr, spendErr error
	d.engine.OnReceive(evil, func(c *contract.Context, from sdk.Address, amount uint64) error {
		executeErr = c.Invoke(governorAddress, func(gc *contract.Context) error {
			return d.governor.ExecuteProposal(gc, id)
		})
		cancelErr = c.Invoke(governorAddress, func(gc *contract.Context) error {
			return d.governor.CancelProposal(gc, id)
		})
		spendErr = c.Invoke(governorAddress, func(gc *contract.Context) error {
			return gc.Invoke(treasuryAddress, func(tc *contract.Context) error {
				return d.treasury.Spend(tc, id, evil, 10, sdk.AssetNative)
			})
		})
		return nil
	})

	require.NoError(t, d.execute(holderB, id))
	assert.ErrorIs(t, executeErr, contract.ErrAlreadyExecuted)
	assert.ErrorIs(t, cancelErr, contract.ErrAlreadyExecuted)
	assert.ErrorIs(t, spendErr, contract.ErrAlreadyExecuted)

	assert.Equal(t, uint64(10), d.nativeBalance(evil))
	assert.Equal(t, uint64(90), d.nativeBalance(treasuryAddress))
	p := d.proposal(id)
	assert.True(t, p.Executed)
	assert.False(t, p.Canceled)
}

// TestRejectedPayoutKeepsProposalRetryable checks that a failing transfer
// leaves neither the governor nor the treasury flags behind.
func TestRejectedPayoutKeepsProposalRetryable(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	d.deposit(treasuryAddress, 100)
	id := d.mustPropose(holderA, "hive:picky", 10, sdk.AssetNative)
	require.NoError(t, d.vote(holderA, id, true))
	d.advance(votingPeriod)

	d.engine.OnReceive("hive:picky", func(c *contract.Context, from sdk.Address, amount uint64) error {
		return assert.AnError
	})
	before := len(d.events)
	assert.ErrorIs(t, d.execute(holderA, id), contract.ErrTransferFailed)
	assert.Len(t, d.events, before)
	assert.False(t, d.proposal(id).Executed)
	d.view(func(c *contract.Context) {
		assert.False(t, d.treasury.IsApproved(c, id))
		assert.False(t, d.treasury.IsSpent(c, id))
	})

	d.engine.OnReceive("hive:picky", nil)
	require.NoError(t, d.execute(holderA, id))
	assert.Equal(t, uint64(10), d.nativeBalance("hive:picky"))
}

func TestSetTreasury(t *testing.T) {
	d := setupHolders(t, defaultConfig())
	set := func(caller, treasury sdk.Address) error {
		return d.exec(caller, governorAddress, func(c *contract.Context) error {
			return d.governor.SetTreasury(c, treasury)
		})
	}
	assert.ErrorIs(t, set(holderA, "contract:t2"), contract.ErrUnauthorized)
	assert.ErrorIs(t, set(adminAddress, sdk.NullAddress), contract.ErrInvalidAddress)
	require.NoError(t, set(adminAddress, "contract:t2"))
	d.view(func(c *contract.Context) {
		assert.Equal(t, sdk.Address("contract:t2"), d.governor.TreasuryAddress(c))
	})

	// the new address is not a deployed treasury, execution has nowhere to go
	id := d.mustPropose(holderA, holderA, 1, sdk.AssetNative)
	require.NoError(t, d.vote(holderA, id, true))
	d.advance(votingPeriod)
	assert.ErrorIs(t, d.execute(holderA, id), contract.ErrUnknownContract)
}
