package contract

import "okinoko_governor/sdk"

// -----------------------------------------------------------------------------
// Limits
// -----------------------------------------------------------------------------

const (
	// MaxDescriptionLength caps proposal descriptions.
	MaxDescriptionLength = 4096
	// MaxCallDepth bounds nested contract calls (reentrancy included).
	MaxCallDepth = 16
)

// -----------------------------------------------------------------------------
// Default/Fallback Values
// -----------------------------------------------------------------------------

const (
	FallbackProposalThreshold uint64 = 1
	FallbackVotingPeriodSecs  int64  = 60 * 60 * 24 * 3
	FallbackQuorumVotes       uint64 = 1
)

// NativeNamespace owns the native value balances. It is not a contract address.
const NativeNamespace sdk.Address = "system:native"

// -----------------------------------------------------------------------------
// Counter Keys
// -----------------------------------------------------------------------------

const (
	// ProposalsCount holds the next proposal id.
	ProposalsCount = "count:props"
)

// -----------------------------------------------------------------------------
// Storage Key Prefixes
// -----------------------------------------------------------------------------

const (
	// kOwner holds the administrator of a contract.
	kOwner byte = 0x01
	// kInit marks a contract as initialized.
	kInit byte = 0x02
	// kProposalMeta contains encoded Proposal records.
	kProposalMeta byte = 0x10
	// kVoteReceipt stores the per-voter receipt of a proposal.
	kVoteReceipt byte = 0x12
	// kGovConfig stores the encoded GovernorConfig.
	kGovConfig byte = 0x13
	// kGovToken points the governor at its voting ledger.
	kGovToken byte = 0x14
	// kGovTreasury points the governor at its treasury.
	kGovTreasury byte = 0x15
	// kBalance is a ledger balance per account.
	kBalance byte = 0x20
	// kAllowance is owner+spender allowance on a ledger.
	kAllowance byte = 0x21
	// kSupply is the ledger's total supply.
	kSupply byte = 0x22
	// kTokenMeta stores name|symbol.
	kTokenMeta byte = 0x23
	// kDelegation is the delegator's record.
	kDelegation byte = 0x24
	// kDelegatedVotes aggregates what a delegate received.
	kDelegatedVotes byte = 0x25
	// kTreasuryGovernor is the only identity allowed to approve/spend.
	kTreasuryGovernor byte = 0x30
	// kApproved flags a proposal id as approved for spending.
	kApproved byte = 0x31
	// kSpent flags a proposal id as paid out.
	kSpent byte = 0x32
	// kNativeBalance is a native value balance.
	kNativeBalance byte = 0x40
)
