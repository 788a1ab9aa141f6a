package dao

import (
	"math"
	"math/bits"

	"okinoko_governor/sdk"
)

// ProposalState captures a proposal's lifecycle. It is derived from the stored
// record and the clock, never persisted on its own.
type ProposalState uint8

const (
	ProposalPending   ProposalState = 0
	ProposalActive    ProposalState = 1
	ProposalCanceled  ProposalState = 2
	ProposalDefeated  ProposalState = 3
	ProposalSucceeded ProposalState = 4
	ProposalExecuted  ProposalState = 5
)

// String prints the proposal state as lower-case text for events and logs.
// Example payload: dao.ProposalSucceeded.String()
func (ps ProposalState) String() string {
	switch ps {
	case ProposalActive:
		return "active"
	case ProposalCanceled:
		return "canceled"
	case ProposalDefeated:
		return "defeated"
	case ProposalSucceeded:
		return "succeeded"
	case ProposalExecuted:
		return "executed"
	default:
		return "pending"
	}
}

// ParseProposalState is the reverse of String; unknown text maps to pending.
func ParseProposalState(s string) ProposalState {
	for _, ps := range []ProposalState{ProposalActive, ProposalCanceled, ProposalDefeated, ProposalSucceeded, ProposalExecuted} {
		if ps.String() == s {
			return ps
		}
	}
	return ProposalPending
}

// IsTerminal is true once nothing can change the proposal anymore.
func (ps ProposalState) IsTerminal() bool {
	return ps == ProposalCanceled || ps == ProposalExecuted
}

// GovernorConfig holds the process-wide governance parameters.
// VotingPeriod is in seconds.
type GovernorConfig struct {
	ProposalThreshold uint64
	VotingPeriod      int64
	QuorumVotes       uint64
}

// Proposal is stored at kProposalMeta+id and kept forever for audit.
// The vote window is [StartTime, EndTime).
type Proposal struct {
	ID           uint64
	Proposer     sdk.Address
	Description  string
	StartTime    int64
	EndTime      int64
	ForVotes     uint64
	AgainstVotes uint64
	Executed     bool
	Canceled     bool
	Recipient    sdk.Address
	Amount       uint64
	Token        sdk.Asset
	Tx           string
}

// TotalVotes is the participation counted against quorum.
// It saturates instead of wrapping.
func (p *Proposal) TotalVotes() uint64 {
	sum, carry := bits.Add64(p.ForVotes, p.AgainstVotes, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// Receipt is the per-voter record for one proposal.
type Receipt struct {
	HasVoted bool
	Support  bool
	Weight   uint64
	VotedAt  int64
}

// Delegation is the per-account delegation record.
type Delegation struct {
	Active   bool
	Delegate sdk.Address
}
