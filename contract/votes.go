package contract

import (
	"okinoko_governor/contract/dao"
	"okinoko_governor/sdk"
)

// -----------------------------------------------------------------------------
// Voting receipts
// -----------------------------------------------------------------------------

// saveReceipt persists a voter's side and weight for a specific proposal.
func saveReceipt(st State, id uint64, voter sdk.Address, rc *dao.Receipt) {
	st.Set(proposalVoteKey(id, voter), string(dao.EncodeReceipt(rc)))
}

// loadReceipt returns nil if voter never voted on id.
func loadReceipt(st State, id uint64, voter sdk.Address) (*dao.Receipt, error) {
	ptr := st.Get(proposalVoteKey(id, voter))
	if ptr == nil || *ptr == "" {
		return nil, nil
	}
	return dao.DecodeReceipt([]byte(*ptr))
}
