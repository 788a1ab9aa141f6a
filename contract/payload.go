package contract

import (
	"github.com/CosmWasm/tinyjson"
	"github.com/CosmWasm/tinyjson/jlexer"
	"github.com/CosmWasm/tinyjson/jwriter"

	"okinoko_governor/contract/dao"
	"okinoko_governor/sdk"
)

// Call payloads and results. The codecs below follow the shape tinyjson
// generates: unknown keys are skipped, nulls leave the zero value.

type InitLedgerArgs struct {
	Name   string
	Symbol string
}

// TransferArgs serves mint, transfer and delegate.
type TransferArgs struct {
	To     sdk.Address
	Amount uint64
}

type TransferFromArgs struct {
	From   sdk.Address
	To     sdk.Address
	Amount uint64
}

type AllowanceArgs struct {
	Owner   sdk.Address
	Spender sdk.Address
	Amount  uint64
}

// AmountArgs serves burn, undelegate and fund.
type AmountArgs struct {
	Amount uint64
}

// AccountArgs serves every call that takes a single address.
type AccountArgs struct {
	Account sdk.Address
}

type FundTokenArgs struct {
	Token  sdk.Address
	Amount uint64
}

type WithdrawArgs struct {
	Asset     sdk.Asset
	Amount    uint64
	Recipient sdk.Address
}

// SpendArgs is the governor's phase two call.
type SpendArgs struct {
	ID        uint64
	Recipient sdk.Address
	Amount    uint64
	Asset     sdk.Asset
}

type AssetArgs struct {
	Asset sdk.Asset
}

type ProposalIDArgs struct {
	ID uint64
}

type ReceiptArgs struct {
	ID    uint64
	Voter sdk.Address
}

type InitGovernorArgs struct {
	Token    sdk.Address
	Treasury sdk.Address
	Config   ConfigArgs
}

type ConfigArgs struct {
	ProposalThreshold uint64
	VotingPeriod      int64
	QuorumVotes       uint64
}

func (a ConfigArgs) toConfig() dao.GovernorConfig {
	return dao.GovernorConfig{
		ProposalThreshold: a.ProposalThreshold,
		VotingPeriod:      a.VotingPeriod,
		QuorumVotes:       a.QuorumVotes,
	}
}

type CreateProposalArgs struct {
	Description string
	Recipient   sdk.Address
	Amount      uint64
	Token       sdk.Asset
}

type VoteArgs struct {
	ID      uint64
	Support bool
}

// AmountResult wraps any numeric answer (balances, supply, ids).
type AmountResult struct {
	Amount uint64
}

type BoolResult struct {
	Value bool
}

type AddressResult struct {
	Address sdk.Address
}

// ProposalView is a proposal plus its derived state.
type ProposalView struct {
	Proposal dao.Proposal
	State    dao.ProposalState
}

type ReceiptView struct {
	Receipt dao.Receipt
}

type DelegationView struct {
	Delegation dao.Delegation
	Received   uint64
}

// ErrorResult is what the HTTP front returns for a failed call.
type ErrorResult struct {
	Error string
}

// -----------------------------------------------------------------------------
// decode helpers
// -----------------------------------------------------------------------------

// decodeObject walks a JSON object and hands every non-null value to field.
func decodeObject(in *jlexer.Lexer, field func(in *jlexer.Lexer, key string)) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		field(in, key)
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

// DecodePayload parses a call payload. An empty payload decodes as {}.
func DecodePayload(data []byte, v tinyjson.Unmarshaler) error {
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := tinyjson.Unmarshal(data, v); err != nil {
		return newError(ErrInvalidInput, "invalid payload: "+err.Error())
	}
	return nil
}

// objectWriter writes "key":value pairs with the commas in between.
type objectWriter struct {
	w *jwriter.Writer
	n int
}

func beginObject(w *jwriter.Writer) *objectWriter {
	w.RawByte('{')
	return &objectWriter{w: w}
}

func (o *objectWriter) key(k string) *jwriter.Writer {
	if o.n > 0 {
		o.w.RawByte(',')
	}
	o.n++
	o.w.String(k)
	o.w.RawByte(':')
	return o.w
}

func (o *objectWriter) end() { o.w.RawByte('}') }

// -----------------------------------------------------------------------------
// args
// -----------------------------------------------------------------------------

func (v *InitLedgerArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "name":
			v.Name = in.String()
		case "symbol":
			v.Symbol = in.String()
		default:
			in.SkipRecursive()
		}
	})
}

func (v InitLedgerArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("name").String(v.Name)
	o.key("symbol").String(v.Symbol)
	o.end()
}

func (v *TransferArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "to":
			v.To = sdk.Address(in.String())
		case "amount":
			v.Amount = in.Uint64()
		default:
			in.SkipRecursive()
		}
	})
}

func (v TransferArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("to").String(v.To.String())
	o.key("amount").Uint64(v.Amount)
	o.end()
}

func (v *TransferFromArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "from":
			v.From = sdk.Address(in.String())
		case "to":
			v.To = sdk.Address(in.String())
		case "amount":
			v.Amount = in.Uint64()
		default:
			in.SkipRecursive()
		}
	})
}

func (v TransferFromArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("from").String(v.From.String())
	o.key("to").String(v.To.String())
	o.key("amount").Uint64(v.Amount)
	o.end()
}

func (v *AllowanceArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "owner":
			v.Owner = sdk.Address(in.String())
		case "spender":
			v.Spender = sdk.Address(in.String())
		case "amount":
			v.Amount = in.Uint64()
		default:
			in.SkipRecursive()
		}
	})
}

func (v AllowanceArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	if !v.Owner.IsNull() {
		o.key("owner").String(v.Owner.String())
	}
	o.key("spender").String(v.Spender.String())
	o.key("amount").Uint64(v.Amount)
	o.end()
}

func (v *AmountArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "amount":
			v.Amount = in.Uint64()
		default:
			in.SkipRecursive()
		}
	})
}

func (v AmountArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("amount").Uint64(v.Amount)
	o.end()
}

func (v *AccountArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "account":
			v.Account = sdk.Address(in.String())
		default:
			in.SkipRecursive()
		}
	})
}

func (v AccountArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("account").String(v.Account.String())
	o.end()
}

func (v *FundTokenArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "token":
			v.Token = sdk.Address(in.String())
		case "amount":
			v.Amount = in.Uint64()
		default:
			in.SkipRecursive()
		}
	})
}

func (v FundTokenArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("token").String(v.Token.String())
	o.key("amount").Uint64(v.Amount)
	o.end()
}

func (v *WithdrawArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "asset":
			v.Asset = sdk.Asset(in.String())
		case "amount":
			v.Amount = in.Uint64()
		case "recipient":
			v.Recipient = sdk.Address(in.String())
		default:
			in.SkipRecursive()
		}
	})
}

func (v WithdrawArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("asset").String(v.Asset.String())
	o.key("amount").Uint64(v.Amount)
	o.key("recipient").String(v.Recipient.String())
	o.end()
}

func (v *SpendArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "id":
			v.ID = in.Uint64()
		case "recipient":
			v.Recipient = sdk.Address(in.String())
		case "amount":
			v.Amount = in.Uint64()
		case "asset":
			v.Asset = sdk.Asset(in.String())
		default:
			in.SkipRecursive()
		}
	})
}

func (v SpendArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("id").Uint64(v.ID)
	o.key("recipient").String(v.Recipient.String())
	o.key("amount").Uint64(v.Amount)
	o.key("asset").String(v.Asset.String())
	o.end()
}

func (v *AssetArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "asset":
			v.Asset = sdk.Asset(in.String())
		default:
			in.SkipRecursive()
		}
	})
}

func (v AssetArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("asset").String(v.Asset.String())
	o.end()
}

func (v *ProposalIDArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "id":
			v.ID = in.Uint64()
		default:
			in.SkipRecursive()
		}
	})
}

func (v ProposalIDArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("id").Uint64(v.ID)
	o.end()
}

func (v *ReceiptArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "id":
			v.ID = in.Uint64()
		case "voter":
			v.Voter = sdk.Address(in.String())
		default:
			in.SkipRecursive()
		}
	})
}

func (v ReceiptArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("id").Uint64(v.ID)
	o.key("voter").String(v.Voter.String())
	o.end()
}

// unmarshalConfigField reads one config key; shared with InitGovernorArgs
// which accepts the config fields inline.
func (v *ConfigArgs) unmarshalConfigField(in *jlexer.Lexer, key string) bool {
	switch key {
	case "proposal_threshold":
		v.ProposalThreshold = in.Uint64()
	case "voting_period":
		v.VotingPeriod = in.Int64()
	case "quorum_votes":
		v.QuorumVotes = in.Uint64()
	default:
		return false
	}
	return true
}

func (v *ConfigArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		if !v.unmarshalConfigField(in, key) {
			in.SkipRecursive()
		}
	})
}

func (v ConfigArgs) marshalFields(o *objectWriter) {
	o.key("proposal_threshold").Uint64(v.ProposalThreshold)
	o.key("voting_period").Int64(v.VotingPeriod)
	o.key("quorum_votes").Uint64(v.QuorumVotes)
}

func (v ConfigArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	v.marshalFields(o)
	o.end()
}

func (v *InitGovernorArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "token":
			v.Token = sdk.Address(in.String())
		case "treasury":
			v.Treasury = sdk.Address(in.String())
		default:
			if !v.Config.unmarshalConfigField(in, key) {
				in.SkipRecursive()
			}
		}
	})
}

func (v InitGovernorArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("token").String(v.Token.String())
	o.key("treasury").String(v.Treasury.String())
	v.Config.marshalFields(o)
	o.end()
}

func (v *CreateProposalArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "description":
			v.Description = in.String()
		case "recipient":
			v.Recipient = sdk.Address(in.String())
		case "amount":
			v.Amount = in.Uint64()
		case "token":
			v.Token = sdk.Asset(in.String())
		default:
			in.SkipRecursive()
		}
	})
}

func (v CreateProposalArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("description").String(v.Description)
	o.key("recipient").String(v.Recipient.String())
	o.key("amount").Uint64(v.Amount)
	o.key("token").String(v.Token.String())
	o.end()
}

func (v *VoteArgs) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "id":
			v.ID = in.Uint64()
		case "support":
			v.Support = in.Bool()
		default:
			in.SkipRecursive()
		}
	})
}

func (v VoteArgs) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("id").Uint64(v.ID)
	o.key("support").Bool(v.Support)
	o.end()
}

// -----------------------------------------------------------------------------
// results
// -----------------------------------------------------------------------------

func (v AmountResult) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("amount").Uint64(v.Amount)
	o.end()
}

func (v *AmountResult) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "amount":
			v.Amount = in.Uint64()
		default:
			in.SkipRecursive()
		}
	})
}

func (v BoolResult) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("value").Bool(v.Value)
	o.end()
}

func (v AddressResult) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("address").String(v.Address.String())
	o.end()
}

func (v ProposalView) MarshalTinyJSON(w *jwriter.Writer) {
	p := v.Proposal
	o := beginObject(w)
	o.key("id").Uint64(p.ID)
	o.key("proposer").String(p.Proposer.String())
	o.key("description").String(p.Description)
	o.key("start_time").Int64(p.StartTime)
	o.key("end_time").Int64(p.EndTime)
	o.key("for_votes").Uint64(p.ForVotes)
	o.key("against_votes").Uint64(p.AgainstVotes)
	o.key("executed").Bool(p.Executed)
	o.key("canceled").Bool(p.Canceled)
	o.key("recipient").String(p.Recipient.String())
	o.key("amount").Uint64(p.Amount)
	o.key("token").String(p.Token.String())
	o.key("tx").String(p.Tx)
	o.key("state").String(v.State.String())
	o.end()
}

func (v *ProposalView) UnmarshalTinyJSON(in *jlexer.Lexer) {
	p := &v.Proposal
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "id":
			p.ID = in.Uint64()
		case "proposer":
			p.Proposer = sdk.Address(in.String())
		case "description":
			p.Description = in.String()
		case "start_time":
			p.StartTime = in.Int64()
		case "end_time":
			p.EndTime = in.Int64()
		case "for_votes":
			p.ForVotes = in.Uint64()
		case "against_votes":
			p.AgainstVotes = in.Uint64()
		case "executed":
			p.Executed = in.Bool()
		case "canceled":
			p.Canceled = in.Bool()
		case "recipient":
			p.Recipient = sdk.Address(in.String())
		case "amount":
			p.Amount = in.Uint64()
		case "token":
			p.Token = sdk.Asset(in.String())
		case "tx":
			p.Tx = in.String()
		case "state":
			v.State = dao.ParseProposalState(in.String())
		default:
			in.SkipRecursive()
		}
	})
}

func (v ReceiptView) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("has_voted").Bool(v.Receipt.HasVoted)
	o.key("support").Bool(v.Receipt.Support)
	o.key("weight").Uint64(v.Receipt.Weight)
	o.key("voted_at").Int64(v.Receipt.VotedAt)
	o.end()
}

func (v DelegationView) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("active").Bool(v.Delegation.Active)
	o.key("delegate").String(v.Delegation.Delegate.String())
	o.key("received").Uint64(v.Received)
	o.end()
}

func (v ErrorResult) MarshalTinyJSON(w *jwriter.Writer) {
	o := beginObject(w)
	o.key("error").String(v.Error)
	o.end()
}

func (v *ErrorResult) UnmarshalTinyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(in *jlexer.Lexer, key string) {
		switch key {
		case "error":
			v.Error = in.String()
		default:
			in.SkipRecursive()
		}
	})
}
