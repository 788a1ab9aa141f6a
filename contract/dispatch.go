package contract

import (
	"context"
	"fmt"
	"sort"

	"github.com/CosmWasm/tinyjson"

	"okinoko_governor/sdk"
)

// action is one callable entry point of a contract. Read-only actions never
// commit and never emit.
type action struct {
	readOnly bool
	run      func(c *Context, payload []byte) (tinyjson.Marshaler, error)
}

// withArgs decodes the payload into T before calling fn.
func withArgs[T any, PT interface {
	*T
	tinyjson.Unmarshaler
}](fn func(c *Context, args *T) (tinyjson.Marshaler, error)) func(*Context, []byte) (tinyjson.Marshaler, error) {
	return func(c *Context, payload []byte) (tinyjson.Marshaler, error) {
		args := PT(new(T))
		if err := DecodePayload(payload, args); err != nil {
			return nil, err
		}
		return fn(c, (*T)(args))
	}
}

func write(run func(*Context, []byte) (tinyjson.Marshaler, error)) action {
	return action{run: run}
}

func read(run func(*Context, []byte) (tinyjson.Marshaler, error)) action {
	return action{readOnly: true, run: run}
}

// noPayload is for actions without arguments.
func noPayload(fn func(c *Context) (tinyjson.Marshaler, error)) func(*Context, []byte) (tinyjson.Marshaler, error) {
	return func(c *Context, _ []byte) (tinyjson.Marshaler, error) { return fn(c) }
}

func done(err error) (tinyjson.Marshaler, error) { return nil, err }

func (l *Ledger) actions() map[string]action {
	return map[string]action{
		"init": write(withArgs(func(c *Context, a *InitLedgerArgs) (tinyjson.Marshaler, error) {
			return done(l.Init(c, a.Name, a.Symbol))
		})),
		"mint": write(withArgs(func(c *Context, a *TransferArgs) (tinyjson.Marshaler, error) {
			return done(l.Mint(c, a.To, a.Amount))
		})),
		"burn": write(withArgs(func(c *Context, a *AmountArgs) (tinyjson.Marshaler, error) {
			return done(l.Burn(c, a.Amount))
		})),
		"transfer": write(withArgs(func(c *Context, a *TransferArgs) (tinyjson.Marshaler, error) {
			return done(l.Transfer(c, a.To, a.Amount))
		})),
		"approve": write(withArgs(func(c *Context, a *AllowanceArgs) (tinyjson.Marshaler, error) {
			return done(l.Approve(c, a.Spender, a.Amount))
		})),
		"transfer_from": write(withArgs(func(c *Context, a *TransferFromArgs) (tinyjson.Marshaler, error) {
			return done(l.TransferFrom(c, a.From, a.To, a.Amount))
		})),
		"delegate": write(withArgs(func(c *Context, a *TransferArgs) (tinyjson.Marshaler, error) {
			return done(l.Delegate(c, a.To, a.Amount))
		})),
		"undelegate": write(withArgs(func(c *Context, a *AmountArgs) (tinyjson.Marshaler, error) {
			return done(l.Undelegate(c, a.Amount))
		})),
		"ownership_transfer": write(withArgs(func(c *Context, a *AccountArgs) (tinyjson.Marshaler, error) {
			return done(l.TransferOwnership(c, a.Account))
		})),
		"balance": read(withArgs(func(c *Context, a *AccountArgs) (tinyjson.Marshaler, error) {
			return AmountResult{Amount: l.BalanceOf(c, a.Account)}, nil
		})),
		"voting_power": read(withArgs(func(c *Context, a *AccountArgs) (tinyjson.Marshaler, error) {
			return AmountResult{Amount: l.VotingPowerOf(c, a.Account)}, nil
		})),
		"total_supply": read(noPayload(func(c *Context) (tinyjson.Marshaler, error) {
			return AmountResult{Amount: l.TotalSupply(c)}, nil
		})),
		"allowance": read(withArgs(func(c *Context, a *AllowanceArgs) (tinyjson.Marshaler, error) {
			return AmountResult{Amount: l.Allowance(c, a.Owner, a.Spender)}, nil
		})),
		"delegation": read(withArgs(func(c *Context, a *AccountArgs) (tinyjson.Marshaler, error) {
			rec, err := l.DelegationOf(c, a.Account)
			if err != nil {
				return nil, err
			}
			return DelegationView{
				Delegation: rec,
				Received:   l.DelegatedVotesReceived(c, a.Account),
			}, nil
		})),
		"owner": read(noPayload(func(c *Context) (tinyjson.Marshaler, error) {
			return AddressResult{Address: l.Owner(c)}, nil
		})),
	}
}

func (t *Treasury) actions() map[string]action {
	return map[string]action{
		"init": write(withArgs(func(c *Context, a *AccountArgs) (tinyjson.Marshaler, error) {
			return done(t.Init(c, a.Account))
		})),
		"approve": write(withArgs(func(c *Context, a *ProposalIDArgs) (tinyjson.Marshaler, error) {
			return done(t.Approve(c, a.ID))
		})),
		"spend": write(withArgs(func(c *Context, a *SpendArgs) (tinyjson.Marshaler, error) {
			return done(t.Spend(c, a.ID, a.Recipient, a.Amount, a.Asset))
		})),
		"fund": write(withArgs(func(c *Context, a *AmountArgs) (tinyjson.Marshaler, error) {
			return done(t.Fund(c, a.Amount))
		})),
		"fund_token": write(withArgs(func(c *Context, a *FundTokenArgs) (tinyjson.Marshaler, error) {
			return done(t.FundWithToken(c, a.Token, a.Amount))
		})),
		"emergency_withdraw": write(withArgs(func(c *Context, a *WithdrawArgs) (tinyjson.Marshaler, error) {
			return done(t.EmergencyWithdraw(c, a.Asset, a.Amount, a.Recipient))
		})),
		"dao_set": write(withArgs(func(c *Context, a *AccountArgs) (tinyjson.Marshaler, error) {
			return done(t.SetDAO(c, a.Account))
		})),
		"ownership_transfer": write(withArgs(func(c *Context, a *AccountArgs) (tinyjson.Marshaler, error) {
			return done(t.TransferOwnership(c, a.Account))
		})),
		"balance": read(withArgs(func(c *Context, a *AssetArgs) (tinyjson.Marshaler, error) {
			bal, err := t.Balance(c, a.Asset)
			return AmountResult{Amount: bal}, err
		})),
		"is_approved": read(withArgs(func(c *Context, a *ProposalIDArgs) (tinyjson.Marshaler, error) {
			return BoolResult{Value: t.IsApproved(c, a.ID)}, nil
		})),
		"is_spent": read(withArgs(func(c *Context, a *ProposalIDArgs) (tinyjson.Marshaler, error) {
			return BoolResult{Value: t.IsSpent(c, a.ID)}, nil
		})),
		"governor": read(noPayload(func(c *Context) (tinyjson.Marshaler, error) {
			return AddressResult{Address: t.Governor(c)}, nil
		})),
		"owner": read(noPayload(func(c *Context) (tinyjson.Marshaler, error) {
			return AddressResult{Address: t.Owner(c)}, nil
		})),
	}
}

func (g *Governor) actions() map[string]action {
	return map[string]action{
		"init": write(withArgs(func(c *Context, a *InitGovernorArgs) (tinyjson.Marshaler, error) {
			return done(g.Init(c, a.Token, a.Treasury, a.Config.toConfig()))
		})),
		"proposal_create": write(withArgs(func(c *Context, a *CreateProposalArgs) (tinyjson.Marshaler, error) {
			id, err := g.CreateProposal(c, a.Description, a.Recipient, a.Amount, a.Token)
			if err != nil {
				return nil, err
			}
			return ProposalIDArgs{ID: id}, nil
		})),
		"proposal_vote": write(withArgs(func(c *Context, a *VoteArgs) (tinyjson.Marshaler, error) {
			return done(g.Vote(c, a.ID, a.Support))
		})),
		"proposal_execute": write(withArgs(func(c *Context, a *ProposalIDArgs) (tinyjson.Marshaler, error) {
			return done(g.ExecuteProposal(c, a.ID))
		})),
		"proposal_cancel": write(withArgs(func(c *Context, a *ProposalIDArgs) (tinyjson.Marshaler, error) {
			return done(g.CancelProposal(c, a.ID))
		})),
		"config_update": write(withArgs(func(c *Context, a *ConfigArgs) (tinyjson.Marshaler, error) {
			return done(g.UpdateConfiguration(c, a.toConfig()))
		})),
		"treasury_set": write(withArgs(func(c *Context, a *AccountArgs) (tinyjson.Marshaler, error) {
			return done(g.SetTreasury(c, a.Account))
		})),
		"ownership_transfer": write(withArgs(func(c *Context, a *AccountArgs) (tinyjson.Marshaler, error) {
			return done(g.TransferOwnership(c, a.Account))
		})),
		"proposal_get": read(withArgs(func(c *Context, a *ProposalIDArgs) (tinyjson.Marshaler, error) {
			p, err := g.GetProposal(c, a.ID)
			if err != nil {
				return nil, err
			}
			state, err := g.State(c, a.ID)
			if err != nil {
				return nil, err
			}
			return ProposalView{Proposal: *p, State: state}, nil
		})),
		"proposal_passed": read(withArgs(func(c *Context, a *ProposalIDArgs) (tinyjson.Marshaler, error) {
			return BoolResult{Value: g.ProposalPassed(c, a.ID)}, nil
		})),
		"proposal_count": read(noPayload(func(c *Context) (tinyjson.Marshaler, error) {
			return AmountResult{Amount: g.ProposalCount(c)}, nil
		})),
		"receipt": read(withArgs(func(c *Context, a *ReceiptArgs) (tinyjson.Marshaler, error) {
			rc, err := g.Receipt(c, a.ID, a.Voter)
			return ReceiptView{Receipt: rc}, err
		})),
		"config": read(noPayload(func(c *Context) (tinyjson.Marshaler, error) {
			cfg, err := g.Config(c)
			return ConfigArgs{
				ProposalThreshold: cfg.ProposalThreshold,
				VotingPeriod:      cfg.VotingPeriod,
				QuorumVotes:       cfg.QuorumVotes,
			}, err
		})),
		"owner": read(noPayload(func(c *Context) (tinyjson.Marshaler, error) {
			return AddressResult{Address: g.Owner(c)}, nil
		})),
	}
}

func (e *Engine) actionsOf(addr sdk.Address) (map[string]action, error) {
	if l, ok := e.Ledger(addr); ok {
		return l.actions(), nil
	}
	if t, ok := e.Treasury(addr); ok {
		return t.actions(), nil
	}
	if g, ok := e.Governor(addr); ok {
		return g.actions(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownContract, addr)
}

// Actions lists the action names of the contract at addr, sorted.
func (e *Engine) Actions(addr sdk.Address) ([]string, error) {
	acts, err := e.actionsOf(addr)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(acts))
	for name := range acts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Call routes a JSON payload to a named action of the contract at addr and
// returns the JSON result (nil for plain writes).
// Example payload: e.Call(ctx, env, "contract:governor", "proposal_vote", []byte(`{"id":0,"support":true}`))
func (e *Engine) Call(ctx context.Context, env sdk.Env, addr sdk.Address, name string, payload []byte) ([]byte, error) {
	acts, err := e.actionsOf(addr)
	if err != nil {
		return nil, err
	}
	act, ok := acts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownAction, name, addr)
	}
	var result tinyjson.Marshaler
	run := func(c *Context) error {
		var err error
		result, err = act.run(c, payload)
		return err
	}
	if act.readOnly {
		err = e.View(ctx, env, addr, run)
	} else {
		err = e.Execute(ctx, env, addr, run)
	}
	if err != nil || result == nil {
		return nil, err
	}
	return tinyjson.Marshal(result)
}
