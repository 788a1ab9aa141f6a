package contract

import (
	"strconv"
	"strings"

	"okinoko_governor/contract/dao"
	"okinoko_governor/sdk"
)

// Event codes, kept short the way the log lines are read by indexers.
const (
	EventInit               = "ci"
	EventOwnershipChanged   = "ot"
	EventAddressChanged     = "ac"
	EventMinted             = "mt"
	EventBurned             = "bn"
	EventTransferred        = "tr"
	EventAllowance          = "al"
	EventDelegated          = "dg"
	EventUndelegated        = "ud"
	EventProposalCreated    = "pc"
	EventVoteCast           = "v"
	EventProposalExecuted   = "pe"
	EventProposalCanceled   = "px"
	EventConfigUpdated      = "cu"
	EventProposalApproved   = "pa"
	EventFundsAdded         = "af"
	EventFundsRemoved       = "rf"
	EventEmergencyWithdrawn = "ew"
	EventNativeDeposited    = "nd"
)

// EventCodes lists every code the contracts can raise.
var EventCodes = []string{
	EventInit, EventOwnershipChanged, EventAddressChanged, EventMinted, EventBurned,
	EventTransferred, EventAllowance, EventDelegated, EventUndelegated,
	EventProposalCreated, EventVoteCast, EventProposalExecuted, EventProposalCanceled,
	EventConfigUpdated, EventProposalApproved, EventFundsAdded, EventFundsRemoved,
	EventEmergencyWithdrawn, EventNativeDeposited,
}

// EventField is one key:value pair of an event line.
type EventField struct {
	Key   string
	Value string
}

// Event is a notification raised by a committed call. Contract, TxID,
// BlockHeight and Timestamp are stamped by the engine on delivery.
type Event struct {
	Contract    sdk.Address
	Code        string
	Fields      []EventField
	TxID        string
	BlockHeight uint64
	Timestamp   int64
}

// String renders the terse line format, e.g. "pc|id:3|by:hive:alice".
// Pipes inside values are escaped so the line stays splittable.
func (e Event) String() string {
	var b strings.Builder
	b.WriteString(e.Code)
	for _, f := range e.Fields {
		b.WriteByte('|')
		b.WriteString(f.Key)
		b.WriteByte(':')
		b.WriteString(strings.ReplaceAll(f.Value, "|", "\\|"))
	}
	return b.String()
}

// Field returns the value stored under key or "".
func (e Event) Field(key string) string {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// EventSink receives committed events in order.
type EventSink interface {
	Publish(evt Event)
}

// EventSinkFunc adapts a plain func.
type EventSinkFunc func(evt Event)

func (f EventSinkFunc) Publish(evt Event) { f(evt) }

// emit buffers an event in the current frame; kv is key,value,key,value...
func (c *Context) emit(code string, kv ...string) {
	fields := make([]EventField, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, EventField{Key: kv[i], Value: kv[i+1]})
	}
	c.frame.events = append(c.frame.events, Event{
		Contract: c.self,
		Code:     code,
		Fields:   fields,
	})
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

// emitInitEvent announces who owns a freshly initialized contract.
func emitInitEvent(c *Context, kind string, owner sdk.Address) {
	c.emit(EventInit, "k", kind, "by", owner.String())
}

func emitOwnershipChanged(c *Context, prev, next sdk.Address) {
	c.emit(EventOwnershipChanged, "old", prev.String(), "new", next.String())
}

// emitAddressChanged covers setDAO / setTreasury re-pointing.
func emitAddressChanged(c *Context, field string, prev, next sdk.Address) {
	c.emit(EventAddressChanged, "f", field, "old", prev.String(), "new", next.String())
}

func emitMinted(c *Context, to sdk.Address, amount uint64) {
	c.emit(EventMinted, "to", to.String(), "am", u64(amount))
}

func emitBurned(c *Context, from sdk.Address, amount uint64) {
	c.emit(EventBurned, "by", from.String(), "am", u64(amount))
}

func emitTransferred(c *Context, from, to sdk.Address, amount uint64) {
	c.emit(EventTransferred, "from", from.String(), "to", to.String(), "am", u64(amount))
}

func emitAllowance(c *Context, owner, spender sdk.Address, amount uint64) {
	c.emit(EventAllowance, "by", owner.String(), "sp", spender.String(), "am", u64(amount))
}

func emitDelegated(c *Context, delegator, delegate sdk.Address, amount uint64) {
	c.emit(EventDelegated, "by", delegator.String(), "to", delegate.String(), "am", u64(amount))
}

// emitUndelegated also says whether the delegation record got cleared.
func emitUndelegated(c *Context, delegator, delegate sdk.Address, amount uint64, cleared bool) {
	c.emit(EventUndelegated, "by", delegator.String(), "from", delegate.String(), "am", u64(amount), "c", strconv.FormatBool(cleared))
}

// emitProposalCreatedEvent carries the full payload so the proposal can be rebuilt from logs.
func emitProposalCreatedEvent(c *Context, p *dao.Proposal) {
	c.emit(EventProposalCreated,
		"id", u64(p.ID),
		"by", p.Proposer.String(),
		"to", p.Recipient.String(),
		"am", u64(p.Amount),
		"as", p.Token.String(),
		"start", strconv.FormatInt(p.StartTime, 10),
		"end", strconv.FormatInt(p.EndTime, 10),
		"d", p.Description,
	)
}

// emitVoteCasted includes the weight so tallies can be replayed from logs only.
func emitVoteCasted(c *Context, id uint64, voter sdk.Address, support bool, weight uint64) {
	c.emit(EventVoteCast, "id", u64(id), "by", voter.String(), "s", strconv.FormatBool(support), "w", u64(weight))
}

func emitProposalExecuted(c *Context, p *dao.Proposal) {
	c.emit(EventProposalExecuted, "id", u64(p.ID), "to", p.Recipient.String(), "am", u64(p.Amount), "as", p.Token.String())
}

func emitProposalCanceled(c *Context, id uint64, by sdk.Address) {
	c.emit(EventProposalCanceled, "id", u64(id), "by", by.String())
}

func emitConfigUpdated(c *Context, cfg *dao.GovernorConfig) {
	c.emit(EventConfigUpdated,
		"th", u64(cfg.ProposalThreshold),
		"vp", strconv.FormatInt(cfg.VotingPeriod, 10),
		"q", u64(cfg.QuorumVotes),
	)
}

func emitProposalApproved(c *Context, id uint64) {
	c.emit(EventProposalApproved, "id", u64(id))
}

func emitFundsAdded(c *Context, by sdk.Address, amount uint64, asset sdk.Asset) {
	c.emit(EventFundsAdded, "by", by.String(), "am", u64(amount), "as", asset.String())
}

func emitFundsRemoved(c *Context, id uint64, to sdk.Address, amount uint64, asset sdk.Asset) {
	c.emit(EventFundsRemoved, "id", u64(id), "to", to.String(), "am", u64(amount), "as", asset.String())
}

func emitEmergencyWithdrawn(c *Context, to sdk.Address, amount uint64, asset sdk.Asset) {
	c.emit(EventEmergencyWithdrawn, "to", to.String(), "am", u64(amount), "as", asset.String())
}
