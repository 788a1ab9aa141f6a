package sdk

import (
	"strconv"
	"time"
)

// TimestampLayout is the zone-less layout the host uses for block timestamps.
const TimestampLayout = "2006-01-02T15:04:05"

type Sender struct {
	Address       Address   `json:"id"`
	RequiredAuths []Address `json:"required_auths"`
}

// Env is the per-call execution environment handed in by the host.
type Env struct {
	ContractId  string `json:"contract.id"`
	TxId        string `json:"tx.id"`
	BlockId     string `json:"block.id"`
	BlockHeight uint64 `json:"block.height"`
	Timestamp   string `json:"block.timestamp"`
	Sender      Sender `json:"-"`
}

// NewEnv builds an env for a single signer at the given time.
// Example payload: sdk.NewEnv("hive:alice", "tx-1", time.Now())
func NewEnv(sender Address, txID string, at time.Time) Env {
	return Env{
		TxId:      txID,
		Timestamp: at.UTC().Format(TimestampLayout),
		Sender: Sender{
			Address:       sender,
			RequiredAuths: []Address{sender},
		},
	}
}

// Unix resolves the env timestamp into unix seconds, falling back to wall clock
// when the host did not provide a usable one.
func (e Env) Unix() int64 {
	if e.Timestamp != "" {
		if v, ok := ParseTimestamp(e.Timestamp); ok {
			return v
		}
	}
	return time.Now().Unix()
}

// ParseTimestamp accepts unix seconds or iso-ish strings since the env flips formats sometimes.
func ParseTimestamp(val string) (int64, bool) {
	if v, err := strconv.ParseInt(val, 10, 64); err == nil {
		return v, true
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.Unix(), true
	}
	if t, err := time.ParseInLocation(TimestampLayout, val, time.UTC); err == nil {
		return t.Unix(), true
	}
	return 0, false
}
