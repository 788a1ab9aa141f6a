package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okinoko_governor/contract"
	"okinoko_governor/sdk"
	"okinoko_governor/store"
)

func strPtr(s string) *string { return &s }

func openMemory(t *testing.T) *store.Badger {
	t.Helper()
	db, err := store.New(store.WithInMemory(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBadgerApply(t *testing.T) {
	db := openMemory(t)

	v, err := db.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, db.Apply(map[string]*string{"a": strPtr("1"), "b": strPtr("2")}))
	require.NoError(t, db.Apply(map[string]*string{"a": nil, "c": strPtr("\x00bin")}))

	v, err = db.Get("a")
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = db.Get("c")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "\x00bin", *v)

	n, err := db.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// TestBadgerReopen checks committed state is there after a restart.
func TestBadgerReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := store.New(store.WithDataDir(dir))
	require.NoError(t, err)
	require.NoError(t, db.Apply(map[string]*string{"contract:okv\x01": strPtr("42")}))
	require.NoError(t, db.Close())

	db, err = store.New(store.WithDataDir(dir))
	require.NoError(t, err)
	defer db.Close()
	v, err := db.Get("contract:okv\x01")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "42", *v)
}

// TestEngineOnBadger runs a ledger on top of badger through the dispatcher.
func TestEngineOnBadger(t *testing.T) {
	db := openMemory(t)
	engine := contract.NewEngine(db)
	_, err := engine.DeployLedger("contract:okv")
	require.NoError(t, err)

	at := time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)
	call := func(sender sdk.Address, action, payload string) ([]byte, error) {
		return engine.Call(context.Background(), sdk.NewEnv(sender, "tx", at), "contract:okv", action, []byte(payload))
	}
	_, err = call("hive:tibfox", "init", `{"name":"Okinoko Vote","symbol":"OKV"}`)
	require.NoError(t, err)
	_, err = call("hive:tibfox", "mint", `{"to":"hive:someone","amount":70}`)
	require.NoError(t, err)

	// a failed call must not leave anything behind
	before, err := db.Len()
	require.NoError(t, err)
	_, err = call("hive:someone", "transfer", `{"to":"hive:someoneelse","amount":71}`)
	assert.ErrorIs(t, err, contract.ErrInsufficientBalance)
	after, err := db.Len()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	out, err := call("hive:someone", "balance", `{"account":"hive:someone"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":70}`, string(out))
}
