package node

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"okinoko_governor/contract"
	"okinoko_governor/event"
	"okinoko_governor/indexer"
	"okinoko_governor/internal/config"
	"okinoko_governor/sdk"
	"okinoko_governor/store"
)

// heightKey sits outside every contract namespace.
const heightKey = "\x00node\x00height"

// Node owns the state database, the engine with the three deployed
// components, the event bus and the audit index.
type Node struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	clock    func() time.Time

	store  *store.Badger
	bus    *event.Bus
	index  *indexer.Indexer
	engine *contract.Engine

	heightMu sync.Mutex
	stopOnce sync.Once
}

type OptionFunc func(*Node)

// WithClock replaces time.Now as the source of block timestamps.
func WithClock(clock func() time.Time) OptionFunc {
	return func(n *Node) {
		n.clock = clock
	}
}

// WithRegistry uses the given registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) OptionFunc {
	return func(n *Node) {
		n.registry = registry
	}
}

func New(cfg *config.Config, logger *slog.Logger, opts ...OptionFunc) (*Node, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	n := &Node{cfg: cfg, logger: logger, clock: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	if n.registry == nil {
		n.registry = prometheus.NewRegistry()
		n.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")

	var err error
	n.store, err = store.New(
		store.WithDataDir(cfg.DataDir),
		store.WithInMemory(cfg.InMemory),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	indexDir := ""
	if !cfg.InMemory {
		indexDir = cfg.IndexerDir
		if indexDir == "" {
			indexDir = filepath.Join(cfg.DataDir, "index")
		}
	}
	n.index, err = indexer.New(indexDir, logger)
	if err != nil {
		_ = n.store.Close()
		return nil, fmt.Errorf("open index: %w", err)
	}
	n.bus = event.NewBus(n.registry, logger)
	n.bus.RegisterSubscriber(event.TypeAll, n.index)
	n.engine = contract.NewEngine(
		n.store,
		contract.WithLogger(logger),
		contract.WithPromRegistry(n.registry),
		contract.WithEventSink(n.bus.Sink()),
	)
	if err := n.deploy(); err != nil {
		n.Stop()
		return nil, err
	}
	return n, nil
}

// deploy registers the three components at their configured addresses.
// Their state lives in the store, so this runs on every start.
func (n *Node) deploy() error {
	if _, err := n.engine.DeployLedger(n.cfg.TokenAddress); err != nil {
		return fmt.Errorf("deploy ledger: %w", err)
	}
	if _, err := n.engine.DeployTreasury(n.cfg.TreasuryAddress); err != nil {
		return fmt.Errorf("deploy treasury: %w", err)
	}
	if _, err := n.engine.DeployGovernor(n.cfg.GovernorAddress); err != nil {
		return fmt.Errorf("deploy governor: %w", err)
	}
	return nil
}

func (n *Node) Engine() *contract.Engine { return n.engine }

func (n *Node) Indexer() *indexer.Indexer { return n.index }

func (n *Node) Bus() *event.Bus { return n.bus }

func (n *Node) Registry() *prometheus.Registry { return n.registry }

func (n *Node) Config() *config.Config { return n.cfg }

// Env opens the next block for sender. Heights are persisted so tx ids
// stay unique across restarts.
func (n *Node) Env(sender sdk.Address) (sdk.Env, error) {
	n.heightMu.Lock()
	defer n.heightMu.Unlock()
	var height uint64
	raw, err := n.store.Get(heightKey)
	if err != nil {
		return sdk.Env{}, err
	}
	if raw != nil {
		height, err = strconv.ParseUint(*raw, 10, 64)
		if err != nil {
			return sdk.Env{}, fmt.Errorf("corrupt block height %q: %w", *raw, err)
		}
	}
	height++
	next := strconv.FormatUint(height, 10)
	if err := n.store.Apply(map[string]*string{heightKey: &next}); err != nil {
		return sdk.Env{}, err
	}
	env := sdk.NewEnv(sender, "tx-"+next, n.clock())
	env.BlockHeight = height
	env.BlockId = "block-" + next
	return env, nil
}

// Call runs one dispatcher action as sender.
func (n *Node) Call(ctx context.Context, sender, addr sdk.Address, action string, payload []byte) ([]byte, error) {
	env, err := n.Env(sender)
	if err != nil {
		return nil, err
	}
	return n.engine.Call(ctx, env, addr, action, payload)
}

// Deploy initializes the ledger, the treasury and the governor with admin
// as their administrator and the configured governor defaults.
func (n *Node) Deploy(ctx context.Context, admin sdk.Address) error {
	cfg := n.cfg
	ledger, _ := n.engine.Ledger(cfg.TokenAddress)
	treasury, _ := n.engine.Treasury(cfg.TreasuryAddress)
	governor, _ := n.engine.Governor(cfg.GovernorAddress)
	steps := []struct {
		name   string
		target sdk.Address
		fn     func(*contract.Context) error
	}{
		{"ledger", cfg.TokenAddress, func(c *contract.Context) error {
			return ledger.Init(c, "Okinoko Vote", "OKV")
		}},
		{"treasury", cfg.TreasuryAddress, func(c *contract.Context) error {
			return treasury.Init(c, cfg.GovernorAddress)
		}},
		{"governor", cfg.GovernorAddress, func(c *contract.Context) error {
			return governor.Init(c, cfg.TokenAddress, cfg.TreasuryAddress, cfg.GovernorDefaults())
		}},
	}
	for _, step := range steps {
		env, err := n.Env(admin)
		if err != nil {
			return err
		}
		if err := n.engine.Execute(ctx, env, step.target, step.fn); err != nil {
			return fmt.Errorf("init %s: %w", step.name, err)
		}
		n.logger.Info(
			"initialized "+step.name,
			"component", "node",
			"address", step.target.String(),
			"admin", admin.String(),
		)
	}
	return nil
}

// Deposit credits native value to an account, sent by the configured admin.
func (n *Node) Deposit(ctx context.Context, to sdk.Address, amount uint64) error {
	env, err := n.Env(n.cfg.AdminAddress)
	if err != nil {
		return err
	}
	return n.engine.Deposit(ctx, env, to, amount)
}

// Proposal reads a proposal and its state from the configured governor.
func (n *Node) Proposal(ctx context.Context, id uint64) (contract.ProposalView, error) {
	var view contract.ProposalView
	governor, ok := n.engine.Governor(n.cfg.GovernorAddress)
	if !ok {
		return view, contract.ErrUnknownContract
	}
	env := sdk.NewEnv(n.cfg.AdminAddress, "", n.clock())
	err := n.engine.View(ctx, env, n.cfg.GovernorAddress, func(c *contract.Context) error {
		p, err := governor.GetProposal(c, id)
		if err != nil {
			return err
		}
		state, err := governor.State(c, id)
		if err != nil {
			return err
		}
		view = contract.ProposalView{Proposal: *p, State: state}
		return nil
	})
	return view, err
}

// Stop shuts the bus down and the store. The bus drains its queue first,
// so every committed event is indexed before the index closes.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		if n.bus != nil {
			n.bus.Stop()
		}
		if n.index != nil {
			n.index.Close()
		}
		if n.store != nil {
			if err := n.store.Close(); err != nil {
				n.logger.Error("failed to close store", "component", "node", "error", err)
			}
		}
	})
}
