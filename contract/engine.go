package contract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"okinoko_governor/sdk"
)

// Engine runs contract operations against a Store. Top-level calls are
// serialized; each one commits all of its writes in a single Apply or none.
type Engine struct {
	store  Store
	mu     sync.Mutex
	logger *slog.Logger
	sinks  []EventSink

	regMu      sync.RWMutex
	ledgers    map[sdk.Address]*Ledger
	treasuries map[sdk.Address]*Treasury
	governors  map[sdk.Address]*Governor
	hooks      map[sdk.Address]ReceiveHook

	promRegistry prometheus.Registerer
	metrics      *engineMetrics
}

type engineMetrics struct {
	calls  *prometheus.CounterVec
	events *prometheus.CounterVec
}

type EngineOptionFunc func(*Engine)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) EngineOptionFunc {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) EngineOptionFunc {
	return func(e *Engine) {
		e.promRegistry = registry
	}
}

// WithEventSink adds a receiver for committed events.
func WithEventSink(sink EventSink) EngineOptionFunc {
	return func(e *Engine) {
		e.sinks = append(e.sinks, sink)
	}
}

func NewEngine(store Store, opts ...EngineOptionFunc) *Engine {
	e := &Engine{
		store:      store,
		ledgers:    map[sdk.Address]*Ledger{},
		treasuries: map[sdk.Address]*Treasury{},
		governors:  map[sdk.Address]*Governor{},
		hooks:      map[sdk.Address]ReceiveHook{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		// Create logger to throw away logs
		e.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if e.promRegistry != nil {
		e.initMetrics()
	}
	return e
}

func (e *Engine) initMetrics() {
	e.metrics = &engineMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governor_calls_total",
			Help: "top-level contract calls by result",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governor_events_total",
			Help: "committed contract events by type",
		}, []string{"type"}),
	}
	e.promRegistry.MustRegister(e.metrics.calls, e.metrics.events)
}

// Execute runs fn as the top-level call of one transaction against target.
// The sender of env is the caller. If fn fails nothing is written and no
// event is delivered.
func (e *Engine) Execute(ctx context.Context, env sdk.Env, target sdk.Address, fn func(*Context) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	root := newRootLayer(e.store)
	c := &Context{
		ctx:    ctx,
		engine: e,
		env:    env,
		self:   target,
		caller: env.Sender.Address,
		frame:  &frame{state: root},
	}
	err := ctx.Err()
	if err == nil {
		err = fn(c)
	}
	if err == nil && root.err != nil {
		err = fmt.Errorf("state read failed: %w", root.err)
	}
	if err != nil {
		e.countCall("failed")
		e.logger.Debug(
			"call failed",
			"component", "engine",
			"contract", target.String(),
			"sender", env.Sender.Address.String(),
			"tx", env.TxId,
			"error", err,
		)
		return err
	}
	if len(root.writes) > 0 {
		if err := e.store.Apply(root.writes); err != nil {
			e.countCall("failed")
			return fmt.Errorf("commit failed: %w", err)
		}
	}
	e.countCall("committed")
	e.deliver(env, c.frame.events)
	return nil
}

// View runs fn like Execute but never commits, for read-only queries.
func (e *Engine) View(ctx context.Context, env sdk.Env, target sdk.Address, fn func(*Context) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	root := newRootLayer(e.store)
	c := &Context{
		ctx:    ctx,
		engine: e,
		env:    env,
		self:   target,
		caller: env.Sender.Address,
		frame:  &frame{state: root},
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return root.err
}

func (e *Engine) deliver(env sdk.Env, events []Event) {
	ts := env.Unix()
	for _, evt := range events {
		evt.TxID = env.TxId
		evt.BlockHeight = env.BlockHeight
		evt.Timestamp = ts
		e.logger.Debug(
			evt.String(),
			"component", "engine",
			"contract", evt.Contract.String(),
			"tx", env.TxId,
		)
		if e.metrics != nil {
			e.metrics.events.WithLabelValues(evt.Code).Inc()
		}
		for _, sink := range e.sinks {
			sink.Publish(evt)
		}
	}
}

func (e *Engine) countCall(result string) {
	if e.metrics != nil {
		e.metrics.calls.WithLabelValues(result).Inc()
	}
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

var errAddressTaken = errors.New("address already registered")

func (e *Engine) register(addr sdk.Address, store func()) error {
	if addr.IsNull() {
		return ErrInvalidAddress
	}
	e.regMu.Lock()
	defer e.regMu.Unlock()
	_, l := e.ledgers[addr]
	_, t := e.treasuries[addr]
	_, g := e.governors[addr]
	if l || t || g {
		return fmt.Errorf("%w: %s", errAddressTaken, addr)
	}
	store()
	return nil
}

// DeployLedger registers a ledger at addr. It still needs Init.
func (e *Engine) DeployLedger(addr sdk.Address) (*Ledger, error) {
	l := &Ledger{addr: addr}
	return l, e.register(addr, func() { e.ledgers[addr] = l })
}

// DeployTreasury registers a treasury at addr. It still needs Init.
func (e *Engine) DeployTreasury(addr sdk.Address) (*Treasury, error) {
	t := &Treasury{addr: addr}
	return t, e.register(addr, func() { e.treasuries[addr] = t })
}

// DeployGovernor registers a governor at addr. It still needs Init.
func (e *Engine) DeployGovernor(addr sdk.Address) (*Governor, error) {
	g := &Governor{addr: addr}
	return g, e.register(addr, func() { e.governors[addr] = g })
}

// Ledger looks up a deployed ledger.
func (e *Engine) Ledger(addr sdk.Address) (*Ledger, bool) {
	e.regMu.RLock()
	defer e.regMu.RUnlock()
	l, ok := e.ledgers[addr]
	return l, ok
}

// Treasury looks up a deployed treasury.
func (e *Engine) Treasury(addr sdk.Address) (*Treasury, bool) {
	e.regMu.RLock()
	defer e.regMu.RUnlock()
	t, ok := e.treasuries[addr]
	return t, ok
}

// Governor looks up a deployed governor.
func (e *Engine) Governor(addr sdk.Address) (*Governor, bool) {
	e.regMu.RLock()
	defer e.regMu.RUnlock()
	g, ok := e.governors[addr]
	return g, ok
}
