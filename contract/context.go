package contract

import (
	"context"

	"okinoko_governor/sdk"
)

// frame is one level of the call stack: its pending writes and events.
type frame struct {
	state  *layer
	events []Event
}

// Context is handed to every contract operation. It knows who is running
// (Self), who called (Caller) and the tx env, and owns the frame the call
// writes into.
type Context struct {
	ctx    context.Context
	engine *Engine
	env    sdk.Env
	self   sdk.Address
	caller sdk.Address
	frame  *frame
	depth  int
}

// Context returns the go context of the top-level call.
func (c *Context) Context() context.Context { return c.ctx }

// Env is the per-tx environment, the same snapshot for every nested frame.
func (c *Context) Env() sdk.Env { return c.env }

// Self is the contract currently executing.
func (c *Context) Self() sdk.Address { return c.self }

// Caller is the identity that invoked Self: the tx sender at the top level,
// the calling contract inside nested calls.
func (c *Context) Caller() sdk.Address { return c.caller }

// Now is the block timestamp in unix seconds.
func (c *Context) Now() int64 { return c.env.Unix() }

// TxID is the id of the top-level transaction.
func (c *Context) TxID() string { return c.env.TxId }

// Engine gives access to the contract registry.
func (c *Context) Engine() *Engine { return c.engine }

// state is the private keyspace of the given contract in the current frame.
func (c *Context) state(owner sdk.Address) State {
	return scoped{st: c.frame.state, prefix: namespace(owner)}
}

// Invoke runs fn as a nested call into target with Self as the caller.
// Writes and events of the nested call are merged only if fn succeeds, so a
// failed callee never leaves partial state behind. Reentrant calls are just
// deeper Invokes: they see everything the outer frames wrote so far.
func (c *Context) Invoke(target sdk.Address, fn func(*Context) error) error {
	return c.nested(target, c.self, fn)
}

// savepoint runs fn in a nested frame with the same identities.
func (c *Context) savepoint(fn func(*Context) error) error {
	return c.nested(c.self, c.caller, fn)
}

func (c *Context) nested(self, caller sdk.Address, fn func(*Context) error) error {
	if c.depth >= MaxCallDepth {
		return ErrCallDepth
	}
	if err := c.ctx.Err(); err != nil {
		return err
	}
	child := &Context{
		ctx:    c.ctx,
		engine: c.engine,
		env:    c.env,
		self:   self,
		caller: caller,
		frame:  &frame{state: newLayer(c.frame.state)},
		depth:  c.depth + 1,
	}
	if err := fn(child); err != nil {
		return err
	}
	child.frame.state.merge()
	c.frame.events = append(c.frame.events, child.frame.events...)
	return nil
}
