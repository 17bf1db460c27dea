package guest

import (
	"context"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/snapshot"
)

// Hooks is the behaviour of a module over its state S.
// Only New is required.
type Hooks[S any] struct {
	// New returns the default-constructed state.
	New func() *S
	// Load re-acquires transient bindings after every load and reload.
	Load func(s *S, host abi.HostContext, cb abi.HostCallbacks) error
	// Update runs one simulation step.
	Update func(s *S, host abi.HostContext, in *abi.InputState, dt float32) error
	// Unload runs before the module is torn down.
	Unload func(s *S, host abi.HostContext) error
	// Restored runs after a snapshot was applied.
	Restored func(s *S)
}

// Option configures a Table.
type Option func(*options)

type options struct {
	codec   Codec
	onFault FaultHandler
}

// WithCodec replaces the CBOR payload codec.
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithFaultHandler observes panics caught at the boundary.
func WithFaultHandler(h FaultHandler) Option {
	return func(o *options) { o.onFault = h }
}

// Table adapts a Go state value and its hooks to abi.FunctionTable.
type Table[S any] struct {
	state  *S
	hooks  Hooks[S]
	codec  Codec
	fault  FaultHandler
	schema uint64
}

// NewTable constructs the module state and returns its function table.
func NewTable[S any](schema uint64, hooks Hooks[S], opts ...Option) *Table[S] {
	o := options{codec: CBOR()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Table[S]{
		state:  hooks.New(),
		hooks:  hooks,
		codec:  o.codec,
		fault:  o.onFault,
		schema: schema,
	}
}

// State exposes the live state. Nil after DropState.
func (t *Table[S]) State() *S {
	return t.state
}

func (t *Table[S]) OnLoad(_ context.Context, host abi.HostContext, cb abi.HostCallbacks) abi.Result {
	return contain("on_load", t.fault, func() abi.Result {
		if t.state == nil || cb == nil || host == abi.NoContext {
			return abi.Error
		}
		if t.hooks.Load == nil {
			return abi.Success
		}
		if err := t.hooks.Load(t.state, host, cb); err != nil {
			return abi.Error
		}
		return abi.Success
	})
}

func (t *Table[S]) OnUpdate(_ context.Context, host abi.HostContext, in *abi.InputState, dt float32) abi.Result {
	return contain("on_update", t.fault, func() abi.Result {
		if t.state == nil || in == nil || host == abi.NoContext {
			return abi.Error
		}
		if t.hooks.Update == nil {
			return abi.Success
		}
		if err := t.hooks.Update(t.state, host, in, dt); err != nil {
			return abi.Error
		}
		return abi.Success
	})
}

func (t *Table[S]) OnUnload(_ context.Context, host abi.HostContext) abi.Result {
	return contain("on_unload", t.fault, func() abi.Result {
		if t.state == nil {
			return abi.Error
		}
		if t.hooks.Unload == nil {
			return abi.Success
		}
		if err := t.hooks.Unload(t.state, host); err != nil {
			return abi.Error
		}
		return abi.Success
	})
}

func (t *Table[S]) StateLen(_ context.Context) int {
	n := 0
	contain("state_len", t.fault, func() abi.Result {
		if t.state == nil {
			return abi.Error
		}
		payload, err := t.codec.Marshal(t.state)
		if err != nil {
			return abi.Error
		}
		n = abi.EnvelopeSize + len(payload)
		return abi.Success
	})
	return n
}

func (t *Table[S]) SaveState(_ context.Context, buf []byte) abi.Result {
	return contain("save_state", t.fault, func() abi.Result {
		if t.state == nil || len(buf) == 0 {
			return abi.Error
		}
		payload, err := t.codec.Marshal(t.state)
		if err != nil {
			return abi.Error
		}
		if len(buf) < abi.EnvelopeSize+len(payload) {
			return abi.BufferTooSmall
		}
		if err := snapshot.NewEnvelope(t.schema, len(payload)).Put(buf); err != nil {
			return abi.Error
		}
		copy(buf[abi.EnvelopeSize:], payload)
		return abi.Success
	})
}

func (t *Table[S]) LoadState(_ context.Context, buf []byte) abi.Result {
	return contain("load_state", t.fault, func() abi.Result {
		if t.state == nil || len(buf) == 0 {
			return abi.Error
		}
		env, err := snapshot.ReadEnvelope(buf)
		if err != nil {
			return abi.Error
		}
		if res := env.Check(t.schema, len(buf)); res != abi.Success {
			return res
		}

		// Decode into a fresh value: transient fields keep their defaults
		// and a failed decode leaves the live state untouched.
		fresh := t.hooks.New()
		if err := t.codec.Unmarshal(env.Payload(buf), fresh); err != nil {
			return abi.Error
		}
		*t.state = *fresh
		if t.hooks.Restored != nil {
			t.hooks.Restored(t.state)
		}
		return abi.Success
	})
}

func (t *Table[S]) DropState(_ context.Context) {
	t.state = nil
}

func (t *Table[S]) SchemaHash(_ context.Context) uint64 {
	return t.schema
}

var _ abi.FunctionTable = (*Table[struct{}])(nil)
