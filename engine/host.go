package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/hotswap/abi"
)

var (
	i32 = api.ValueTypeI32
	f32 = api.ValueTypeF32
)

// bridge routes host imports to the callbacks bound by the most recent
// OnLoad. Each library has its own bridge.
type bridge struct {
	mu  sync.RWMutex
	cb  abi.HostCallbacks
	log *zap.Logger
}

func (b *bridge) bind(cb abi.HostCallbacks) {
	b.mu.Lock()
	b.cb = cb
	b.mu.Unlock()
}

func (b *bridge) callbacks() abi.HostCallbacks {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cb
}

// guard keeps a failing callback from unwinding into the guest.
func (b *bridge) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("host callback panicked", zap.String("import", name), zap.Any("panic", r))
		}
	}()
	fn()
}

func (b *bridge) instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(abi.ImportModule)

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.resolveAction), []api.ValueType{i32, i32, i32}, []api.ValueType{i32}).
		Export(abi.ImportResolveAction)

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.spawn), []api.ValueType{i32, i32, f32, f32}, nil).
		Export(abi.ImportSpawn)

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.movePlayer), []api.ValueType{i32, f32, f32}, nil).
		Export(abi.ImportMovePlayer)

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.logMessage), []api.ValueType{i32, i32, i32}, nil).
		Export(abi.ImportLog)

	return builder.Instantiate(ctx)
}

func (b *bridge) resolveAction(_ context.Context, mod api.Module, stack []uint64) {
	host := abi.HostContext(api.DecodeU32(stack[0]))
	ptr, n := api.DecodeU32(stack[1]), api.DecodeU32(stack[2])
	stack[0] = api.EncodeU32(uint32(abi.ActionNotFound))

	name, ok := readString(mod, ptr, n)
	if !ok {
		b.log.Warn("action name outside module memory", zap.Uint32("ptr", ptr), zap.Uint32("len", n))
		return
	}
	cb := b.callbacks()
	if cb == nil {
		return
	}
	b.guard(abi.ImportResolveAction, func() {
		stack[0] = api.EncodeU32(uint32(cb.ResolveAction(host, name)))
	})
}

func (b *bridge) spawn(_ context.Context, _ api.Module, stack []uint64) {
	host := abi.HostContext(api.DecodeU32(stack[0]))
	kind := abi.EntityKind(api.DecodeU32(stack[1]))
	x, y := api.DecodeF32(stack[2]), api.DecodeF32(stack[3])
	if cb := b.callbacks(); cb != nil {
		b.guard(abi.ImportSpawn, func() { cb.Spawn(host, kind, x, y) })
	}
}

func (b *bridge) movePlayer(_ context.Context, _ api.Module, stack []uint64) {
	host := abi.HostContext(api.DecodeU32(stack[0]))
	dx, dy := api.DecodeF32(stack[1]), api.DecodeF32(stack[2])
	if cb := b.callbacks(); cb != nil {
		b.guard(abi.ImportMovePlayer, func() { cb.MovePlayer(host, dx, dy) })
	}
}

func (b *bridge) logMessage(_ context.Context, mod api.Module, stack []uint64) {
	host := abi.HostContext(api.DecodeU32(stack[0]))
	ptr, n := api.DecodeU32(stack[1]), api.DecodeU32(stack[2])
	msg, ok := readString(mod, ptr, n)
	if !ok {
		b.log.Warn("log message outside module memory", zap.Uint32("ptr", ptr), zap.Uint32("len", n))
		return
	}
	if cb := b.callbacks(); cb != nil {
		b.guard(abi.ImportLog, func() { cb.Log(host, msg) })
	}
}
