package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/hotswap"
	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/errors"
)

// Table implements abi.FunctionTable by calling guest exports.
type Table struct {
	mem    hotswap.Memory
	alloc  hotswap.Allocator
	bridge *bridge
	log    *zap.Logger

	onLoad     api.Function
	onUpdate   api.Function
	onUnload   api.Function
	stateLen   api.Function
	saveState  api.Function
	loadState  api.Function
	dropState  api.Function
	schemaHash api.Function

	state   uint32
	input   uint32
	dropped bool
	inBuf   [abi.InputStateSize]byte
}

func newTable(l *Library, state uint32) *Table {
	mod := l.module
	mem := NewMemory(mod.Memory())
	return &Table{
		mem: mem,
		alloc: &allocator{
			allocFn: mod.ExportedFunction(abi.ExportAlloc),
			freeFn:  mod.ExportedFunction(abi.ExportFree),
			mem:     mem,
			log:     l.log,
		},
		bridge:     l.bridge,
		log:        l.log,
		onLoad:     mod.ExportedFunction(abi.ExportOnLoad),
		onUpdate:   mod.ExportedFunction(abi.ExportOnUpdate),
		onUnload:   mod.ExportedFunction(abi.ExportOnUnload),
		stateLen:   mod.ExportedFunction(abi.ExportStateLen),
		saveState:  mod.ExportedFunction(abi.ExportSaveState),
		loadState:  mod.ExportedFunction(abi.ExportLoadState),
		dropState:  mod.ExportedFunction(abi.ExportDropState),
		schemaHash: mod.ExportedFunction(abi.ExportSchemaHash),
		state:      state,
	}
}

// call invokes fn and reports whether the guest returned normally.
func (t *Table) call(ctx context.Context, op string, fn api.Function, params ...uint64) ([]uint64, bool) {
	res, err := fn.Call(ctx, params...)
	if err != nil {
		t.log.Warn("module call failed", zap.String("op", op), zap.Error(err))
		return nil, false
	}
	return res, true
}

func (t *Table) result(ctx context.Context, op string, fn api.Function, params ...uint64) abi.Result {
	if t.dropped {
		return abi.Error
	}
	res, ok := t.call(ctx, op, fn, params...)
	if !ok {
		return abi.PanicDetected
	}
	if len(res) == 0 {
		return abi.Error
	}
	return abi.ResultFromCode(api.DecodeU32(res[0]))
}

// failure maps a host-side error around a guest call to a result code.
func failure(err error) abi.Result {
	if errors.KindOf(err) == errors.KindPanic {
		return abi.PanicDetected
	}
	return abi.Error
}

func (t *Table) OnLoad(ctx context.Context, host abi.HostContext, cb abi.HostCallbacks) abi.Result {
	if cb == nil || t.dropped {
		return abi.Error
	}
	t.bridge.bind(cb)
	return t.result(ctx, abi.ExportOnLoad, t.onLoad, uint64(t.state), uint64(host))
}

func (t *Table) OnUpdate(ctx context.Context, host abi.HostContext, in *abi.InputState, dt float32) abi.Result {
	if in == nil || t.dropped {
		return abi.Error
	}
	if t.input == 0 {
		ptr, err := t.alloc.Alloc(ctx, abi.InputStateSize)
		if err != nil {
			t.log.Warn("allocate input slot", zap.Error(err))
			return failure(err)
		}
		t.input = ptr
	}
	in.Put(t.inBuf[:])
	if err := t.mem.Write(t.input, t.inBuf[:]); err != nil {
		return abi.Error
	}
	return t.result(ctx, abi.ExportOnUpdate, t.onUpdate,
		uint64(t.state), uint64(host), uint64(t.input), api.EncodeF32(dt))
}

func (t *Table) OnUnload(ctx context.Context, host abi.HostContext) abi.Result {
	return t.result(ctx, abi.ExportOnUnload, t.onUnload, uint64(t.state), uint64(host))
}

func (t *Table) StateLen(ctx context.Context) int {
	if t.dropped {
		return 0
	}
	res, ok := t.call(ctx, abi.ExportStateLen, t.stateLen, uint64(t.state))
	if !ok || len(res) == 0 {
		return 0
	}
	return int(api.DecodeU32(res[0]))
}

func (t *Table) SaveState(ctx context.Context, buf []byte) abi.Result {
	if len(buf) == 0 || t.dropped {
		return abi.Error
	}
	n := uint32(len(buf))
	ptr, err := t.alloc.Alloc(ctx, n)
	if err != nil {
		return failure(err)
	}
	defer t.alloc.Free(ctx, ptr, n)

	res := t.result(ctx, abi.ExportSaveState, t.saveState, uint64(t.state), uint64(ptr), uint64(n))
	if res != abi.Success {
		return res
	}
	data, err := t.mem.Read(ptr, n)
	if err != nil {
		return abi.Error
	}
	copy(buf, data)
	return abi.Success
}

func (t *Table) LoadState(ctx context.Context, buf []byte) abi.Result {
	if len(buf) == 0 || t.dropped {
		return abi.Error
	}
	n := uint32(len(buf))
	ptr, err := t.alloc.Alloc(ctx, n)
	if err != nil {
		return failure(err)
	}
	defer t.alloc.Free(ctx, ptr, n)

	if err := t.mem.Write(ptr, buf); err != nil {
		return abi.Error
	}
	return t.result(ctx, abi.ExportLoadState, t.loadState, uint64(t.state), uint64(ptr), uint64(n))
}

// DropState releases the input slot and then the guest state.
// Calling it again is a no-op.
func (t *Table) DropState(ctx context.Context) {
	if t.dropped {
		return
	}
	if t.input != 0 {
		t.alloc.Free(ctx, t.input, abi.InputStateSize)
		t.input = 0
	}
	t.call(ctx, abi.ExportDropState, t.dropState, uint64(t.state))
	t.dropped = true
	t.state = 0
}

func (t *Table) SchemaHash(ctx context.Context) uint64 {
	res, ok := t.call(ctx, abi.ExportSchemaHash, t.schemaHash)
	if !ok || len(res) == 0 {
		return 0
	}
	return res[0]
}

var _ abi.FunctionTable = (*Table)(nil)
