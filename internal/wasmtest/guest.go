package wasmtest

import (
	"github.com/wippyai/hotswap/abi"
)

// Fixed memory layout of the module built by Guest.
const (
	MessageOffset = 512
	StateOffset   = 1024
	HeapStart     = 8192
)

// LoadMessage is logged through the host by hotswap_on_load.
const LoadMessage = "guest loaded"

// GuestOptions shapes the module built by Guest.
type GuestOptions struct {
	Version uint32
	Schema  uint64
	// State is the exact blob hotswap_save_state writes. hotswap_load_state
	// copies whatever it receives over it.
	State []byte
	// Trap makes the named export execute unreachable.
	Trap string
	// Omit leaves the named export out.
	Omit string
}

// Guest builds a module implementing the full export contract with fixed
// behaviour:
//
//   - on_load spawns a player at (1, 2) and logs LoadMessage,
//   - on_update moves the player by (dt, dt),
//   - save_state and load_state copy the blob at StateOffset,
//   - alloc is a bump allocator starting at HeapStart.
func Guest(opts GuestOptions) []byte {
	b := New()
	i32 := []ValType{I32}

	spawn := b.Import(abi.ImportModule, abi.ImportSpawn, []ValType{I32, I32, F32, F32}, nil)
	move := b.Import(abi.ImportModule, abi.ImportMovePlayer, []ValType{I32, F32, F32}, nil)
	logFn := b.Import(abi.ImportModule, abi.ImportLog, []ValType{I32, I32, I32}, nil)

	heap := b.Global(HeapStart)
	b.Memory(1)
	b.Data(MessageOffset, []byte(LoadMessage))
	if len(opts.State) > 0 {
		b.Data(StateOffset, opts.State)
	}

	def := func(name string, params, results []ValType, body ...[]byte) {
		if name == opts.Omit {
			return
		}
		if name == opts.Trap {
			body = [][]byte{Unreachable()}
		}
		b.Func(name, params, results, body...)
	}

	def(abi.SymbolVersion, nil, i32, I32Const(int32(opts.Version)))
	def(abi.SymbolFactory, nil, i32, I32Const(1))
	def(abi.ExportOnLoad, []ValType{I32, I32}, i32,
		LocalGet(1), I32Const(int32(abi.KindPlayer)), F32Const(1), F32Const(2), Call(spawn),
		LocalGet(1), I32Const(MessageOffset), I32Const(int32(len(LoadMessage))), Call(logFn),
		I32Const(int32(abi.Success)))
	def(abi.ExportOnUpdate, []ValType{I32, I32, I32, F32}, i32,
		LocalGet(1), LocalGet(3), LocalGet(3), Call(move),
		I32Const(int32(abi.Success)))
	def(abi.ExportOnUnload, []ValType{I32, I32}, i32, I32Const(int32(abi.Success)))
	def(abi.ExportStateLen, i32, i32, I32Const(int32(len(opts.State))))
	def(abi.ExportSaveState, []ValType{I32, I32, I32}, i32,
		LocalGet(1), I32Const(StateOffset), I32Const(int32(len(opts.State))), MemoryCopy(),
		I32Const(int32(abi.Success)))
	def(abi.ExportLoadState, []ValType{I32, I32, I32}, i32,
		I32Const(StateOffset), LocalGet(1), LocalGet(2), MemoryCopy(),
		I32Const(int32(abi.Success)))
	def(abi.ExportDropState, i32, nil)
	def(abi.ExportSchemaHash, nil, []ValType{I64}, I64Const(int64(opts.Schema)))
	def(abi.ExportAlloc, i32, i32,
		GlobalGet(heap),
		GlobalGet(heap), LocalGet(0), I32Add(), GlobalSet(heap))
	def(abi.ExportFree, []ValType{I32, I32}, nil)

	return b.Bytes()
}
