//go:build wasip1

// Command gamemodule builds the sample game as a WebAssembly module:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o game.wasm ./cmd/gamemodule
//
// Rebuilding while hotswap runs it triggers a hot reload.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/game"
	"github.com/wippyai/hotswap/guest"
)

func main() {}

var (
	tables = make(map[uint32]*guest.Table[game.State])
	next   uint32

	// allocs pins buffers handed to the host until it frees them.
	allocs = make(map[uint32][]byte)
)

func bytesAt(ptr, n uint32) []byte {
	if ptr == 0 || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), n)
}

func onFault(op string, recovered any, stack []byte) {
	fmt.Fprintf(os.Stderr, "game module panic in %s: %v\n%s", op, recovered, stack)
}

func table(state uint32) (*guest.Table[game.State], bool) {
	t, ok := tables[state]
	return t, ok
}

//go:wasmexport hotswap_abi_version
func abiVersion() uint32 {
	return abi.Version
}

//go:wasmexport hotswap_create
func create() uint32 {
	next++
	tables[next] = game.New(guest.WithFaultHandler(onFault))
	return next
}

//go:wasmexport hotswap_schema_hash
func schemaHash() uint64 {
	return game.SchemaHash()
}

//go:wasmexport hotswap_on_load
func onLoad(state, host uint32) uint32 {
	t, ok := table(state)
	if !ok {
		return uint32(abi.Error)
	}
	return uint32(t.OnLoad(context.Background(), abi.HostContext(host), callbacks{}))
}

//go:wasmexport hotswap_on_update
func onUpdate(state, host, input uint32, dt float32) uint32 {
	t, ok := table(state)
	if !ok {
		return uint32(abi.Error)
	}
	var in abi.InputState
	if err := in.UnmarshalBinary(bytesAt(input, abi.InputStateSize)); err != nil {
		return uint32(abi.Error)
	}
	return uint32(t.OnUpdate(context.Background(), abi.HostContext(host), &in, dt))
}

//go:wasmexport hotswap_on_unload
func onUnload(state, host uint32) uint32 {
	t, ok := table(state)
	if !ok {
		return uint32(abi.Error)
	}
	return uint32(t.OnUnload(context.Background(), abi.HostContext(host)))
}

//go:wasmexport hotswap_state_len
func stateLen(state uint32) uint32 {
	t, ok := table(state)
	if !ok {
		return 0
	}
	return uint32(t.StateLen(context.Background()))
}

//go:wasmexport hotswap_save_state
func saveState(state, ptr, n uint32) uint32 {
	t, ok := table(state)
	if !ok {
		return uint32(abi.Error)
	}
	return uint32(t.SaveState(context.Background(), bytesAt(ptr, n)))
}

//go:wasmexport hotswap_load_state
func loadState(state, ptr, n uint32) uint32 {
	t, ok := table(state)
	if !ok {
		return uint32(abi.Error)
	}
	return uint32(t.LoadState(context.Background(), bytesAt(ptr, n)))
}

//go:wasmexport hotswap_drop_state
func dropState(state uint32) {
	if t, ok := table(state); ok {
		t.DropState(context.Background())
		delete(tables, state)
	}
}

//go:wasmexport hotswap_alloc
func alloc(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	allocs[ptr] = buf
	return ptr
}

//go:wasmexport hotswap_free
func free(ptr, _ uint32) {
	delete(allocs, ptr)
}

//go:wasmimport hotswap_host resolve_action
func hostResolveAction(host, ptr, n uint32) uint32

//go:wasmimport hotswap_host spawn
func hostSpawn(host, kind uint32, x, y float32)

//go:wasmimport hotswap_host move_player
func hostMovePlayer(host uint32, dx, dy float32)

//go:wasmimport hotswap_host log
func hostLog(host, ptr, n uint32)

// callbacks forwards to the host imports.
type callbacks struct{}

func stringArg(s string) (ptr, n uint32) {
	if s == "" {
		return 0, 0
	}
	return uint32(uintptr(unsafe.Pointer(unsafe.StringData(s)))), uint32(len(s))
}

func (callbacks) ResolveAction(host abi.HostContext, name string) abi.ActionID {
	ptr, n := stringArg(name)
	id := hostResolveAction(uint32(host), ptr, n)
	runtime.KeepAlive(name)
	return abi.ActionID(id)
}

func (callbacks) Spawn(host abi.HostContext, kind abi.EntityKind, x, y float32) {
	hostSpawn(uint32(host), uint32(kind), x, y)
}

func (callbacks) MovePlayer(host abi.HostContext, dx, dy float32) {
	hostMovePlayer(uint32(host), dx, dy)
}

func (callbacks) Log(host abi.HostContext, msg string) {
	ptr, n := stringArg(msg)
	hostLog(uint32(host), ptr, n)
	runtime.KeepAlive(msg)
}
