package abi

import (
	"context"
	"math"
	"strconv"

	"github.com/spaolacci/murmur3"
)

// Version is the function-table shape compiled into this host.
// Bump it whenever FunctionTable or the wasm export contract changes.
const Version uint32 = 1

// Snapshot envelope constants.
const (
	SnapshotMagic uint32 = 0xCAFEBABE
	StateVersion  uint32 = 1
	EnvelopeSize         = 24 // magic(4) + version(4) + schema(8) + payload_len(8)
)

// Result is the status returned by every module entry point.
type Result uint32

const (
	Success Result = iota
	BufferTooSmall
	SchemaMismatch
	PanicDetected
	Error
)

func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case BufferTooSmall:
		return "BufferTooSmall"
	case SchemaMismatch:
		return "SchemaMismatch"
	case PanicDetected:
		return "PanicDetected"
	case Error:
		return "Error"
	default:
		return "Result(" + strconv.FormatUint(uint64(r), 10) + ")"
	}
}

// ResultFromCode maps a raw code returned across the boundary.
// Unknown codes collapse to Error.
func ResultFromCode(code uint32) Result {
	if code > uint32(Error) {
		return Error
	}
	return Result(code)
}

// HostContext is the opaque handle a module passes back to host callbacks.
type HostContext uint32

// NoContext is never issued by the host.
const NoContext HostContext = 0

// ActionID is a stable integer id for a named input action.
type ActionID uint32

// ActionNotFound is returned when an action name is not registered.
const ActionNotFound ActionID = math.MaxUint32

// Canonical movement actions, registered first so they get ids 0..3.
const (
	MoveUp ActionID = iota
	MoveDown
	MoveLeft
	MoveRight
)

// EntityKind selects what a Spawn request creates.
type EntityKind uint32

const (
	KindPlayer EntityKind = iota
	KindCamera
	KindEnemy
)

func (k EntityKind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindCamera:
		return "camera"
	case KindEnemy:
		return "enemy"
	default:
		return "kind(" + strconv.FormatUint(uint64(k), 10) + ")"
	}
}

// HostCallbacks is the only way a module may affect host-owned state.
// Every method takes the host context first.
type HostCallbacks interface {
	ResolveAction(host HostContext, name string) ActionID
	Spawn(host HostContext, kind EntityKind, x, y float32)
	MovePlayer(host HostContext, dx, dy float32)
	Log(host HostContext, msg string)
}

// FunctionTable is the entire surface a loaded module exposes to the host.
// Implementations own the module's opaque state; a table is used by one
// goroutine at a time.
type FunctionTable interface {
	// OnLoad re-acquires transient bindings. Safe to call after every load.
	OnLoad(ctx context.Context, host HostContext, cb HostCallbacks) Result
	// OnUpdate runs one simulation step.
	OnUpdate(ctx context.Context, host HostContext, input *InputState, dt float32) Result
	// OnUnload is a best-effort hook run before teardown.
	OnUnload(ctx context.Context, host HostContext) Result
	// StateLen is the exact byte count of header plus payload.
	StateLen(ctx context.Context) int
	// SaveState writes header and payload, or returns BufferTooSmall.
	SaveState(ctx context.Context, buf []byte) Result
	// LoadState validates and restores, or returns SchemaMismatch or Error.
	LoadState(ctx context.Context, buf []byte) Result
	// DropState frees module-owned state. The host calls it before
	// releasing the module.
	DropState(ctx context.Context)
	// SchemaHash identifies the private-state layout.
	SchemaHash(ctx context.Context) uint64
}

// VersionFunc is the entry point exported under SymbolVersion.
type VersionFunc func(ctx context.Context) (uint32, error)

// FactoryFunc is the entry point exported under SymbolFactory.
type FactoryFunc func(ctx context.Context) (FunctionTable, error)

// Well-known entry point names resolved by the loader.
const (
	SymbolVersion = "hotswap_abi_version"
	SymbolFactory = "hotswap_create"
)

// LayoutHash derives a schema hash from a layout identifier.
// Host and module must agree on the identifier.
func LayoutHash(layoutID string) uint64 {
	return murmur3.Sum64([]byte(layoutID))
}
