package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/errors"
	"github.com/wippyai/hotswap/internal/wasmtest"
	"github.com/wippyai/hotswap/loader"
	"github.com/wippyai/hotswap/snapshot"
)

const testSchema = 0x0123456789ABCDEF

type call struct {
	op   string
	host abi.HostContext
	kind abi.EntityKind
	x, y float32
	msg  string
}

type recorder struct {
	calls []call
}

func (r *recorder) ResolveAction(host abi.HostContext, name string) abi.ActionID {
	r.calls = append(r.calls, call{op: "resolve", host: host, msg: name})
	return 0
}

func (r *recorder) Spawn(host abi.HostContext, kind abi.EntityKind, x, y float32) {
	r.calls = append(r.calls, call{op: "spawn", host: host, kind: kind, x: x, y: y})
}

func (r *recorder) MovePlayer(host abi.HostContext, dx, dy float32) {
	r.calls = append(r.calls, call{op: "move", host: host, x: dx, y: dy})
}

func (r *recorder) Log(host abi.HostContext, msg string) {
	r.calls = append(r.calls, call{op: "log", host: host, msg: msg})
}

func blob(payload string) []byte {
	buf := make([]byte, abi.EnvelopeSize+len(payload))
	if err := snapshot.NewEnvelope(testSchema, len(payload)).Put(buf); err != nil {
		panic(err)
	}
	copy(buf[abi.EnvelopeSize:], payload)
	return buf
}

func defaultGuest() wasmtest.GuestOptions {
	return wasmtest.GuestOptions{
		Version: abi.Version,
		Schema:  testSchema,
		State:   blob("state-A"),
	}
}

func writeGuest(t *testing.T, opts wasmtest.GuestOptions) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guest.wasm")
	if err := os.WriteFile(path, wasmtest.Guest(opts), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func load(t *testing.T, opts wasmtest.GuestOptions) *loader.Handle {
	t.Helper()
	ctx := context.Background()
	h, err := loader.New(NewOpener(Config{}), testSchema).Load(ctx, writeGuest(t, opts))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { h.Close(ctx) })
	return h
}

func TestOpener_Load(t *testing.T) {
	h := load(t, defaultGuest())
	if got := h.Table().SchemaHash(context.Background()); got != testSchema {
		t.Fatalf("SchemaHash = 0x%X", got)
	}
	if _, ok := h.Table().(*Table); !ok {
		t.Fatalf("table type %T", h.Table())
	}
}

func TestOpener_LoadFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		opts func(*wasmtest.GuestOptions)
		kind errors.Kind
	}{
		{"version mismatch", func(o *wasmtest.GuestOptions) { o.Version = abi.Version + 1 }, errors.KindVersionMismatch},
		{"schema mismatch", func(o *wasmtest.GuestOptions) { o.Schema = 1 }, errors.KindSchemaMismatch},
		{"missing export", func(o *wasmtest.GuestOptions) { o.Omit = abi.ExportSaveState }, errors.KindMissingSymbol},
		{"missing version", func(o *wasmtest.GuestOptions) { o.Omit = abi.ExportVersion }, errors.KindMissingSymbol},
		{"version traps", func(o *wasmtest.GuestOptions) { o.Trap = abi.ExportVersion }, errors.KindPanic},
		{"factory traps", func(o *wasmtest.GuestOptions) { o.Trap = abi.ExportCreate }, errors.KindPanic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultGuest()
			tt.opts(&opts)
			path := writeGuest(t, opts)
			_, err := loader.New(NewOpener(Config{}), testSchema).Load(ctx, path)
			if got := errors.KindOf(err); got != tt.kind {
				t.Fatalf("kind = %q, want %q (%v)", got, tt.kind, err)
			}
			entries, _ := os.ReadDir(filepath.Dir(path))
			if len(entries) != 1 {
				t.Fatalf("copy left behind: %v", entries)
			}
		})
	}
}

func TestOpener_NotWasm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wasm")
	if err := os.WriteFile(path, []byte("not a module"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewOpener(Config{}).Open(context.Background(), path)
	if errors.KindOf(err) != errors.KindUnsupportedFormat {
		t.Fatalf("err = %v", err)
	}
}

func TestTable_CallbacksDispatch(t *testing.T) {
	ctx := context.Background()
	h := load(t, defaultGuest())
	rec := &recorder{}

	if res := h.Table().OnLoad(ctx, 7, rec); res != abi.Success {
		t.Fatalf("OnLoad = %v", res)
	}
	if len(rec.calls) != 2 {
		t.Fatalf("calls = %+v", rec.calls)
	}
	spawn, logged := rec.calls[0], rec.calls[1]
	if spawn.op != "spawn" || spawn.host != 7 || spawn.kind != abi.KindPlayer || spawn.x != 1 || spawn.y != 2 {
		t.Fatalf("spawn = %+v", spawn)
	}
	if logged.op != "log" || logged.msg != wasmtest.LoadMessage {
		t.Fatalf("log = %+v", logged)
	}

	var in abi.InputState
	in.Set(abi.MoveLeft, true)
	if res := h.Table().OnUpdate(ctx, 7, &in, 0.25); res != abi.Success {
		t.Fatalf("OnUpdate = %v", res)
	}
	move := rec.calls[len(rec.calls)-1]
	if move.op != "move" || move.x != 0.25 || move.y != 0.25 {
		t.Fatalf("move = %+v", move)
	}
}

func TestTable_InputCopiedIntoGuest(t *testing.T) {
	ctx := context.Background()
	h := load(t, defaultGuest())
	tbl := h.Table().(*Table)
	tbl.OnLoad(ctx, 1, &recorder{})

	var in abi.InputState
	in.Set(abi.MoveRight, true)
	in.Axes[2] = 0.5
	if res := tbl.OnUpdate(ctx, 1, &in, 0.1); res != abi.Success {
		t.Fatal(res)
	}
	if tbl.input < wasmtest.HeapStart {
		t.Fatalf("input slot at %d, want heap address", tbl.input)
	}
	raw, err := tbl.mem.Read(tbl.input, abi.InputStateSize)
	if err != nil {
		t.Fatal(err)
	}
	var got abi.InputState
	if err := got.UnmarshalBinary(raw); err != nil {
		t.Fatal(err)
	}
	if got != in {
		t.Fatalf("guest input = %+v, want %+v", got, in)
	}

	first := tbl.input
	tbl.OnUpdate(ctx, 1, &in, 0.1)
	if tbl.input != first {
		t.Fatal("input slot reallocated")
	}
}

func TestTable_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := load(t, defaultGuest())

	saved, err := snapshot.Capture(ctx, a.Table(), nil)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !bytes.Equal(saved, blob("state-A")) {
		t.Fatalf("saved %q", saved)
	}

	opts := defaultGuest()
	opts.State = blob("state-B")
	b := load(t, opts)
	if res := snapshot.Restore(ctx, b.Table(), saved); res != abi.Success {
		t.Fatalf("Restore = %v", res)
	}
	again, err := snapshot.Capture(ctx, b.Table(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, saved) {
		t.Fatalf("restored module saved %q, want %q", again, saved)
	}
}

func TestTable_TrapIsPanicDetected(t *testing.T) {
	ctx := context.Background()
	opts := defaultGuest()
	opts.Trap = abi.ExportOnUpdate
	h := load(t, opts)

	if res := h.Table().OnUpdate(ctx, 1, &abi.InputState{}, 0.1); res != abi.PanicDetected {
		t.Fatalf("OnUpdate = %v, want PanicDetected", res)
	}
	if res := h.Table().OnUnload(ctx, 1); res != abi.Success {
		t.Fatalf("OnUnload after trap = %v", res)
	}
}

func TestTable_SaveTrap(t *testing.T) {
	ctx := context.Background()
	opts := defaultGuest()
	opts.Trap = abi.ExportSaveState
	h := load(t, opts)

	_, err := snapshot.Capture(ctx, h.Table(), nil)
	if errors.KindOf(err) != errors.KindPanic {
		t.Fatalf("Capture err = %v", err)
	}
}

func TestTable_DropState(t *testing.T) {
	ctx := context.Background()
	h := load(t, defaultGuest())
	tbl := h.Table()
	tbl.OnUpdate(ctx, 1, &abi.InputState{}, 0.1)

	tbl.DropState(ctx)
	tbl.DropState(ctx)
	if tbl.(*Table).input != 0 {
		t.Fatal("input slot not freed")
	}
	if res := tbl.OnUpdate(ctx, 1, &abi.InputState{}, 0.1); res != abi.Error {
		t.Fatalf("OnUpdate after drop = %v", res)
	}
	if tbl.StateLen(ctx) != 0 {
		t.Fatal("StateLen after drop")
	}
}

func TestTable_NullArguments(t *testing.T) {
	ctx := context.Background()
	tbl := load(t, defaultGuest()).Table()
	if res := tbl.OnLoad(ctx, 1, nil); res != abi.Error {
		t.Fatalf("OnLoad(nil) = %v", res)
	}
	if res := tbl.OnUpdate(ctx, 1, nil, 0); res != abi.Error {
		t.Fatalf("OnUpdate(nil) = %v", res)
	}
	if res := tbl.SaveState(ctx, nil); res != abi.Error {
		t.Fatalf("SaveState(nil) = %v", res)
	}
	if res := tbl.LoadState(ctx, nil); res != abi.Error {
		t.Fatalf("LoadState(nil) = %v", res)
	}
}

func TestMemory_OutOfBounds(t *testing.T) {
	tbl := load(t, defaultGuest()).Table().(*Table)
	size := tbl.mem.Size()
	if _, err := tbl.mem.Read(size-2, 4); errors.KindOf(err) != errors.KindOutOfBounds {
		t.Fatalf("Read err = %v", err)
	}
	if err := tbl.mem.WriteU32(size, 1); errors.KindOf(err) != errors.KindOutOfBounds {
		t.Fatalf("WriteU32 err = %v", err)
	}
	if err := tbl.mem.WriteU32(0, 0xCAFE); err != nil {
		t.Fatal(err)
	}
	if v, err := tbl.mem.ReadU32(0); err != nil || v != 0xCAFE {
		t.Fatalf("ReadU32 = %d, %v", v, err)
	}
}

func TestLibrary_CloseIdempotent(t *testing.T) {
	ctx := context.Background()
	lib, err := NewOpener(Config{MemoryLimitPages: 16}).OpenLibrary(ctx, writeGuest(t, defaultGuest()))
	if err != nil {
		t.Fatal(err)
	}
	if err := lib.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := lib.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := lib.Lookup(abi.SymbolVersion); err == nil {
		t.Fatal("Lookup after Close succeeded")
	}
}

func TestInspect(t *testing.T) {
	opts := defaultGuest()
	opts.Omit = abi.ExportFree
	info, err := Inspect(context.Background(), writeGuest(t, opts), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != abi.Version || info.SchemaHash != testSchema {
		t.Fatalf("info = %+v", info)
	}
	if info.Complete() || len(info.Missing) != 1 || info.Missing[0] != abi.ExportFree {
		t.Fatalf("missing = %v", info.Missing)
	}
	if info.UsesWASI {
		t.Fatal("test guest does not import WASI")
	}
	if len(info.Imports) != 3 {
		t.Fatalf("imports = %v", info.Imports)
	}
}
