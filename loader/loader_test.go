package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/errors"
)

type fakeTable struct {
	events *[]string
	schema uint64
}

func (t *fakeTable) OnLoad(context.Context, abi.HostContext, abi.HostCallbacks) abi.Result {
	return abi.Success
}
func (t *fakeTable) OnUpdate(context.Context, abi.HostContext, *abi.InputState, float32) abi.Result {
	return abi.Success
}
func (t *fakeTable) OnUnload(context.Context, abi.HostContext) abi.Result { return abi.Success }
func (t *fakeTable) StateLen(context.Context) int                          { return 0 }
func (t *fakeTable) SaveState(context.Context, []byte) abi.Result          { return abi.Success }
func (t *fakeTable) LoadState(context.Context, []byte) abi.Result          { return abi.Success }
func (t *fakeTable) DropState(context.Context)                             { *t.events = append(*t.events, "drop") }
func (t *fakeTable) SchemaHash(context.Context) uint64                     { return t.schema }

type fakeLibrary struct {
	symbols map[string]Symbol
	events  *[]string
	path    string
}

func (l *fakeLibrary) Lookup(name string) (Symbol, error) {
	sym, ok := l.symbols[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return sym, nil
}

func (l *fakeLibrary) Close(context.Context) error {
	_, err := os.Stat(l.path)
	*l.events = append(*l.events, "close")
	if err != nil {
		*l.events = append(*l.events, "copy-missing-at-close")
	}
	return nil
}

type fixture struct {
	events  []string
	version uint32
	schema  uint64
	symbols func(f *fixture) map[string]Symbol
	opened  []string
}

func (f *fixture) opener() Opener {
	return OpenerFunc(func(_ context.Context, path string) (Library, error) {
		f.opened = append(f.opened, path)
		syms := map[string]Symbol{
			abi.SymbolVersion: abi.VersionFunc(func(context.Context) (uint32, error) { return f.version, nil }),
			abi.SymbolFactory: abi.FactoryFunc(func(context.Context) (abi.FunctionTable, error) {
				return &fakeTable{events: &f.events, schema: f.schema}, nil
			}),
		}
		if f.symbols != nil {
			syms = f.symbols(f)
		}
		return &fakeLibrary{symbols: syms, events: &f.events, path: path}, nil
	})
}

func writeModule(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.wasm")
	if err := os.WriteFile(path, []byte("module"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func listCopies(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, e := range entries {
		if IsLoadedCopy(e.Name()) {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestCopyPath(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		p := CopyPath("/tmp/mods/game.wasm")
		if seen[p] {
			t.Fatalf("duplicate copy path %s", p)
		}
		seen[p] = true
		base := filepath.Base(p)
		if !strings.HasPrefix(base, "game_loaded_") || !strings.HasSuffix(base, ".wasm") {
			t.Fatalf("unexpected copy name %s", base)
		}
		if filepath.Dir(p) != "/tmp/mods" {
			t.Fatalf("copy not beside source: %s", p)
		}
	}
	if IsLoadedCopy("/tmp/mods/game.wasm") {
		t.Fatal("source reported as copy")
	}
}

func TestLoad_Success(t *testing.T) {
	ctx := context.Background()
	src := writeModule(t)
	f := &fixture{version: abi.Version, schema: 7}
	l := New(f.opener(), 7)

	h, err := l.Load(ctx, src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.Source() != src || h.Path() == src {
		t.Fatalf("paths: source=%s path=%s", h.Source(), h.Path())
	}
	if len(f.opened) != 1 || f.opened[0] != h.Path() {
		t.Fatalf("opened %v, want copy %s", f.opened, h.Path())
	}
	if _, err := os.Stat(h.Path()); err != nil {
		t.Fatalf("copy missing while loaded: %v", err)
	}
	if h.Table().SchemaHash(ctx) != 7 {
		t.Fatal("wrong table")
	}
}

func TestLoad_TwoLoadsDistinctPaths(t *testing.T) {
	ctx := context.Background()
	src := writeModule(t)
	f := &fixture{version: abi.Version, schema: 1}
	l := New(f.opener(), 1)

	a, err := l.Load(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	b, err := l.Load(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	if a.Path() == b.Path() {
		t.Fatalf("both loads used %s", a.Path())
	}
}

func TestLoad_Failures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		fixture fixture
		kind    errors.Kind
	}{
		{
			name:    "version mismatch",
			fixture: fixture{version: abi.Version + 1, schema: 1},
			kind:    errors.KindVersionMismatch,
		},
		{
			name:    "schema mismatch",
			fixture: fixture{version: abi.Version, schema: 2},
			kind:    errors.KindSchemaMismatch,
		},
		{
			name: "missing factory",
			fixture: fixture{version: abi.Version, symbols: func(*fixture) map[string]Symbol {
				return map[string]Symbol{
					abi.SymbolVersion: abi.VersionFunc(func(context.Context) (uint32, error) { return abi.Version, nil }),
				}
			}},
			kind: errors.KindMissingSymbol,
		},
		{
			name: "wrong symbol type",
			fixture: fixture{version: abi.Version, symbols: func(*fixture) map[string]Symbol {
				return map[string]Symbol{abi.SymbolVersion: func() uint32 { return abi.Version }}
			}},
			kind: errors.KindTypeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeModule(t)
			f := tt.fixture
			l := New(f.opener(), 1)

			h, err := l.Load(ctx, src)
			if err == nil {
				t.Fatalf("Load succeeded: %v", h)
			}
			if got := errors.KindOf(err); got != tt.kind {
				t.Fatalf("kind = %s, want %s (%v)", got, tt.kind, err)
			}
			if copies := listCopies(t, filepath.Dir(src)); len(copies) != 0 {
				t.Fatalf("copies left behind: %v", copies)
			}
			if len(f.events) == 0 || f.events[len(f.events)-1] != "close" {
				t.Fatalf("library not closed: %v", f.events)
			}
		})
	}
}

func TestLoad_SourceMissing(t *testing.T) {
	f := &fixture{version: abi.Version}
	l := New(f.opener(), 0)
	_, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "nope.wasm"))
	if errors.KindOf(err) != errors.KindNotFound {
		t.Fatalf("err = %v", err)
	}
	if len(f.opened) != 0 {
		t.Fatal("opener called for missing source")
	}
}

func TestLoad_OpenFails(t *testing.T) {
	src := writeModule(t)
	l := New(OpenerFunc(func(context.Context, string) (Library, error) {
		return nil, os.ErrPermission
	}), 0)
	_, err := l.Load(context.Background(), src)
	if err == nil || !errors.Is(err, os.ErrPermission) {
		t.Fatalf("err = %v", err)
	}
	if copies := listCopies(t, filepath.Dir(src)); len(copies) != 0 {
		t.Fatalf("copies left behind: %v", copies)
	}
}

func TestHandle_CloseOrder(t *testing.T) {
	ctx := context.Background()
	src := writeModule(t)
	f := &fixture{version: abi.Version, schema: 3}
	h, err := New(f.opener(), 3).Load(ctx, src)
	if err != nil {
		t.Fatal(err)
	}

	if err := h.Close(ctx); err != nil {
		t.Fatal(err)
	}
	want := []string{"drop", "close"}
	if strings.Join(f.events, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", f.events, want)
	}
	if _, err := os.Stat(h.Path()); !os.IsNotExist(err) {
		t.Fatalf("copy not removed: %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source removed: %v", err)
	}

	if err := h.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if len(f.events) != 2 {
		t.Fatalf("second close repeated work: %v", f.events)
	}
}

func TestHandle_CloseRemoveFailureLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)

	src := writeModule(t)
	f := &fixture{version: abi.Version}
	l := New(f.opener(), 0)
	l.Logger = zap.New(core)

	h, err := l.Load(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	// A non-empty directory at the copy path makes os.Remove fail.
	if err := os.Remove(h.Path()); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(h.Path(), "busy"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := h.Close(ctx); err != nil {
		t.Fatalf("Close returned %v, want nil", err)
	}
	if logs.FilterMessage("remove module copy").Len() != 1 {
		t.Fatalf("warning not logged: %v", logs.All())
	}
}
