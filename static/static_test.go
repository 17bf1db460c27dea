package static

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/errors"
	"github.com/wippyai/hotswap/guest"
	"github.com/wippyai/hotswap/loader"
)

type empty struct {
	N int `cbor:"n"`
}

func module(version uint32, schema uint64) Module {
	return Module{
		Version: func(context.Context) (uint32, error) { return version, nil },
		Factory: func(context.Context) (abi.FunctionTable, error) {
			return guest.NewTable(schema, guest.Hooks[empty]{New: func() *empty { return &empty{} }}), nil
		},
	}
}

func TestRegistry_LoadThroughLoader(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	reg.Register("v1", module(abi.Version, 9))

	var closed []string
	reg.OnClose(func(name, path string) { closed = append(closed, name) })

	manifest := filepath.Join(t.TempDir(), "game.mod")
	if err := WriteManifest(manifest, "v1"); err != nil {
		t.Fatal(err)
	}

	h, err := loader.New(reg.Opener(), 9).Load(ctx, manifest)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := h.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if len(closed) != 1 || closed[0] != "v1" {
		t.Fatalf("closed = %v", closed)
	}
}

func TestRegistry_Failures(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	reg.Register("old", module(abi.Version+1, 9))
	reg.Register("partial", Module{Version: func(context.Context) (uint32, error) { return abi.Version, nil }})

	tests := []struct {
		name string
		kind errors.Kind
	}{
		{"unknown", errors.KindNotFound},
		{"old", errors.KindVersionMismatch},
		{"partial", errors.KindMissingSymbol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manifest := filepath.Join(t.TempDir(), "game.mod")
			if err := WriteManifest(manifest, tt.name); err != nil {
				t.Fatal(err)
			}
			_, err := loader.New(reg.Opener(), 9).Load(ctx, manifest)
			if got := errors.KindOf(err); got != tt.kind {
				t.Fatalf("kind = %q, want %q (%v)", got, tt.kind, err)
			}
		})
	}
}

func TestRegistry_Names(t *testing.T) {
	reg := NewRegistry()
	reg.Register("b", Module{})
	reg.Register("a", Module{})
	names := reg.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("Names = %v", names)
	}
}
