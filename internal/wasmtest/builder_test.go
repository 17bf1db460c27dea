package wasmtest

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

func TestWriter_LEB128(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*writer)
		want []byte
	}{
		{"u32 zero", func(w *writer) { w.u32(0) }, []byte{0x00}},
		{"u32 624485", func(w *writer) { w.u32(624485) }, []byte{0xE5, 0x8E, 0x26}},
		{"s64 -1", func(w *writer) { w.s64(-1) }, []byte{0x7F}},
		{"s64 -123456", func(w *writer) { w.s64(-123456) }, []byte{0xC0, 0xBB, 0x78}},
		{"s64 64", func(w *writer) { w.s64(64) }, []byte{0xC0, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w writer
			tt.fn(&w)
			if !bytes.Equal(w.bytes(), tt.want) {
				t.Fatalf("got % X, want % X", w.bytes(), tt.want)
			}
		})
	}
}

func TestBuilder_Runs(t *testing.T) {
	ctx := context.Background()
	b := New()
	g := b.Global(10)
	b.Memory(1).Data(100, []byte{1, 2, 3, 4})
	b.Func("bump", []ValType{I32}, []ValType{I32},
		GlobalGet(g),
		GlobalGet(g), LocalGet(0), I32Add(), GlobalSet(g))
	b.Func("copy", nil, nil, I32Const(200), I32Const(100), I32Const(4), MemoryCopy())
	b.Func("big", nil, []ValType{I64}, I64Const(-2))

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	mod, err := r.Instantiate(ctx, b.Bytes())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	bump := mod.ExportedFunction("bump")
	for _, want := range []uint32{10, 15} {
		res, err := bump.Call(ctx, 5)
		if err != nil {
			t.Fatal(err)
		}
		if got := api.DecodeU32(res[0]); got != want {
			t.Fatalf("bump = %d, want %d", got, want)
		}
	}

	if _, err := mod.ExportedFunction("copy").Call(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ := mod.Memory().Read(200, 4)
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("memory.copy result % X", got)
	}

	res, err := mod.ExportedFunction("big").Call(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if int64(res[0]) != -2 {
		t.Fatalf("i64 const = %d", int64(res[0]))
	}
}
