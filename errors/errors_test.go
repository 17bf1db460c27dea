package errors

import (
	"errors"
	"strings"
	"testing"
)

type resultName string

func (r resultName) String() string { return string(r) }

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindMissingSymbol,
				Module: "game_loaded_01.wasm",
				Symbol: "hotswap_create",
				Detail: "module does not export it",
			},
			contains: []string{"[load]", "missing_symbol", "game_loaded_01.wasm", "hotswap_create", "does not export"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseSnapshot,
				Kind:  KindBufferTooSmall,
			},
			contains: []string{"[snapshot]", "buffer_too_small"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseReload,
				Kind:   KindIO,
				Detail: "copy module",
				Cause:  errors.New("disk full"),
			},
			contains: []string{"[reload]", "io", "copy module", "caused by", "disk full"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseLoad,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := VersionMismatch("game.wasm", 1, 2)

	if !err.Is(&Error{Phase: PhaseLoad, Kind: KindVersionMismatch}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseReload, Kind: KindVersionMismatch}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseLoad, Kind: KindSchemaMismatch}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, &Error{Kind: KindVersionMismatch}) {
		t.Error("empty phase should match on kind alone")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseLoad, KindVersionMismatch).
		Module("game.wasm").
		Symbol("hotswap_abi_version").
		Value(7).
		Cause(cause).
		Detail("host %d, module %d", 1, 7).
		Build()

	if err.Phase != PhaseLoad {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseLoad)
	}
	if err.Module != "game.wasm" {
		t.Errorf("Module = %v, want game.wasm", err.Module)
	}
	if err.Symbol != "hotswap_abi_version" {
		t.Errorf("Symbol = %v, want hotswap_abi_version", err.Symbol)
	}
	if err.Value != 7 {
		t.Errorf("Value = %v, want 7", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "host 1, module 7" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("VersionMismatch", func(t *testing.T) {
		err := VersionMismatch("m", 1, 3)
		if err.Kind != KindVersionMismatch {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Detail, "1") || !strings.Contains(err.Detail, "3") {
			t.Errorf("Detail %q should name both versions", err.Detail)
		}
	})

	t.Run("SchemaMismatch", func(t *testing.T) {
		err := SchemaMismatch(PhaseLoad, "m", 0xAB, 0xCD)
		if err.Kind != KindSchemaMismatch {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Detail, "0xAB") || !strings.Contains(err.Detail, "0xCD") {
			t.Errorf("Detail %q should name both hashes", err.Detail)
		}
	})

	t.Run("MissingSymbol", func(t *testing.T) {
		err := MissingSymbol("m", "hotswap_create", nil)
		if err.Kind != KindMissingSymbol || err.Symbol != "hotswap_create" {
			t.Errorf("unexpected %+v", err)
		}
	})

	t.Run("SymbolType", func(t *testing.T) {
		err := SymbolType("m", "hotswap_create", 42)
		if err.Kind != KindTypeMismatch || !strings.Contains(err.Detail, "int") {
			t.Errorf("unexpected %+v", err)
		}
	})

	t.Run("Fault", func(t *testing.T) {
		err := Fault(PhaseUpdate, "on_update", errors.New("unreachable"))
		if err.Kind != KindPanic || err.Symbol != "on_update" {
			t.Errorf("unexpected %+v", err)
		}
	})

	t.Run("ModuleFailure", func(t *testing.T) {
		err := ModuleFailure(PhaseSnapshot, "save_state", resultName("Error"))
		if !strings.Contains(err.Error(), "save_state returned Error") {
			t.Errorf("unexpected %q", err.Error())
		}
	})

	t.Run("RetriesExhausted", func(t *testing.T) {
		err := RetriesExhausted(PhaseSnapshot, "save", 3)
		if err.Kind != KindRetriesExhausted || err.Value != 3 {
			t.Errorf("unexpected %+v", err)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseHost, 100, 8)
		if err.Kind != KindOutOfBounds || err.Value != uint32(100) {
			t.Errorf("unexpected %+v", err)
		}
	})
}

func TestKindOf(t *testing.T) {
	wrapped := Wrap(PhaseReload, KindInvalidData, Fault(PhaseSnapshot, "save_state", nil), "reload")
	if got := KindOf(wrapped); got != KindInvalidData {
		t.Errorf("KindOf = %v, want outermost kind", got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if !Is(wrapped, &Error{Kind: KindPanic}) {
		t.Error("Is should find the wrapped fault")
	}
}
