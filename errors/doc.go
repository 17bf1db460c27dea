// Package errors provides structured error types for the hotswap runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the module path, the symbol involved, the offending value
// and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindVersionMismatch).
//		Module("game.wasm").
//		Detail("host expects %d, module reports %d", 1, 2).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MissingSymbol("game.wasm", "hotswap_create", cause)
//	err := errors.Fault(errors.PhaseUpdate, "on_update", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
