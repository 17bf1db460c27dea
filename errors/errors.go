package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // opening and validating a module
	PhaseSnapshot Phase = "snapshot" // saving or restoring module state
	PhaseReload   Phase = "reload"   // hot-reload protocol
	PhaseUpdate   Phase = "update"   // per-tick module calls
	PhaseHost     Phase = "host"     // host callback dispatch
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindMissingSymbol     Kind = "missing_symbol"
	KindTypeMismatch      Kind = "type_mismatch"
	KindVersionMismatch   Kind = "version_mismatch"
	KindSchemaMismatch    Kind = "schema_mismatch"
	KindPanic             Kind = "panic"
	KindBufferTooSmall    Kind = "buffer_too_small"
	KindRetriesExhausted  Kind = "retries_exhausted"
	KindInvalidData       Kind = "invalid_data"
	KindInvalidInput      Kind = "invalid_input"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindIO                Kind = "io"
	KindInstantiation     Kind = "instantiation"
	KindModuleFailure     Kind = "module_failure"
	KindNotInitialized    Kind = "not_initialized"
	KindUnsupportedFormat Kind = "unsupported_format"
)

// Error is the structured error type used throughout hotswap
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Module string
	Symbol string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Module != "" {
		b.WriteString(" in ")
		b.WriteString(e.Module)
	}

	if e.Symbol != "" {
		b.WriteString(" symbol ")
		b.WriteString(e.Symbol)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Is forwards to the standard library so callers need a single errors import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As forwards to the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Module sets the module path
func (b *Builder) Module(path string) *Builder {
	b.err.Module = path
	return b
}

// Symbol sets the entry point name
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Load creates a module loading error
func Load(module, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Module: module,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// MissingSymbol reports a module that does not export a required entry point
func MissingSymbol(module, symbol string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindMissingSymbol,
		Module: module,
		Symbol: symbol,
		Detail: fmt.Sprintf("module does not export %q", symbol),
		Cause:  cause,
	}
}

// SymbolType reports an entry point whose signature does not match the contract
func SymbolType(module, symbol string, got any) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindTypeMismatch,
		Module: module,
		Symbol: symbol,
		Value:  got,
		Detail: fmt.Sprintf("unexpected entry point type %T", got),
	}
}

// VersionMismatch reports an ABI version disagreement between host and module
func VersionMismatch(module string, host, plugin uint32) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindVersionMismatch,
		Module: module,
		Value:  plugin,
		Detail: fmt.Sprintf("host ABI version %d, module ABI version %d", host, plugin),
	}
}

// SchemaMismatch reports a private-state layout disagreement between host and module
func SchemaMismatch(phase Phase, module string, host, plugin uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindSchemaMismatch,
		Module: module,
		Value:  plugin,
		Detail: fmt.Sprintf("host expects schema 0x%X, module provides 0x%X; rebuild host and module", host, plugin),
	}
}

// Fault reports an unrecoverable fault raised inside module code
func Fault(phase Phase, op string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPanic,
		Symbol: op,
		Detail: "module fault during " + op,
		Cause:  cause,
	}
}

// ModuleFailure reports a non-success result returned by a module entry point
func ModuleFailure(phase Phase, op string, result fmt.Stringer) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindModuleFailure,
		Symbol: op,
		Value:  result,
		Detail: fmt.Sprintf("%s returned %s", op, result),
	}
}

// RetriesExhausted reports a bounded retry loop that gave up
func RetriesExhausted(phase Phase, what string, attempts int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRetriesExhausted,
		Value:  attempts,
		Detail: fmt.Sprintf("%s abandoned after %d attempts", what, attempts),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Value:  offset,
		Detail: fmt.Sprintf("offset %d length %d outside module memory", offset, length),
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// IO wraps a filesystem failure
func IO(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(module string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Module: module,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// NotInitialized creates a not-initialized error for a missing module
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
