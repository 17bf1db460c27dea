// Package guest is the module-side half of the contract for modules written
// in Go.
//
// A module describes its private state as a plain struct and its behaviour
// as Hooks; NewTable turns the pair into an abi.FunctionTable that
//
//   - rejects nil and empty arguments with abi.Error before touching them,
//   - converts any panic inside a hook into abi.PanicDetected,
//   - writes and validates the snapshot envelope, and
//   - serializes exported struct fields with CBOR.
//
// Unexported fields and fields tagged `cbor:"-"` are transient: they are
// never written to a snapshot and come back with their default values after
// a restore. Bindings received from the host (action ids, callbacks) belong
// there, since they are only valid for the process that handed them out.
//
// The same table serves a module linked into the host (see package static)
// and a module compiled to WebAssembly (see cmd/gamemodule).
package guest
