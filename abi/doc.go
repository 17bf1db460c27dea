// Package abi defines the contract shared by the host and a loadable module.
//
// The contract is deliberately small: result codes, the opaque host context
// handle, the input snapshot handed to every tick, the host callback set, and
// the module's function table. Everything that crosses the module boundary
// is one of these types.
//
// # Binary modules
//
// A WebAssembly module satisfies the contract by exporting the functions named
// by the Export* constants and importing the host callbacks from ImportModule.
// Pointers are offsets into the module's own linear memory; the host copies
// buffers in and out and never retains references into it.
//
// # Host context
//
// HostContext is a capability, not a data structure. Modules receive it on
// every call and may only pass it back to HostCallbacks. The host maps it to
// its world through a registry, so a module can never reach host memory.
package abi
