// Package snapshot moves a module's private state across a reload.
//
// The state travels in a self-describing envelope:
//
//	offset  size  field
//	0       4     magic          0xCAFEBABE
//	4       4     state version
//	8       8     schema hash
//	16      8     payload length
//	24      n     payload (opaque to the host)
//
// All fields are little-endian. Headers are always copied byte-wise into a
// local Envelope value; a buffer is never reinterpreted in place, because its
// alignment is not guaranteed.
//
// The host side (Measure, Capture, Restore) only moves bytes. Interpreting
// the payload is the module's job; Go modules do it through the guest
// package.
package snapshot
