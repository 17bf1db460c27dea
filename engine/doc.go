// Package engine runs hot-reloadable modules compiled to WebAssembly.
//
// It implements loader.Opener on top of wazero. Every Open creates its own
// wazero.Runtime, so closing a Library releases everything the module ever
// allocated, the same way unmapping a shared library would.
//
// # Module contract
//
// A module is a core wasm module exporting:
//
//	hotswap_abi_version() -> i32
//	hotswap_create() -> i32                          state handle
//	hotswap_on_load(state, ctx) -> i32
//	hotswap_on_update(state, ctx, input_ptr, dt f32) -> i32
//	hotswap_on_unload(state, ctx) -> i32
//	hotswap_state_len(state) -> i32
//	hotswap_save_state(state, ptr, len) -> i32
//	hotswap_load_state(state, ptr, len) -> i32
//	hotswap_drop_state(state)
//	hotswap_schema_hash() -> i64
//	hotswap_alloc(size) -> i32
//	hotswap_free(ptr, size)
//	memory
//
// and may import from the "hotswap_host" module:
//
//	resolve_action(ctx, name_ptr, name_len) -> i32
//	spawn(ctx, kind, x f32, y f32)
//	move_player(ctx, dx f32, dy f32)
//	log(ctx, ptr, len)
//
// Modules that import wasi_snapshot_preview1 (Go's wasip1 target) get WASI
// instantiated in the same runtime, and an exported _initialize runs before
// any other export.
//
// # Faults
//
// A trap or any other error from a guest call is reported as
// abi.PanicDetected. A host-side access outside guest memory is reported as
// abi.Error. Host callbacks recover their own panics.
//
// # Thread Safety
//
// A Table is used by one goroutine at a time.
package engine
