package abi

// Export names of the WebAssembly module contract.
const (
	ExportVersion    = SymbolVersion
	ExportCreate     = SymbolFactory
	ExportOnLoad     = "hotswap_on_load"
	ExportOnUpdate   = "hotswap_on_update"
	ExportOnUnload   = "hotswap_on_unload"
	ExportStateLen   = "hotswap_state_len"
	ExportSaveState  = "hotswap_save_state"
	ExportLoadState  = "hotswap_load_state"
	ExportDropState  = "hotswap_drop_state"
	ExportSchemaHash = "hotswap_schema_hash"
	ExportAlloc      = "hotswap_alloc"
	ExportFree       = "hotswap_free"
)

// TableExports lists the exports a module must provide besides the
// version and factory entry points.
var TableExports = []string{
	ExportOnLoad,
	ExportOnUpdate,
	ExportOnUnload,
	ExportStateLen,
	ExportSaveState,
	ExportLoadState,
	ExportDropState,
	ExportSchemaHash,
	ExportAlloc,
	ExportFree,
}

// Host callback imports, all under ImportModule.
const (
	ImportModule        = "hotswap_host"
	ImportResolveAction = "resolve_action" // (ctx, name_ptr, name_len) -> i32
	ImportSpawn         = "spawn"          // (ctx, kind, x f32, y f32)
	ImportMovePlayer    = "move_player"    // (ctx, dx f32, dy f32)
	ImportLog           = "log"            // (ctx, ptr, len)
)
