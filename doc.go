// Package hotswap hosts game logic that lives in a separately built binary
// module and replaces it at runtime without losing the module's state.
//
// # Architecture Overview
//
// The repository is organized into packages with distinct responsibilities:
//
//	hotswap/             Root package with the guest Memory and Allocator interfaces
//	├── abi/             Function table, result codes, input and entity types
//	├── loader/          Copy, open, handshake and teardown of one module
//	├── engine/          WebAssembly backend (wazero)
//	├── static/          In-process backend selected by manifest files
//	├── snapshot/        Envelope codec and bounded save/restore on the host
//	├── guest/           Module-side function table for Go-written modules
//	├── lifecycle/       Initial load, per-tick update, hot reload protocol
//	├── host/            Host contexts, action registry, callbacks
//	├── world/           Entity store the callbacks mutate
//	├── tick/            Fixed-step loop and edge-triggered engine actions
//	├── config/          koanf-based configuration
//	├── watch/           fsnotify-based rebuild detection
//	├── metrics/         Prometheus collectors
//	├── game/            Sample game module
//	└── errors/          Structured error types
//
// # Quick Start
//
//	reg := static.NewRegistry()
//	game.Register(reg)
//
//	mgr, err := lifecycle.New(ctx, lifecycle.Config{
//	    Path:   "game.mod",
//	    Opener: reg.Opener(),
//	    Schema: game.SchemaHash(),
//	}, lifecycle.Deps{Host: hostCtx, Callbacks: callbacks})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Close(ctx)
//
//	for range ticker.C {
//	    mgr.Update(ctx, &input, dt)
//	}
//
// # Reload Protocol
//
// A reload snapshots the running module, tears it down completely, loads the
// rebuilt file from its original path, restores the snapshot and rebinds
// host callbacks. A module that faults pauses the runtime instead of taking
// the host down.
package hotswap
