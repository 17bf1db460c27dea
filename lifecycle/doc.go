// Package lifecycle owns the live module and runs the hot reload protocol.
//
// A Manager holds exactly one loader.Handle. Update drives the module once
// per simulation step; TryHotReload replaces it:
//
//  1. debounce against the last successful reload
//  2. snapshot the module if it is Running (bounded retries)
//  3. tear it down: OnUnload, DropState, release library, delete copy
//  4. load the rebuilt module from the original source path
//  5. restore the snapshot
//  6. rebind host callbacks with OnLoad, whatever the restore outcome
//  7. mark the runtime Running and record the reload time
//
// A fault inside the module moves the runtime to PausedError. While paused,
// Update is a no-op; only a successful reload resumes it.
package lifecycle
