// Package loader installs a binary module and hands back its function table.
//
// Loading never opens the source file directly. The file is first copied to
// a unique sibling path (<stem>_loaded_<ULID><ext>) so the build toolchain
// can overwrite the source while the copy stays mapped, and so two loads of
// the same source never collide in the platform's library cache.
//
// After the copy, the loader opens it through an Opener, resolves the ABI
// version entry point, checks it, calls the factory and checks the schema
// hash. Any failure along the way releases the library and deletes the copy.
package loader
