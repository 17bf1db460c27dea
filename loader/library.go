package loader

import "context"

// Symbol is a resolved entry point. The loader type-asserts it to the
// function type the contract names.
type Symbol = any

// Library is an opened binary module.
type Library interface {
	// Lookup resolves an exported entry point by name.
	Lookup(name string) (Symbol, error)
	// Close releases the library. The function table it produced must not be
	// used afterwards.
	Close(ctx context.Context) error
}

// Opener maps a file on disk into a Library.
type Opener interface {
	Open(ctx context.Context, path string) (Library, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (Library, error)

func (f OpenerFunc) Open(ctx context.Context, path string) (Library, error) {
	return f(ctx, path)
}
