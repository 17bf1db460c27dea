package hotswap

import "context"

// Memory is a module's linear memory as seen from the host.
// Slices returned by Read alias guest memory and are only valid until the
// next guest call.
type Memory interface {
	Read(offset, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
	Size() uint32
}

// Allocator hands out buffers inside module memory through the module's own
// allocator exports.
type Allocator interface {
	Alloc(ctx context.Context, size uint32) (uint32, error)
	Free(ctx context.Context, ptr, size uint32)
}
