package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/hotswap"
	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/errors"
)

// allocator implements hotswap.Allocator with the module's
// hotswap_alloc and hotswap_free exports.
type allocator struct {
	allocFn api.Function
	freeFn  api.Function
	mem     hotswap.Memory
	log     *zap.Logger
	stack   [2]uint64
}

func (a *allocator) Alloc(ctx context.Context, size uint32) (uint32, error) {
	a.stack[0] = uint64(size)
	if err := a.allocFn.CallWithStack(ctx, a.stack[:1]); err != nil {
		return 0, errors.Fault(errors.PhaseHost, abi.ExportAlloc, err)
	}
	ptr := api.DecodeU32(a.stack[0])
	if ptr == 0 {
		return 0, errors.New(errors.PhaseHost, errors.KindInvalidData).
			Symbol(abi.ExportAlloc).
			Value(size).
			Detail("module could not allocate %d bytes", size).
			Build()
	}
	if uint64(ptr)+uint64(size) > uint64(a.mem.Size()) {
		a.Free(ctx, ptr, size)
		return 0, errors.OutOfBounds(errors.PhaseHost, ptr, size)
	}
	return ptr, nil
}

func (a *allocator) Free(ctx context.Context, ptr, size uint32) {
	if ptr == 0 {
		return
	}
	a.stack[0] = uint64(ptr)
	a.stack[1] = uint64(size)
	if err := a.freeFn.CallWithStack(ctx, a.stack[:]); err != nil {
		a.log.Warn("free guest buffer",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

var _ hotswap.Allocator = (*allocator)(nil)
