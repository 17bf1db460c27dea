package loader

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/errors"
)

// Handle owns a loaded module: the open library, its function table and
// the temporary copy it was opened from.
type Handle struct {
	table  abi.FunctionTable
	lib    Library
	log    *zap.Logger
	path   string
	source string
	closed bool
}

// Table returns the module's function table. It is valid until Close.
func (h *Handle) Table() abi.FunctionTable {
	return h.table
}

// Path is the unique copy the library was opened from.
func (h *Handle) Path() string {
	return h.path
}

// Source is the path the module was loaded from.
func (h *Handle) Source() string {
	return h.source
}

// Closed reports whether Close has run.
func (h *Handle) Closed() bool {
	return h.closed
}

// Close frees the module state, releases the library and deletes the copy,
// in that order. Calling it again is a no-op. Failing to delete the copy is
// logged, not returned.
func (h *Handle) Close(ctx context.Context) error {
	if h == nil || h.closed {
		return nil
	}
	h.closed = true

	h.table.DropState(ctx)

	var err error
	if cerr := h.lib.Close(ctx); cerr != nil {
		err = errors.New(errors.PhaseLoad, errors.KindIO).
			Module(h.source).
			Detail("release library").
			Cause(cerr).
			Build()
	}

	if rerr := os.Remove(h.path); rerr != nil && !os.IsNotExist(rerr) {
		h.log.Warn("remove module copy", zap.String("path", h.path), zap.Error(rerr))
	}
	return err
}
