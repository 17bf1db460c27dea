package snapshot

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/errors"
)

// DefaultMaxRetries bounds the measure/save loop.
const DefaultMaxRetries = 3

// DefaultMaxSize caps a single snapshot.
const DefaultMaxSize = 64 << 20

// Options configures Capture.
type Options struct {
	Logger     *zap.Logger
	MaxRetries int
	MaxSize    int
}

func (o *Options) withDefaults() Options {
	out := Options{MaxRetries: DefaultMaxRetries, MaxSize: DefaultMaxSize, Logger: zap.NewNop()}
	if o == nil {
		return out
	}
	if o.MaxRetries > 0 {
		out.MaxRetries = o.MaxRetries
	}
	if o.MaxSize > 0 {
		out.MaxSize = o.MaxSize
	}
	if o.Logger != nil {
		out.Logger = o.Logger
	}
	return out
}

// Measure returns the byte length the module's state would serialize to.
func Measure(ctx context.Context, table abi.FunctionTable) int {
	n := table.StateLen(ctx)
	if n < 0 {
		return 0
	}
	return n
}

// Capture saves the module's state into a host-owned buffer.
//
// The module's state can change between measuring and writing, so a
// BufferTooSmall result re-measures and retries, at most MaxRetries times.
// A nil slice with a nil error means the module has no state to carry.
func Capture(ctx context.Context, table abi.FunctionTable, opts *Options) ([]byte, error) {
	o := opts.withDefaults()

	for attempt := 1; attempt <= o.MaxRetries; attempt++ {
		n := Measure(ctx, table)
		if n == 0 {
			return nil, nil
		}
		if n > o.MaxSize {
			return nil, errors.New(errors.PhaseSnapshot, errors.KindInvalidData).
				Value(n).
				Detail("state length %d exceeds limit %d", n, o.MaxSize).
				Build()
		}

		buf := make([]byte, n)
		switch res := table.SaveState(ctx, buf); res {
		case abi.Success:
			return buf, nil
		case abi.BufferTooSmall:
			o.Logger.Debug("state grew between measure and save",
				zap.Int("attempt", attempt),
				zap.Int("measured", n))
			continue
		case abi.PanicDetected:
			return nil, errors.Fault(errors.PhaseSnapshot, "save_state", nil)
		default:
			return nil, errors.ModuleFailure(errors.PhaseSnapshot, "save_state", res)
		}
	}

	return nil, errors.RetriesExhausted(errors.PhaseSnapshot, "save_state", o.MaxRetries)
}

// Restore hands a captured snapshot to a freshly loaded module.
// The host checks only the public header: a buffer too short for it or with
// a foreign magic never reaches the module.
func Restore(ctx context.Context, table abi.FunctionTable, data []byte) abi.Result {
	env, err := ReadEnvelope(data)
	if err != nil {
		return abi.Error
	}
	if env.Magic != abi.SnapshotMagic {
		return abi.Error
	}
	return table.LoadState(ctx, data)
}
