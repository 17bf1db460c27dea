// Package tick drives the simulation at a fixed timestep.
package tick

import (
	"context"
	"time"

	"github.com/wippyai/hotswap/abi"
)

const (
	DefaultStep     = time.Second / 60
	DefaultMaxSteps = 5
	DefaultMaxFrame = 250 * time.Millisecond
)

// Loop converts variable frame times into fixed simulation steps.
type Loop struct {
	Step     time.Duration
	MaxSteps int
	// MaxFrame caps a single frame delta so a stall does not turn into a
	// burst of catch-up steps.
	MaxFrame time.Duration
	Now      func() time.Time

	acc  time.Duration
	last time.Time
}

// New returns a loop with the default limits.
func New(step time.Duration) *Loop {
	return &Loop{Step: step}
}

func (l *Loop) defaults() {
	if l.Step <= 0 {
		l.Step = DefaultStep
	}
	if l.MaxSteps <= 0 {
		l.MaxSteps = DefaultMaxSteps
	}
	if l.MaxFrame <= 0 {
		l.MaxFrame = DefaultMaxFrame
	}
}

func (l *Loop) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Pending is the unsimulated time carried into the next frame.
func (l *Loop) Pending() time.Duration {
	return l.acc
}

// Advance adds one frame worth of time and runs step for every whole Step
// it covers, up to MaxSteps. If the loop is still behind after MaxSteps the
// backlog is dropped. It returns the number of steps run.
func (l *Loop) Advance(frame time.Duration, step func(dt float32)) int {
	l.defaults()
	if frame < 0 {
		frame = 0
	}
	if frame > l.MaxFrame {
		frame = l.MaxFrame
	}

	l.acc += frame
	dt := float32(l.Step.Seconds())
	n := 0
	for l.acc >= l.Step && n < l.MaxSteps {
		step(dt)
		l.acc -= l.Step
		n++
	}
	if n == l.MaxSteps && l.acc >= l.Step {
		l.acc = 0
	}
	return n
}

// Run calls frame and then Advance on every interval until ctx is done.
// frame may be nil.
func (l *Loop) Run(ctx context.Context, interval time.Duration, frame func(ctx context.Context), step func(dt float32)) error {
	l.defaults()
	if interval <= 0 {
		interval = l.Step
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.last = l.now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		now := l.now()
		delta := now.Sub(l.last)
		l.last = now

		if frame != nil {
			frame(ctx)
		}
		l.Advance(delta, step)
	}
}

// Trigger turns held digital actions into one-shot events.
type Trigger struct {
	prev uint64
}

// Observe records in and returns the mask of actions that became active
// since the previous call.
func (t *Trigger) Observe(in *abi.InputState) uint64 {
	rising := in.DigitalMask &^ t.prev
	t.prev = in.DigitalMask
	return rising
}

// Fired reports whether id is set in a mask returned by Observe.
func Fired(mask uint64, id abi.ActionID) bool {
	if id >= 64 {
		return false
	}
	return mask&(1<<id) != 0
}
