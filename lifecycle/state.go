package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/wippyai/hotswap/errors"
)

// Status is the runtime state of the live module.
type Status int

const (
	Running Status = iota
	PausedError
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case PausedError:
		return "paused"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// RuntimeState is Running or PausedError with a reason.
type RuntimeState struct {
	Status Status
	Reason string
}

func (s RuntimeState) String() string {
	if s.Status == PausedError {
		return "paused: " + s.Reason
	}
	return s.Status.String()
}

// Paused reports whether per-tick calls are suspended.
func (s RuntimeState) Paused() bool {
	return s.Status == PausedError
}

// DefaultDebounce is the minimum time between successful reloads.
const DefaultDebounce = 500 * time.Millisecond

// DebounceClock rejects reloads requested too soon after the last
// successful one.
type DebounceClock struct {
	Interval time.Duration
	Now      func() time.Time

	last time.Time
	set  bool
}

func (d *DebounceClock) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Ready reports whether a reload may run now.
func (d *DebounceClock) Ready() bool {
	if !d.set {
		return true
	}
	return d.now().Sub(d.last) >= d.Interval
}

// Record marks a successful reload at the current time.
func (d *DebounceClock) Record() {
	d.last = d.now()
	d.set = true
}

// SchemaMismatchPolicy decides what a reload does when the new module
// rejects the snapshot's schema.
type SchemaMismatchPolicy int

const (
	// UseDefaults keeps running with the new module's default state.
	UseDefaults SchemaMismatchPolicy = iota
	// PauseOnMismatch keeps the new module loaded but paused.
	PauseOnMismatch
)

// SnapshotLostPolicy decides what a reload does when no snapshot could be
// captured from a running module.
type SnapshotLostPolicy int

const (
	// Proceed reloads without state.
	Proceed SnapshotLostPolicy = iota
	// Abort keeps the current module and fails the reload.
	Abort
)

// Policy groups the degrade decisions. The zero value favors availability.
type Policy struct {
	OnSchemaMismatch SchemaMismatchPolicy
	OnSnapshotLost   SnapshotLostPolicy
}

// ParseSchemaMismatchPolicy parses "use_defaults" or "pause".
func ParseSchemaMismatchPolicy(s string) (SchemaMismatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "use_defaults", "defaults":
		return UseDefaults, nil
	case "pause":
		return PauseOnMismatch, nil
	}
	return 0, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown schema mismatch policy %q", s))
}

// ParseSnapshotLostPolicy parses "proceed" or "abort".
func ParseSnapshotLostPolicy(s string) (SnapshotLostPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "proceed":
		return Proceed, nil
	case "abort":
		return Abort, nil
	}
	return 0, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown snapshot lost policy %q", s))
}
