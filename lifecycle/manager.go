package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/errors"
	"github.com/wippyai/hotswap/loader"
	"github.com/wippyai/hotswap/metrics"
	"github.com/wippyai/hotswap/snapshot"
)

// Config selects the module and tunes the reload protocol.
type Config struct {
	// Path is the module file as produced by the build. The manager never
	// opens it directly; every load goes through a fresh copy.
	Path   string
	Opener loader.Opener
	// Schema is the state layout hash this host accepts.
	Schema uint64

	// Debounce of zero selects DefaultDebounce.
	Debounce        time.Duration
	MaxSaveRetries  int
	MaxSnapshotSize int
	Policy          Policy

	// Now overrides the clock used for debouncing and durations.
	Now func() time.Time
}

// Deps carries host side collaborators.
type Deps struct {
	Host      abi.HostContext
	Callbacks abi.HostCallbacks
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	// OnReload, if set, observes every reload attempt. It runs after the
	// manager is unlocked and may call back into it.
	OnReload func(Event)
}

// Event describes one reload attempt.
type Event struct {
	At            time.Time
	Outcome       string
	Restored      bool
	SnapshotBytes int
	Duration      time.Duration
	State         RuntimeState
	Err           error
}

// Manager owns the live module.
type Manager struct {
	mu sync.Mutex

	cfg     Config
	deps    Deps
	log     *zap.Logger
	loader  *loader.Loader
	handle  *loader.Handle
	state   RuntimeState
	clock   DebounceClock
	reloads uint64

	requested atomic.Bool
}

// New loads the module at cfg.Path and binds it to the host. An error here
// means nothing was installed.
func New(ctx context.Context, cfg Config, deps Deps) (*Manager, error) {
	if cfg.Opener == nil {
		return nil, errors.NotInitialized(errors.PhaseLoad, "opener")
	}
	if cfg.Path == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "module path is empty")
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MaxSaveRetries <= 0 {
		cfg.MaxSaveRetries = snapshot.DefaultMaxRetries
	}
	if deps.Logger == nil {
		deps.Logger = Logger()
	}

	m := &Manager{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger,
		clock: DebounceClock{
			Interval: cfg.Debounce,
			Now:      cfg.Now,
		},
	}
	m.loader = loader.New(cfg.Opener, cfg.Schema)
	m.loader.Logger = m.log

	h, err := m.loader.Load(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	m.handle = h
	m.state = RuntimeState{Status: Running}
	deps.Metrics.Paused(false)

	m.InitialLoad(ctx)
	return m, nil
}

func (m *Manager) now() time.Time {
	if m.cfg.Now != nil {
		return m.cfg.Now()
	}
	return time.Now()
}

// InitialLoad binds host callbacks to the current module. A failure is
// logged; the runtime keeps going.
func (m *Manager) InitialLoad(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return
	}
	m.bind(ctx)
}

func (m *Manager) bind(ctx context.Context) {
	res := m.handle.Table().OnLoad(ctx, m.deps.Host, m.deps.Callbacks)
	if res != abi.Success {
		m.deps.Metrics.Fault("on_load")
		m.log.Warn("module on_load failed", zap.Stringer("result", res))
	}
}

// Update advances the module by dt seconds. It reports whether the module
// ran; a paused runtime or a missing module is a no-op.
func (m *Manager) Update(ctx context.Context, in *abi.InputState, dt float32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil || m.state.Paused() {
		return false
	}

	res := m.handle.Table().OnUpdate(ctx, m.deps.Host, in, dt)
	m.deps.Metrics.Tick()
	switch res {
	case abi.Success:
	case abi.PanicDetected:
		m.deps.Metrics.Fault("on_update")
		m.pause("module panicked in on_update")
	default:
		m.deps.Metrics.Fault("on_update")
		m.log.Warn("module on_update failed", zap.Stringer("result", res))
	}
	return true
}

// RequestReload asks the owner of the manager to run TryHotReload on its
// next opportunity. Safe to call from any goroutine.
func (m *Manager) RequestReload() {
	m.requested.Store(true)
}

// ServiceReload runs a pending reload request, if any.
func (m *Manager) ServiceReload(ctx context.Context) bool {
	if !m.requested.Swap(false) {
		return false
	}
	return m.TryHotReload(ctx)
}

// TryHotReload replaces the module with the rebuilt file at the configured
// path, carrying its state across. It returns true only if the runtime is
// Running on the new module afterwards.
func (m *Manager) TryHotReload(ctx context.Context) bool {
	ok, ev, attempted := m.reload(ctx)
	if attempted && m.deps.OnReload != nil {
		m.deps.OnReload(ev)
	}
	return ok
}

func (m *Manager) reload(ctx context.Context) (bool, Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.clock.Ready() {
		m.deps.Metrics.Reload(metrics.OutcomeDebounced)
		m.log.Debug("reload debounced", zap.Duration("interval", m.clock.Interval))
		return false, Event{}, false
	}

	start := m.now()
	ev := Event{At: start}
	m.log.Info("hot reload requested", zap.String("path", m.cfg.Path))

	snap, ok := m.capture(ctx, &ev)
	if !ok {
		return m.finish(&ev, metrics.OutcomeAborted, start, false)
	}
	ev.SnapshotBytes = len(snap)

	if m.handle != nil {
		m.teardown(ctx)
	}

	h, err := m.loader.Load(ctx, m.cfg.Path)
	if err != nil {
		ev.Err = err
		m.pause("load failed: " + err.Error())
		m.log.Error("reload failed to load module", zap.Error(err))
		return m.finish(&ev, metrics.OutcomeLoadFailed, start, false)
	}
	m.handle = h

	var hold string
	if len(snap) > 0 {
		switch res := snapshot.Restore(ctx, h.Table(), snap); res {
		case abi.Success:
			ev.Restored = true
			m.log.Info("state restored", zap.Int("bytes", len(snap)))
		case abi.SchemaMismatch:
			m.deps.Metrics.Degrade(metrics.DegradeSchemaMismatch)
			m.log.Warn("snapshot schema does not match new module, using defaults")
			if m.cfg.Policy.OnSchemaMismatch == PauseOnMismatch {
				hold = "schema mismatch on restore"
			}
		case abi.PanicDetected:
			m.deps.Metrics.Fault("load_state")
			ev.Err = errors.Fault(errors.PhaseReload, "load_state", nil)
			m.pause("module panicked in load_state")
			return m.finish(&ev, metrics.OutcomeRestoreFailed, start, false)
		default:
			m.deps.Metrics.Degrade(metrics.DegradeRestoreRejected)
			m.log.Warn("snapshot rejected, using defaults", zap.Stringer("result", res))
		}
	}

	m.bind(ctx)

	if hold != "" {
		m.pause(hold)
		return m.finish(&ev, metrics.OutcomeRestoreFailed, start, false)
	}

	m.state = RuntimeState{Status: Running}
	m.deps.Metrics.Paused(false)
	m.clock.Record()
	m.reloads++
	m.log.Info("hot reload complete",
		zap.String("path", h.Path()),
		zap.Bool("restored", ev.Restored),
		zap.Uint64("reloads", m.reloads))
	return m.finish(&ev, metrics.OutcomeSuccess, start, true)
}

// capture snapshots the running module. ok is false when the reload must
// not continue.
func (m *Manager) capture(ctx context.Context, ev *Event) (snap []byte, ok bool) {
	if m.handle == nil || m.state.Paused() {
		return nil, true
	}

	snap, err := snapshot.Capture(ctx, m.handle.Table(), &snapshot.Options{
		Logger:     m.log,
		MaxRetries: m.cfg.MaxSaveRetries,
		MaxSize:    m.cfg.MaxSnapshotSize,
	})
	if err == nil {
		m.deps.Metrics.SnapshotBytes(len(snap))
		return snap, true
	}

	ev.Err = err
	if errors.KindOf(err) == errors.KindPanic {
		m.deps.Metrics.Fault("save_state")
		m.pause("module panicked in save_state")
	}

	if m.cfg.Policy.OnSnapshotLost == Abort {
		m.log.Error("snapshot failed, reload aborted", zap.Error(err))
		return nil, false
	}
	m.deps.Metrics.Degrade(metrics.DegradeSnapshotLost)
	m.log.Warn("snapshot failed, reloading without state", zap.Error(err))
	return nil, true
}

// teardown releases the current module: OnUnload, then the handle closes
// state, library and copy.
func (m *Manager) teardown(ctx context.Context) {
	h := m.handle
	m.handle = nil

	if res := h.Table().OnUnload(ctx, m.deps.Host); res != abi.Success {
		m.deps.Metrics.Fault("on_unload")
		m.log.Warn("module on_unload failed", zap.Stringer("result", res))
	}
	if err := h.Close(ctx); err != nil {
		m.log.Warn("close module", zap.Error(err))
	}
}

func (m *Manager) pause(reason string) {
	m.state = RuntimeState{Status: PausedError, Reason: reason}
	m.deps.Metrics.Paused(true)
	m.log.Error("runtime paused", zap.String("reason", reason))
}

func (m *Manager) finish(ev *Event, outcome string, start time.Time, ok bool) (bool, Event, bool) {
	ev.Outcome = outcome
	ev.Duration = m.now().Sub(start)
	ev.State = m.state
	m.deps.Metrics.Reload(outcome)
	m.deps.Metrics.ReloadDuration(ev.Duration)
	return ok, *ev, true
}

// State returns the current runtime state.
func (m *Manager) State() RuntimeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Loaded reports whether a module is attached.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

// ModulePath is the copy the live module was opened from, or "".
func (m *Manager) ModulePath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return ""
	}
	return m.handle.Path()
}

// Reloads counts successful reloads.
func (m *Manager) Reloads() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloads
}

// Close tears down the live module. It is safe to call more than once.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return nil
	}
	m.teardown(ctx)
	return nil
}
