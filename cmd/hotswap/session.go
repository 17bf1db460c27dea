package main

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/config"
	"github.com/wippyai/hotswap/engine"
	"github.com/wippyai/hotswap/game"
	"github.com/wippyai/hotswap/host"
	"github.com/wippyai/hotswap/lifecycle"
	"github.com/wippyai/hotswap/loader"
	"github.com/wippyai/hotswap/metrics"
	"github.com/wippyai/hotswap/static"
	"github.com/wippyai/hotswap/tick"
	"github.com/wippyai/hotswap/world"
)

// session wires one world, one module and the fixed-step loop together.
// frame and step run on the loop goroutine; everything else may be called
// from the UI.
type session struct {
	cfg      *config.Config
	log      *zap.Logger
	mgr      *lifecycle.Manager
	world    *world.World
	contexts *host.Contexts
	actions  *host.Actions
	handle   abi.HostContext
	loop     *tick.Loop
	input    *heldInput
	trigger  tick.Trigger
	current  abi.InputState
	registry *prometheus.Registry

	paused atomic.Bool
	ticks  atomic.Uint64

	mu   sync.Mutex
	last *lifecycle.Event
}

func newSession(ctx context.Context, cfg *config.Config, log *zap.Logger, guestOut io.Writer) (*session, error) {
	s := &session{
		cfg:      cfg,
		log:      log,
		world:    world.New(world.Bounds{}),
		contexts: host.NewContexts(),
		actions:  host.NewActions(),
		loop:     &tick.Loop{Step: cfg.Loop.Step, MaxSteps: cfg.Loop.MaxSteps},
		input:    newHeldInput(150 * time.Millisecond),
		registry: prometheus.NewRegistry(),
	}
	s.handle = s.contexts.Register(s.world)

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(s.registry)
	if err != nil {
		return nil, err
	}

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	loader.SetLogger(log.Named("loader"))
	engine.SetLogger(log.Named("engine"))

	mgr, err := lifecycle.New(ctx, lifecycle.Config{
		Path:           cfg.Module.Path,
		Opener:         newOpener(cfg, log, guestOut),
		Schema:         game.SchemaHash(),
		Debounce:       cfg.Reload.Debounce,
		MaxSaveRetries: cfg.Reload.MaxSaveRetries,
		Policy:         policy,
	}, lifecycle.Deps{
		Host:      s.handle,
		Callbacks: host.NewCallbacks(s.contexts, s.actions, log),
		Logger:    log.Named("lifecycle"),
		Metrics:   m,
		OnReload:  s.observe,
	})
	if err != nil {
		s.contexts.Release(s.handle)
		return nil, err
	}
	s.mgr = mgr
	return s, nil
}

func newOpener(cfg *config.Config, log *zap.Logger, guestOut io.Writer) loader.Opener {
	if cfg.Module.Backend == config.BackendStatic {
		reg := static.NewRegistry()
		game.Register(reg)
		return reg.Opener()
	}
	return engine.NewOpener(engine.Config{
		MemoryLimitPages: cfg.Module.MemoryPages,
		Stdout:           guestOut,
		Stderr:           guestOut,
		Logger:           log.Named("engine"),
	})
}

func (s *session) observe(ev lifecycle.Event) {
	s.mu.Lock()
	s.last = &ev
	s.mu.Unlock()
}

// frame samples input once per rendered frame and services engine actions.
func (s *session) frame(ctx context.Context) {
	s.current = s.input.State()
	rising := s.trigger.Observe(&s.current)

	if tick.Fired(rising, s.actions.Lookup(host.ActionRequestReload)) {
		s.mgr.RequestReload()
	}
	if tick.Fired(rising, s.actions.Lookup(host.ActionTogglePause)) {
		paused := !s.paused.Load()
		s.paused.Store(paused)
		s.log.Info("simulation pause toggled", zap.Bool("paused", paused))
	}
	s.mgr.ServiceReload(ctx)
}

func (s *session) step(ctx context.Context, dt float32) {
	if s.paused.Load() {
		return
	}
	if s.mgr.Update(ctx, &s.current, dt) {
		s.ticks.Add(1)
		s.world.FollowCamera(dt, viewport)
	}
}

// Run drives the loop until ctx is done.
func (s *session) Run(ctx context.Context) error {
	return s.loop.Run(ctx, s.cfg.Loop.Step, s.frame, func(dt float32) {
		s.step(ctx, dt)
	})
}

// Press holds an action for a short while, as if a key were down.
func (s *session) Press(name string) {
	s.input.Press(s.actions.Lookup(name))
}

func (s *session) Close(ctx context.Context) error {
	err := s.mgr.Close(ctx)
	s.contexts.Release(s.handle)
	return err
}

var viewport = world.Bounds{Width: world.DefaultWidth, Height: world.DefaultHeight}

// stats is what the UI and the exit summary show.
type stats struct {
	State     lifecycle.RuntimeState
	Module    string
	Ticks     uint64
	Reloads   uint64
	Enemies   int
	Player    world.Entity
	HasPlayer bool
	Camera    world.Entity
	HasCamera bool
	Paused    bool
	Last      *lifecycle.Event
}

func (s *session) Stats() stats {
	st := stats{
		State:   s.mgr.State(),
		Module:  s.mgr.ModulePath(),
		Ticks:   s.ticks.Load(),
		Reloads: s.mgr.Reloads(),
		Enemies: s.world.Count(abi.KindEnemy),
		Paused:  s.paused.Load(),
	}
	st.Player, st.HasPlayer = s.world.Player()
	st.Camera, st.HasCamera = s.world.Camera()
	s.mu.Lock()
	st.Last = s.last
	s.mu.Unlock()
	return st
}

// heldInput approximates key state from key presses: a terminal reports
// presses and repeats but never releases.
type heldInput struct {
	mu    sync.Mutex
	until map[abi.ActionID]time.Time
	hold  time.Duration
	now   func() time.Time
}

func newHeldInput(hold time.Duration) *heldInput {
	return &heldInput{
		until: make(map[abi.ActionID]time.Time),
		hold:  hold,
		now:   time.Now,
	}
}

func (h *heldInput) Press(id abi.ActionID) {
	if id == abi.ActionNotFound {
		return
	}
	h.mu.Lock()
	h.until[id] = h.now().Add(h.hold)
	h.mu.Unlock()
}

func (h *heldInput) State() abi.InputState {
	h.mu.Lock()
	defer h.mu.Unlock()
	var in abi.InputState
	now := h.now()
	for id, until := range h.until {
		if now.Before(until) {
			in.Set(id, true)
		} else {
			delete(h.until, id)
		}
	}
	return in
}
