// Package game is the sample game logic shipped as a hot-reloadable module.
//
// The same code runs linked into the host (registered with package static)
// and compiled to WebAssembly (cmd/gamemodule).
package game

import (
	"context"
	"math"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/guest"
	"github.com/wippyai/hotswap/static"
)

// LayoutID names the current layout of State. Change it whenever a
// serialized field is added, removed or retyped.
const LayoutID = "MyGame_v1"

// Name is the module name used with a static registry.
const Name = "game"

// Gameplay constants.
const (
	SpawnInterval = 2.0
	PlayerSpeed   = 600.0
	PlayerStartX  = 400.0
	PlayerStartY  = 300.0
	ViewportW     = 1280.0
	ViewportH     = 720.0
)

var actionNames = [4]string{"MoveUp", "MoveDown", "MoveLeft", "MoveRight"}

// SchemaHash identifies LayoutID.
func SchemaHash() uint64 {
	return abi.LayoutHash(LayoutID)
}

// State is the module's private state.
type State struct {
	SpawnTimer float32 `cbor:"spawn_timer"`
	Score      uint32  `cbor:"score,omitempty"`

	actions          [4]abi.ActionID
	callbacks        abi.HostCallbacks
	sceneInitialized bool
}

// NewState returns the default state.
func NewState() *State {
	s := &State{SpawnTimer: SpawnInterval}
	for i := range s.actions {
		s.actions[i] = abi.ActionNotFound
	}
	return s
}

// SceneInitialized reports whether the player and camera were spawned.
func (s *State) SceneInitialized() bool {
	return s.sceneInitialized
}

// Bound reports whether host callbacks are bound.
func (s *State) Bound() bool {
	return s.callbacks != nil
}

func (s *State) load(host abi.HostContext, cb abi.HostCallbacks) error {
	for i, name := range actionNames {
		s.actions[i] = cb.ResolveAction(host, name)
	}
	s.callbacks = cb

	if !s.sceneInitialized {
		cb.Spawn(host, abi.KindPlayer, PlayerStartX, PlayerStartY)
		cb.Spawn(host, abi.KindCamera, 0, 0)
		s.sceneInitialized = true
	}
	cb.Log(host, "game module loaded")
	return nil
}

func (s *State) update(host abi.HostContext, in *abi.InputState, dt float32) error {
	if s.callbacks == nil {
		return errNotBound
	}
	s.movePlayer(host, in, dt)
	s.spawnEnemies(host, dt)
	return nil
}

func (s *State) movePlayer(host abi.HostContext, in *abi.InputState, dt float32) {
	up, down, left, right := s.actions[0], s.actions[1], s.actions[2], s.actions[3]

	var dx, dy float64
	if in.IsActive(up) {
		dy++
	}
	if in.IsActive(down) {
		dy--
	}
	if in.IsActive(left) {
		dx--
	}
	if in.IsActive(right) {
		dx++
	}
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	scale := PlayerSpeed * float64(dt) / l
	s.callbacks.MovePlayer(host, float32(dx*scale), float32(dy*scale))
}

func (s *State) spawnEnemies(host abi.HostContext, dt float32) {
	s.SpawnTimer -= dt
	if s.SpawnTimer > 0 {
		return
	}
	s.SpawnTimer = SpawnInterval

	// Placeholder randomness derived from the frame delta.
	x := remEuclid(float64(dt)*12345, ViewportW)
	y := remEuclid(float64(dt)*67890, ViewportH)
	s.callbacks.Spawn(host, abi.KindEnemy, float32(x), float32(y))
	s.Score++
}

func remEuclid(v, m float64) float64 {
	r := math.Mod(v, m)
	if r < 0 {
		r += m
	}
	return r
}

type gameError string

func (e gameError) Error() string { return string(e) }

const errNotBound = gameError("host callbacks not bound")

// Hooks wires State into a guest table.
func Hooks() guest.Hooks[State] {
	return guest.Hooks[State]{
		New:    NewState,
		Load:   (*State).load,
		Update: (*State).update,
		Unload: func(s *State, host abi.HostContext) error {
			if s.callbacks != nil {
				s.callbacks.Log(host, "game module unloading")
			}
			return nil
		},
		Restored: func(s *State) {
			s.sceneInitialized = true
		},
	}
}

// New returns a fresh function table for the game.
func New(opts ...guest.Option) *guest.Table[State] {
	return guest.NewTable(SchemaHash(), Hooks(), opts...)
}

// Module describes the game for a static registry.
func Module() static.Module {
	return static.Module{
		Version: func(context.Context) (uint32, error) { return abi.Version, nil },
		Factory: func(context.Context) (abi.FunctionTable, error) { return New(), nil },
	}
}

// Register adds the game to reg under Name.
func Register(reg *static.Registry) {
	reg.Register(Name, Module())
}
