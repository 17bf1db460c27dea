// Package world is the host-owned entity store that module callbacks mutate.
package world

import (
	"math"
	"sort"
	"sync"

	"github.com/wippyai/hotswap/abi"
)

// Default bounds match the viewport the sample game targets.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// Camera follow tuning. The camera holds still while the player stays
// within the deadzone around its center.
const (
	DeadzoneX        = 100
	DeadzoneY        = 80
	CameraSmoothness = 15
)

// EntityID identifies an entity. Zero is never issued.
type EntityID uint32

// Vec2 is a 2D position.
type Vec2 struct {
	X, Y float32
}

// Entity is a snapshot of one entity.
type Entity struct {
	ID    EntityID
	Kind  abi.EntityKind
	Pos   Vec2
	Scale float32
}

// Bounds is the playable area, anchored at the origin.
type Bounds struct {
	Width, Height float32
}

// World owns all entities.
type World struct {
	mu       sync.RWMutex
	entities map[EntityID]*Entity
	bounds   Bounds
	next     EntityID
	player   EntityID
}

// New returns an empty world. Zero bounds fall back to the defaults.
func New(bounds Bounds) *World {
	if bounds.Width <= 0 || bounds.Height <= 0 {
		bounds = Bounds{Width: DefaultWidth, Height: DefaultHeight}
	}
	return &World{
		entities: make(map[EntityID]*Entity, 64),
		bounds:   bounds,
	}
}

// Bounds returns the playable area.
func (w *World) Bounds() Bounds {
	return w.bounds
}

// Spawn adds an entity and returns its id. The first player spawned
// becomes the one MovePlayer drives.
func (w *World) Spawn(kind abi.EntityKind, pos Vec2) EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.next++
	e := &Entity{ID: w.next, Kind: kind, Pos: pos, Scale: 1}
	if kind == abi.KindEnemy {
		e.Scale = 0.8
	}
	w.entities[e.ID] = e
	if kind == abi.KindPlayer && w.player == 0 {
		w.player = e.ID
	}
	return e.ID
}

// MovePlayer offsets the player and clamps it to the bounds. It reports
// false when there is no player.
func (w *World) MovePlayer(dx, dy float32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.entities[w.player]
	if !ok {
		return false
	}
	p.Pos.X = clamp(p.Pos.X+dx, 0, w.bounds.Width)
	p.Pos.Y = clamp(p.Pos.Y+dy, 0, w.bounds.Height)
	return true
}

// FollowCamera slides the first camera toward the player once the player
// leaves the deadzone, then keeps a view of the given size inside the
// bounds. It reports false when there is no camera or no player.
func (w *World) FollowCamera(dt float32, view Bounds) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.entities[w.player]
	if !ok {
		return false
	}
	var cam *Entity
	for _, e := range w.entities {
		if e.Kind == abi.KindCamera && (cam == nil || e.ID < cam.ID) {
			cam = e
		}
	}
	if cam == nil {
		return false
	}

	target := cam.Pos
	target.X = deadzone(cam.Pos.X, p.Pos.X, DeadzoneX)
	target.Y = deadzone(cam.Pos.Y, p.Pos.Y, DeadzoneY)

	t := 1 - float32(math.Exp(float64(-CameraSmoothness*dt)))
	cam.Pos.X += (target.X - cam.Pos.X) * t
	cam.Pos.Y += (target.Y - cam.Pos.Y) * t

	if w.bounds.Width > view.Width {
		cam.Pos.X = clamp(cam.Pos.X, view.Width/2, w.bounds.Width-view.Width/2)
	}
	if w.bounds.Height > view.Height {
		cam.Pos.Y = clamp(cam.Pos.Y, view.Height/2, w.bounds.Height-view.Height/2)
	}
	return true
}

// deadzone returns where the camera axis must sit so target is at most
// zone away from it.
func deadzone(cam, target, zone float32) float32 {
	switch d := target - cam; {
	case d > zone:
		return target - zone
	case d < -zone:
		return target + zone
	}
	return cam
}

// Camera returns the first camera.
func (w *World) Camera() (Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var cam *Entity
	for _, e := range w.entities {
		if e.Kind == abi.KindCamera && (cam == nil || e.ID < cam.ID) {
			cam = e
		}
	}
	if cam == nil {
		return Entity{}, false
	}
	return *cam, true
}

// Player returns the controlled player.
func (w *World) Player() (Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.entities[w.player]
	if !ok {
		return Entity{}, false
	}
	return *p, true
}

// Count returns how many entities of kind exist.
func (w *World) Count(kind abi.EntityKind) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := 0
	for _, e := range w.entities {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Len returns the number of entities.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}

// Entities returns a copy of all entities ordered by id.
func (w *World) Entities() []Entity {
	w.mu.RLock()
	out := make([]Entity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, *e)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
