package host

import (
	"sort"
	"sync"

	"github.com/wippyai/hotswap/abi"
)

// Action names known to every host.
const (
	ActionMoveUp        = "MoveUp"
	ActionMoveDown      = "MoveDown"
	ActionMoveLeft      = "MoveLeft"
	ActionMoveRight     = "MoveRight"
	ActionRequestReload = "Engine.RequestHotReload"
	ActionTogglePause   = "Engine.TogglePause"
)

// Actions assigns stable ids to action names. An id never changes once
// issued, so modules can cache ids across reloads.
type Actions struct {
	mu    sync.RWMutex
	ids   map[string]abi.ActionID
	names []string
}

// NewActions returns a registry with the movement actions registered
// first, so they get the canonical ids, followed by the engine actions.
func NewActions() *Actions {
	a := &Actions{ids: make(map[string]abi.ActionID)}
	for _, name := range []string{
		ActionMoveUp, ActionMoveDown, ActionMoveLeft, ActionMoveRight,
		ActionRequestReload, ActionTogglePause,
	} {
		a.Register(name)
	}
	return a
}

// Register returns the id for name, issuing the next id if it is new.
func (a *Actions) Register(name string) abi.ActionID {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.ids[name]; ok {
		return id
	}
	id := abi.ActionID(len(a.names))
	a.ids[name] = id
	a.names = append(a.names, name)
	return id
}

// Lookup returns the id for name or abi.ActionNotFound.
func (a *Actions) Lookup(name string) abi.ActionID {
	if name == "" {
		return abi.ActionNotFound
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if id, ok := a.ids[name]; ok {
		return id
	}
	return abi.ActionNotFound
}

// Name returns the name registered for id.
func (a *Actions) Name(id abi.ActionID) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(id) >= len(a.names) {
		return "", false
	}
	return a.names[id], true
}

// Names lists the registered names, sorted.
func (a *Actions) Names() []string {
	a.mu.RLock()
	out := append([]string(nil), a.names...)
	a.mu.RUnlock()
	sort.Strings(out)
	return out
}
