package host

import (
	"sync"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/world"
)

// Contexts maps issued host contexts to worlds.
type Contexts struct {
	mu     sync.RWMutex
	worlds map[abi.HostContext]*world.World
	next   abi.HostContext
}

// NewContexts returns an empty registry.
func NewContexts() *Contexts {
	return &Contexts{worlds: make(map[abi.HostContext]*world.World)}
}

// Register issues a new context for w. abi.NoContext is never issued.
func (c *Contexts) Register(w *world.World) abi.HostContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	if c.next == abi.NoContext {
		c.next++
	}
	c.worlds[c.next] = w
	return c.next
}

// Lookup resolves a context.
func (c *Contexts) Lookup(h abi.HostContext) (*world.World, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.worlds[h]
	return w, ok
}

// Release invalidates a context.
func (c *Contexts) Release(h abi.HostContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.worlds, h)
}
