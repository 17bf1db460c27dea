package host

import (
	"go.uber.org/zap"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/world"
)

// Callbacks implements abi.HostCallbacks over a Contexts registry.
type Callbacks struct {
	contexts *Contexts
	actions  *Actions
	log      *zap.Logger
	module   *zap.Logger
}

// NewCallbacks returns callbacks resolving handles through contexts.
// Module log lines go to a child logger named "module".
func NewCallbacks(contexts *Contexts, actions *Actions, log *zap.Logger) *Callbacks {
	if log == nil {
		log = zap.NewNop()
	}
	return &Callbacks{
		contexts: contexts,
		actions:  actions,
		log:      log,
		module:   log.Named("module"),
	}
}

func (c *Callbacks) world(op string, h abi.HostContext) (*world.World, bool) {
	w, ok := c.contexts.Lookup(h)
	if !ok {
		c.log.Warn("callback with unknown host context",
			zap.String("op", op),
			zap.Uint32("host", uint32(h)))
	}
	return w, ok
}

func (c *Callbacks) ResolveAction(h abi.HostContext, name string) abi.ActionID {
	if _, ok := c.world("resolve_action", h); !ok {
		return abi.ActionNotFound
	}
	id := c.actions.Lookup(name)
	if id == abi.ActionNotFound {
		c.log.Debug("module asked for unknown action", zap.String("action", name))
	}
	return id
}

func (c *Callbacks) Spawn(h abi.HostContext, kind abi.EntityKind, x, y float32) {
	w, ok := c.world("spawn", h)
	if !ok {
		return
	}
	switch kind {
	case abi.KindPlayer, abi.KindCamera, abi.KindEnemy:
	default:
		c.log.Warn("spawn of unknown entity kind", zap.Stringer("kind", kind))
		return
	}
	w.Spawn(kind, world.Vec2{X: x, Y: y})
}

func (c *Callbacks) MovePlayer(h abi.HostContext, dx, dy float32) {
	if w, ok := c.world("move_player", h); ok {
		w.MovePlayer(dx, dy)
	}
}

func (c *Callbacks) Log(h abi.HostContext, msg string) {
	c.module.Info(msg, zap.Uint32("host", uint32(h)))
}

var _ abi.HostCallbacks = (*Callbacks)(nil)
