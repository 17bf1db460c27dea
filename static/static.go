// Package static serves modules linked into the host binary through the
// same Opener contract the wasm backend implements.
//
// A static module is selected by a manifest file whose trimmed content is the
// registered module name. Rewriting the manifest is the static equivalent of
// rebuilding a library, so the whole reload path (copy, open, handshake,
// snapshot, restore) runs unchanged.
package static

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/errors"
	"github.com/wippyai/hotswap/loader"
)

// Module is a registered in-process module.
type Module struct {
	Version abi.VersionFunc
	Factory abi.FactoryFunc
}

// Registry maps module names to modules.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
	onClose func(name, path string)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds or replaces a module.
func (r *Registry) Register(name string, m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[name] = m
}

// Names lists the registered modules in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OnClose installs an observer called whenever a library is released.
func (r *Registry) OnClose(fn func(name, path string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onClose = fn
}

func (r *Registry) lookup(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Opener resolves manifest files against the registry.
func (r *Registry) Opener() loader.Opener {
	return loader.OpenerFunc(r.open)
}

func (r *Registry) open(_ context.Context, path string) (loader.Library, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(errors.PhaseLoad, "read manifest", err)
	}
	name := strings.TrimSpace(string(raw))
	m, ok := r.lookup(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseLoad, "static module", name)
	}
	return &library{registry: r, name: name, path: path, module: m}, nil
}

type library struct {
	registry *Registry
	module   Module
	name     string
	path     string
	closed   bool
}

func (l *library) Lookup(symbol string) (loader.Symbol, error) {
	if l.closed {
		return nil, errors.NotInitialized(errors.PhaseLoad, "library "+l.name)
	}
	switch symbol {
	case abi.SymbolVersion:
		if l.module.Version != nil {
			return l.module.Version, nil
		}
	case abi.SymbolFactory:
		if l.module.Factory != nil {
			return l.module.Factory, nil
		}
	}
	return nil, errors.NotFound(errors.PhaseLoad, "symbol", symbol)
}

func (l *library) Close(context.Context) error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.registry.mu.RLock()
	fn := l.registry.onClose
	l.registry.mu.RUnlock()
	if fn != nil {
		fn(l.name, l.path)
	}
	return nil
}

// WriteManifest points the manifest at path to the named module.
func WriteManifest(path, name string) error {
	if err := os.WriteFile(path, []byte(name+"\n"), 0o644); err != nil {
		return errors.IO(errors.PhaseLoad, "write manifest", err)
	}
	return nil
}
