package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/errors"
	"github.com/wippyai/hotswap/loader"
)

// Config holds configuration for opening modules.
type Config struct {
	// MemoryLimitPages caps module memory in 64KiB pages. 0 keeps the
	// wazero default.
	MemoryLimitPages uint32

	// Stdout and Stderr receive WASI output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	Logger *zap.Logger
}

// Opener implements loader.Opener for WebAssembly modules.
type Opener struct {
	cfg Config
}

// NewOpener returns an Opener using cfg.
func NewOpener(cfg Config) *Opener {
	return &Opener{cfg: cfg}
}

func (o *Opener) log() *zap.Logger {
	if o.cfg.Logger != nil {
		return o.cfg.Logger
	}
	return Logger()
}

// Open implements loader.Opener.
func (o *Opener) Open(ctx context.Context, path string) (loader.Library, error) {
	return o.OpenLibrary(ctx, path)
}

// OpenLibrary compiles and instantiates the module at path in a runtime of
// its own.
func (o *Opener) OpenLibrary(ctx context.Context, path string) (*Library, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(errors.PhaseLoad, "read module", err)
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if o.cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(o.cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	lib, err := o.instantiate(ctx, rt, path, wasmBytes)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return lib, nil
}

func (o *Opener) instantiate(ctx context.Context, rt wazero.Runtime, path string, wasmBytes []byte) (*Library, error) {
	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindUnsupportedFormat).
			Module(path).
			Detail("compile module").
			Cause(err).
			Build()
	}

	if importsModule(compiled, wasi_snapshot_preview1.ModuleName) {
		if _, err := instantiateWASI(ctx, rt); err != nil {
			return nil, errors.Instantiation(path, err)
		}
	}

	b := &bridge{log: o.log()}
	if _, err := b.instantiate(ctx, rt); err != nil {
		return nil, errors.Instantiation(path, err)
	}

	modCfg := wazero.NewModuleConfig().
		WithName(filepath.Base(path)).
		WithStartFunctions("_initialize")
	if o.cfg.Stdout != nil {
		modCfg = modCfg.WithStdout(o.cfg.Stdout)
	}
	if o.cfg.Stderr != nil {
		modCfg = modCfg.WithStderr(o.cfg.Stderr)
	}

	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return nil, errors.Instantiation(path, err)
	}

	return &Library{
		runtime:  rt,
		compiled: compiled,
		module:   mod,
		bridge:   b,
		path:     path,
		log:      o.log(),
	}, nil
}

// Library is an instantiated module inside its own runtime.
type Library struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	module   api.Module
	bridge   *bridge
	log      *zap.Logger
	path     string
	closed   bool
}

// Lookup resolves the version and factory entry points.
func (l *Library) Lookup(name string) (loader.Symbol, error) {
	if l.closed {
		return nil, errors.NotInitialized(errors.PhaseLoad, "library")
	}
	switch name {
	case abi.SymbolVersion:
		fn := l.module.ExportedFunction(abi.ExportVersion)
		if fn == nil {
			return nil, errors.NotFound(errors.PhaseLoad, "export", name)
		}
		return abi.VersionFunc(func(ctx context.Context) (uint32, error) {
			res, err := fn.Call(ctx)
			if err != nil {
				return 0, errors.Fault(errors.PhaseLoad, name, err)
			}
			if len(res) == 0 {
				return 0, errors.InvalidData(errors.PhaseLoad, name+" returned no value")
			}
			return api.DecodeU32(res[0]), nil
		}), nil

	case abi.SymbolFactory:
		if l.module.ExportedFunction(abi.ExportCreate) == nil {
			return nil, errors.NotFound(errors.PhaseLoad, "export", name)
		}
		for _, export := range abi.TableExports {
			if l.module.ExportedFunction(export) == nil {
				return nil, errors.NotFound(errors.PhaseLoad, "export", export)
			}
		}
		if l.module.Memory() == nil {
			return nil, errors.NotFound(errors.PhaseLoad, "export", "memory")
		}
		return abi.FactoryFunc(l.create), nil
	}
	return nil, errors.NotFound(errors.PhaseLoad, "symbol", name)
}

func (l *Library) create(ctx context.Context) (abi.FunctionTable, error) {
	res, err := l.module.ExportedFunction(abi.ExportCreate).Call(ctx)
	if err != nil {
		return nil, errors.Fault(errors.PhaseLoad, abi.ExportCreate, err)
	}
	if len(res) == 0 || api.DecodeU32(res[0]) == 0 {
		return nil, errors.InvalidData(errors.PhaseLoad, "module returned a null state handle")
	}
	return newTable(l, api.DecodeU32(res[0])), nil
}

// Path is the file the library was opened from.
func (l *Library) Path() string {
	return l.path
}

// Exports lists the exported function names, sorted.
func (l *Library) Exports() []string {
	defs := l.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Imports lists imported functions as module.name, sorted.
func (l *Library) Imports() []string {
	defs := l.compiled.ImportedFunctions()
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		mod, name, _ := def.Import()
		names = append(names, mod+"."+name)
	}
	sort.Strings(names)
	return names
}

// Close releases the runtime and everything instantiated in it.
func (l *Library) Close(ctx context.Context) error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.bridge.bind(nil)
	return l.runtime.Close(ctx)
}

var _ loader.Opener = (*Opener)(nil)
var _ loader.Library = (*Library)(nil)
