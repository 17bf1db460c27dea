package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/wippyai/hotswap/abi"
)

// Info describes a module without running its logic.
type Info struct {
	Path       string
	Version    uint32
	SchemaHash uint64
	UsesWASI   bool
	Exports    []string
	Imports    []string
	// Missing lists contract exports the module does not provide.
	Missing []string
}

// Complete reports whether every contract export is present.
func (i *Info) Complete() bool {
	return len(i.Missing) == 0
}

// Inspect opens the module at path, calls its version and schema exports
// and lists what it exports and imports. The file is opened in place.
func Inspect(ctx context.Context, path string, cfg Config) (*Info, error) {
	lib, err := NewOpener(cfg).OpenLibrary(ctx, path)
	if err != nil {
		return nil, err
	}
	defer lib.Close(ctx)

	info := &Info{
		Path:     path,
		Exports:  lib.Exports(),
		Imports:  lib.Imports(),
		UsesWASI: importsModule(lib.compiled, wasi_snapshot_preview1.ModuleName),
	}

	required := append([]string{abi.ExportVersion, abi.ExportCreate}, abi.TableExports...)
	for _, name := range required {
		if lib.module.ExportedFunction(name) == nil {
			info.Missing = append(info.Missing, name)
		}
	}

	if fn := lib.module.ExportedFunction(abi.ExportVersion); fn != nil {
		if res, err := fn.Call(ctx); err == nil && len(res) > 0 {
			info.Version = api.DecodeU32(res[0])
		}
	}
	if fn := lib.module.ExportedFunction(abi.ExportSchemaHash); fn != nil {
		if res, err := fn.Call(ctx); err == nil && len(res) > 0 {
			info.SchemaHash = res[0]
		}
	}
	return info, nil
}
