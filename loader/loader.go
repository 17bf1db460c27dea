package loader

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/hotswap/abi"
	"github.com/wippyai/hotswap/errors"
)

// Loader installs modules that match one ABI version and one schema.
type Loader struct {
	Opener          Opener
	ExpectedVersion uint32
	ExpectedSchema  uint64
	Logger          *zap.Logger
}

// New returns a Loader for the ABI compiled into this host.
func New(opener Opener, schema uint64) *Loader {
	return &Loader{
		Opener:          opener,
		ExpectedVersion: abi.Version,
		ExpectedSchema:  schema,
	}
}

func (l *Loader) log() *zap.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return Logger()
}

// Load copies source to a unique path, opens the copy and validates it.
// On error nothing stays installed: the library is closed and the copy
// removed.
func (l *Loader) Load(ctx context.Context, source string) (*Handle, error) {
	if l.Opener == nil {
		return nil, errors.NotInitialized(errors.PhaseLoad, "opener")
	}

	path := CopyPath(source)
	if err := copyFile(source, path); err != nil {
		return nil, err
	}

	lib, err := l.Opener.Open(ctx, path)
	if err != nil {
		l.discard(path)
		var structured *errors.Error
		if errors.As(err, &structured) {
			return nil, err
		}
		return nil, errors.Load(source, "open module", err)
	}

	table, err := l.handshake(ctx, source, lib)
	if err != nil {
		if cerr := lib.Close(ctx); cerr != nil {
			l.log().Warn("close rejected module", zap.String("path", path), zap.Error(cerr))
		}
		l.discard(path)
		return nil, err
	}

	l.log().Info("module loaded",
		zap.String("source", source),
		zap.String("path", path),
		zap.Uint64("schema", l.ExpectedSchema))

	return &Handle{
		table:  table,
		lib:    lib,
		path:   path,
		source: source,
		log:    l.log(),
	}, nil
}

func (l *Loader) handshake(ctx context.Context, source string, lib Library) (abi.FunctionTable, error) {
	sym, err := lib.Lookup(abi.SymbolVersion)
	if err != nil {
		return nil, errors.MissingSymbol(source, abi.SymbolVersion, err)
	}
	versionFn, ok := sym.(abi.VersionFunc)
	if !ok {
		return nil, errors.SymbolType(source, abi.SymbolVersion, sym)
	}
	version, err := versionFn(ctx)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindPanic).
			Module(source).
			Symbol(abi.SymbolVersion).
			Detail("version entry point failed").
			Cause(err).
			Build()
	}
	if version != l.ExpectedVersion {
		return nil, errors.VersionMismatch(source, l.ExpectedVersion, version)
	}

	sym, err = lib.Lookup(abi.SymbolFactory)
	if err != nil {
		return nil, errors.MissingSymbol(source, abi.SymbolFactory, err)
	}
	factory, ok := sym.(abi.FactoryFunc)
	if !ok {
		return nil, errors.SymbolType(source, abi.SymbolFactory, sym)
	}
	table, err := factory(ctx)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindPanic).
			Module(source).
			Symbol(abi.SymbolFactory).
			Detail("factory failed").
			Cause(err).
			Build()
	}
	if table == nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Module(source).
			Symbol(abi.SymbolFactory).
			Detail("factory returned no function table").
			Build()
	}

	if got := table.SchemaHash(ctx); got != l.ExpectedSchema {
		table.DropState(ctx)
		return nil, errors.SchemaMismatch(errors.PhaseLoad, source, l.ExpectedSchema, got)
	}
	return table, nil
}

func (l *Loader) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		l.log().Warn("remove module copy", zap.String("path", path), zap.Error(err))
	}
}
