// Package config loads runtime settings from defaults, a YAML file, the
// environment and command line flags, in increasing priority.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/hotswap/errors"
	"github.com/wippyai/hotswap/lifecycle"
)

// DefaultEnvPrefix prefixes every environment variable the loader reads.
const DefaultEnvPrefix = "HOTSWAP_"

// Backends.
const (
	BackendWasm   = "wasm"
	BackendStatic = "static"
)

// Config is the full runtime configuration.
type Config struct {
	Module  Module  `koanf:"module"`
	Reload  Reload  `koanf:"reload"`
	Loop    Loop    `koanf:"loop"`
	Metrics Metrics `koanf:"metrics"`
	Log     Log     `koanf:"log"`
}

type Module struct {
	Path        string `koanf:"path"`
	Backend     string `koanf:"backend"`
	MemoryPages uint32 `koanf:"memory_pages"`
}

type Reload struct {
	Debounce         time.Duration `koanf:"debounce"`
	MaxSaveRetries   int           `koanf:"max_save_retries"`
	OnSchemaMismatch string        `koanf:"on_schema_mismatch"`
	OnSnapshotLost   string        `koanf:"on_snapshot_lost"`
	Watch            bool          `koanf:"watch"`
}

type Loop struct {
	Step     time.Duration `koanf:"step"`
	MaxSteps int           `koanf:"max_steps"`
}

type Metrics struct {
	// Addr is the listen address for /metrics. Empty disables the server.
	Addr string `koanf:"addr"`
}

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults returns the built-in values as flat koanf keys.
func Defaults() map[string]any {
	return map[string]any{
		"module.backend":            BackendWasm,
		"module.memory_pages":       0,
		"reload.debounce":           lifecycle.DefaultDebounce.String(),
		"reload.max_save_retries":   3,
		"reload.on_schema_mismatch": "use_defaults",
		"reload.on_snapshot_lost":   "proceed",
		"reload.watch":              true,
		"loop.step":                 (time.Second / 60).String(),
		"loop.max_steps":            5,
		"log.level":                 "info",
		"log.format":                "console",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Module.Path) == "" {
		return invalid("module.path is required")
	}
	switch c.Module.Backend {
	case BackendWasm, BackendStatic:
	default:
		return invalid(fmt.Sprintf("module.backend %q is not one of wasm, static", c.Module.Backend))
	}
	if c.Reload.Debounce <= 0 {
		return invalid("reload.debounce must be positive")
	}
	if c.Reload.MaxSaveRetries < 1 {
		return invalid("reload.max_save_retries must be at least 1")
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if c.Loop.Step <= 0 {
		return invalid("loop.step must be positive")
	}
	if c.Loop.MaxSteps < 1 {
		return invalid("loop.max_steps must be at least 1")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return invalid(fmt.Sprintf("log.format %q is not one of console, json", c.Log.Format))
	}
	return nil
}

// Policy converts the reload policy strings.
func (c *Config) Policy() (lifecycle.Policy, error) {
	var p lifecycle.Policy
	var err error
	if p.OnSchemaMismatch, err = lifecycle.ParseSchemaMismatchPolicy(c.Reload.OnSchemaMismatch); err != nil {
		return p, err
	}
	if p.OnSnapshotLost, err = lifecycle.ParseSnapshotLostPolicy(c.Reload.OnSnapshotLost); err != nil {
		return p, err
	}
	return p, nil
}

func invalid(detail string) error {
	return errors.InvalidInput(errors.PhaseConfig, detail)
}

// Loader merges configuration sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	flags     map[string]any
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix replaces DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithFile reads a YAML file after the defaults.
func WithFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithFlags applies flat keys on top of every other source. Only flags
// the user actually set belong here.
func WithFlags(values map[string]any) Option {
	return func(l *Loader) { l.flags = values }
}

// NewLoader returns a loader with the given sources.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source, unmarshals and validates.
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(mapProvider(Defaults()), nil); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "defaults")
	}
	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return nil, errors.IO(errors.PhaseConfig, "load "+l.filePath, err)
		}
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "environment")
	}
	if len(l.flags) > 0 {
		if err := l.k.Load(mapProvider(l.flags), nil); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "flags")
		}
	}

	var c Config
	if err := l.k.Unmarshal("", &c); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "unmarshal")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// envKey maps HOTSWAP_RELOAD__MAX_SAVE_RETRIES to reload.max_save_retries.
// Sections are separated by a double underscore so keys keep theirs.
func (l *Loader) envKey(s string) string {
	s = strings.TrimPrefix(s, l.envPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Keys lists every key known after Load.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}

// mapProvider feeds flat key maps to koanf, nesting on ".".
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New(errors.PhaseConfig, errors.KindUnsupportedFormat).
		Detail("map provider has no byte form").
		Build()
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
