package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/hotswap/errors"
	"github.com/wippyai/hotswap/lifecycle"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hotswap.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := NewLoader(WithFlags(map[string]any{"module.path": "game.wasm"})).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Module.Backend != BackendWasm {
		t.Fatalf("backend = %q", c.Module.Backend)
	}
	if c.Reload.Debounce != 500*time.Millisecond {
		t.Fatalf("debounce = %v", c.Reload.Debounce)
	}
	if c.Reload.MaxSaveRetries != 3 || !c.Reload.Watch {
		t.Fatalf("reload = %+v", c.Reload)
	}
	if c.Loop.Step != time.Second/60 || c.Loop.MaxSteps != 5 {
		t.Fatalf("loop = %+v", c.Loop)
	}
	if c.Log.Level != "info" || c.Log.Format != "console" {
		t.Fatalf("log = %+v", c.Log)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, `
module:
  path: from-file.wasm
  memory_pages: 32
reload:
  debounce: 2s
  on_schema_mismatch: pause
loop:
  max_steps: 8
log:
  level: debug
`)
	t.Setenv("HOTSWAP_RELOAD__DEBOUNCE", "750ms")
	t.Setenv("HOTSWAP_LOOP__MAX_STEPS", "3")

	c, err := NewLoader(
		WithFile(path),
		WithFlags(map[string]any{"loop.max_steps": 2}),
	).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"file only", c.Module.Path, "from-file.wasm"},
		{"file pages", c.Module.MemoryPages, uint32(32)},
		{"env over file", c.Reload.Debounce, 750 * time.Millisecond},
		{"flag over env", c.Loop.MaxSteps, 2},
		{"file over default", c.Log.Level, "debug"},
		{"default kept", c.Reload.OnSnapshotLost, "proceed"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	p, err := c.Policy()
	if err != nil {
		t.Fatalf("Policy: %v", err)
	}
	if p.OnSchemaMismatch != lifecycle.PauseOnMismatch || p.OnSnapshotLost != lifecycle.Proceed {
		t.Fatalf("policy = %+v", p)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(WithFile(filepath.Join(t.TempDir(), "nope.yaml"))).Load()
	if !errors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindIO}) {
		t.Fatalf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Module: Module{Path: "m.wasm", Backend: BackendWasm},
			Reload: Reload{Debounce: time.Second, MaxSaveRetries: 3},
			Loop:   Loop{Step: time.Millisecond, MaxSteps: 5},
			Log:    Log{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"no path", func(c *Config) { c.Module.Path = " " }, false},
		{"bad backend", func(c *Config) { c.Module.Backend = "dll" }, false},
		{"negative debounce", func(c *Config) { c.Reload.Debounce = -1 }, false},
		{"zero debounce", func(c *Config) { c.Reload.Debounce = 0 }, false},
		{"zero retries", func(c *Config) { c.Reload.MaxSaveRetries = 0 }, false},
		{"bad mismatch policy", func(c *Config) { c.Reload.OnSchemaMismatch = "ignore" }, false},
		{"bad lost policy", func(c *Config) { c.Reload.OnSnapshotLost = "retry" }, false},
		{"zero step", func(c *Config) { c.Loop.Step = 0 }, false},
		{"zero max steps", func(c *Config) { c.Loop.MaxSteps = 0 }, false},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, false},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, false},
		{"static backend", func(c *Config) { c.Module.Backend = BackendStatic }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if errors.KindOf(err) != errors.KindInvalidInput {
					t.Fatalf("kind = %v", errors.KindOf(err))
				}
			}
		})
	}
}

func TestLogBuild(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		l, err := Log{Level: "warn", Format: format}.Build()
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if l.Core().Enabled(zap.DebugLevel) {
			t.Fatalf("%s: debug enabled at warn level", format)
		}
	}
	if _, err := (Log{Level: "nope"}).Build(); err == nil {
		t.Fatal("expected error")
	}
}

func TestLogBuildWriter(t *testing.T) {
	var buf bytes.Buffer
	l, err := Log{Level: "info", Format: "json"}.BuildWriter(&buf)
	if err != nil {
		t.Fatalf("BuildWriter: %v", err)
	}
	l.Debug("hidden")
	l.Info("module loaded", zap.String("path", "game.wasm"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written: %s", out)
	}
	if !strings.Contains(out, `"msg":"module loaded"`) || !strings.Contains(out, `"path":"game.wasm"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}
