package main

import (
	"github.com/urfave/cli/v2"

	"github.com/wippyai/hotswap/config"
)

// Flag names double as the config keys they override.
var flagKeys = map[string]string{
	"module":             "module.path",
	"backend":            "module.backend",
	"memory-pages":       "module.memory_pages",
	"debounce":           "reload.debounce",
	"max-save-retries":   "reload.max_save_retries",
	"on-schema-mismatch": "reload.on_schema_mismatch",
	"on-snapshot-lost":   "reload.on_snapshot_lost",
	"watch":              "reload.watch",
	"step":               "loop.step",
	"max-steps":          "loop.max_steps",
	"metrics-addr":       "metrics.addr",
	"log-level":          "log.level",
	"log-format":         "log.format",
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file"},
		&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "Interactive mode with TUI"},
		&cli.StringFlag{Name: "module", Aliases: []string{"m"}, Usage: "Module file (wasm binary or static manifest)"},
		&cli.StringFlag{Name: "backend", Usage: "Module backend: wasm or static"},
		&cli.UintFlag{Name: "memory-pages", Usage: "Guest memory limit in 64KiB pages (0 = runtime default)"},
		&cli.DurationFlag{Name: "debounce", Usage: "Minimum time between successful reloads"},
		&cli.IntFlag{Name: "max-save-retries", Usage: "Snapshot attempts before giving up on state"},
		&cli.StringFlag{Name: "on-schema-mismatch", Usage: "use_defaults or pause"},
		&cli.StringFlag{Name: "on-snapshot-lost", Usage: "proceed or abort"},
		&cli.BoolFlag{Name: "watch", Usage: "Reload when the module file changes"},
		&cli.DurationFlag{Name: "step", Usage: "Fixed simulation step"},
		&cli.IntFlag{Name: "max-steps", Usage: "Simulation steps per frame before dropping backlog"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "Serve Prometheus metrics on this address"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.StringFlag{Name: "log-format", Usage: "console or json"},
	}
}

// loadConfig merges defaults, file, environment and the flags set on c.
func loadConfig(c *cli.Context) (*config.Config, error) {
	values := make(map[string]any)
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			values[key] = c.Value(flag)
		}
	}
	if !c.IsSet("module") && c.Args().Present() {
		values["module.path"] = c.Args().First()
	}

	opts := []config.Option{config.WithFlags(values)}
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithFile(path))
	}
	return config.NewLoader(opts...).Load()
}
