package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/wippyai/hotswap/config"
	"github.com/wippyai/hotswap/engine"
	"github.com/wippyai/hotswap/game"
	"github.com/wippyai/hotswap/static"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show a module's version, schema hash and exports without running it",
		ArgsUsage: "<module>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend", Value: config.BackendWasm, Usage: "wasm or static"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("usage: hotswap inspect <module>")
			}
			switch c.String("backend") {
			case config.BackendWasm:
				return inspectWasm(c, path)
			case config.BackendStatic:
				return inspectStatic(path)
			default:
				return fmt.Errorf("unknown backend %q", c.String("backend"))
			}
		},
	}
}

func inspectWasm(c *cli.Context, path string) error {
	info, err := engine.Inspect(c.Context, path, engine.Config{})
	if err != nil {
		return err
	}

	fmt.Printf("Module: %s\n", info.Path)
	fmt.Printf("ABI version: %d\n", info.Version)
	fmt.Printf("Schema hash: %#016x", info.SchemaHash)
	if info.SchemaHash == game.SchemaHash() {
		fmt.Printf(" (matches %s)\n", game.LayoutID)
	} else {
		fmt.Printf(" (host expects %#016x)\n", game.SchemaHash())
	}
	fmt.Printf("Uses WASI: %v\n", info.UsesWASI)

	fmt.Printf("\nExports:\n")
	for _, name := range info.Exports {
		fmt.Printf("  %s\n", name)
	}
	fmt.Printf("\nImports:\n")
	for _, name := range info.Imports {
		fmt.Printf("  %s\n", name)
	}
	if !info.Complete() {
		fmt.Printf("\nMissing contract exports: %s\n", strings.Join(info.Missing, ", "))
	}
	return nil
}

func inspectStatic(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	reg := static.NewRegistry()
	game.Register(reg)

	name := strings.TrimSpace(string(raw))
	fmt.Printf("Manifest: %s\n", path)
	fmt.Printf("Module: %s\n", name)
	fmt.Printf("Registered: %s\n", strings.Join(reg.Names(), ", "))
	for _, n := range reg.Names() {
		if n == name {
			fmt.Printf("Schema hash: %#016x (%s)\n", game.SchemaHash(), game.LayoutID)
			return nil
		}
	}
	return fmt.Errorf("module %q is not registered", name)
}
