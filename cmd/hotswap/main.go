// Command hotswap runs a game module and reloads it whenever it is rebuilt.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set via ldflags.
var Version = "dev"

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func app() *cli.App {
	return &cli.App{
		Name:    "hotswap",
		Usage:   "Run a game module and hot-reload it on rebuild",
		Version: Version,
		Commands: []*cli.Command{
			runCommand(),
			inspectCommand(),
		},
	}
}
