// Package cli provides the command-line interface for flowdriver.
package cli

import (
	"fmt"
	"os"

	"github.com/devicelab-dev/flowdriver/pkg/config"
	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to flowdriver.yaml (default: ./flowdriver.yaml if present)",
		EnvVars: []string{"FLOWDRIVER_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Automation backend (appium, mock)",
		Value:   "appium",
		EnvVars: []string{"FLOWDRIVER_DRIVER"},
	},
	&cli.StringFlag{
		Name:    "appium-url",
		Usage:   "Appium server URL",
		Value:   "http://127.0.0.1:4723",
		EnvVars: []string{"APPIUM_URL"},
	},
	&cli.StringFlag{
		Name:    "caps",
		Usage:   "Appium capabilities JSON file",
		EnvVars: []string{"APPIUM_CAPS"},
	},
	&cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level for the run log (debug, info, warn, error)",
		EnvVars: []string{"FLOWDRIVER_LOG_LEVEL"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"FLOWDRIVER_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "flowdriver",
		Usage:   "Data-driven UI scenario runner for mobile apps",
		Version: Version,
		Description: `flowdriver runs UI scenarios against an Appium server, waiting for
every element to become visible before acting on it.

Examples:
  flowdriver run
  flowdriver run flows/ --include-tags smoke
  flowdriver --driver mock run --output ./reports --flatten
  flowdriver validate flows/
  flowdriver list`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			listCommand,
			validateCommand,
			historyCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	// .env must be loaded before flags are parsed so it can feed EnvVars.
	if err := config.LoadEnv("."); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
