// Package cli provides the command definitions for the sessionx CLI.
//
// Every command builds its own session from the layered configuration
// (defaults, --config file, SESSIONX_ environment, flags), so credentials
// survive between invocations only with a persistent store (redis or sqlite).
package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "sessionx",
		Usage:   "call an envelope API with automatic credential refresh",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			RegisterCommand(),
			LoginCommand(),
			GetCommand(),
			PostCommand(),
			DeleteCommand(),
			ProfileCommand(),
			LogoutCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a YAML configuration file",
			EnvVars: []string{"SESSIONX_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "base-url",
			Usage: "API base URL (overrides base_url)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "log requests, refreshes and metrics at debug level",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config  string
	BaseURL string
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:  c.String("config"),
		BaseURL: c.String("base-url"),
		Verbose: c.Bool("verbose"),
	}
}

// overrides maps global flags onto config keys.
func (f *GlobalFlags) overrides() map[string]any {
	m := map[string]any{
		"base_url": f.BaseURL,
	}
	if f.Verbose {
		m["log.level"] = "debug"
	}
	return m
}
