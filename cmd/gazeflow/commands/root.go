// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands holds the gazeflow command tree.
package commands

import (
	"fmt"

	"github.com/bureau-foundation/gazeflow/cmd/gazeflow/cli"
	"github.com/bureau-foundation/gazeflow/lib/config"
	"github.com/bureau-foundation/gazeflow/lib/version"
)

// Root returns the top-level command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "gazeflow",
		Summary: "Gaze capture coordination",
		Description: `Gazeflow coordinates webcam gaze capture across a browser's contexts:
the control surface, the coordinator, the capture host and every page.

Commands run against an in-process host. Configuration comes from the
file named by --config or $GAZEFLOW_CONFIG; without either the built-in
defaults apply.`,
		Subcommands: []*cli.Command{
			simulateCommand(),
			historyCommand(),
			tabsCommand(),
			configCommand(),
			versionCommand(),
		},
	}
}

// configParams is embedded by every command that reads configuration.
type configParams struct {
	ConfigPath string `flag:"config" desc:"configuration file (default $GAZEFLOW_CONFIG, else built-in defaults)"`
}

func (p configParams) load() (*config.Config, error) {
	var (
		loaded *config.Config
		err    error
	)
	switch {
	case p.ConfigPath != "":
		loaded, err = config.LoadFile(p.ConfigPath)
	case config.Configured():
		loaded, err = config.Load()
	default:
		loaded = config.Default()
		loaded.ExpandPaths()
	}
	if err != nil {
		return nil, err
	}
	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return loaded, nil
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print the gazeflow version",
		Run: func(args []string) error {
			fmt.Println(version.Info())
			return nil
		},
	}
}
