// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gazeflow/cmd/gazeflow/cli"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Summary: "Inspect gazeflow configuration",
		Subcommands: []*cli.Command{
			configCheckCommand(),
		},
	}
}

func configCheckCommand() *cli.Command {
	var params configParams
	return &cli.Command{
		Name:    "check",
		Summary: "Validate a configuration file",
		Usage:   "gazeflow config check [--config <file>]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("check", &params) },
		Run: func(args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("expected at most one configuration file")
			}
			if len(args) == 1 {
				params.ConfigPath = args[0]
			}
			settings, err := params.load()
			theme := cli.DefaultTheme
			if err != nil {
				fmt.Fprintln(os.Stderr, theme.Bad("configuration invalid"))
				for _, line := range strings.Split(err.Error(), "\n") {
					if line = strings.TrimSpace(line); line != "" && line != "invalid configuration:" {
						fmt.Fprintf(os.Stderr, "  %s\n", line)
					}
				}
				return &cli.ExitError{Code: 1}
			}
			fmt.Printf("%s environment=%s history=%s\n", theme.Good("configuration ok"), settings.Environment, settings.History.Database)
			return nil
		},
	}
}
