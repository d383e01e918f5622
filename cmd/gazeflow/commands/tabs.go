// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gazeflow/cmd/gazeflow/cli"
	"github.com/bureau-foundation/gazeflow/tabs"
)

type tabsParams struct {
	cli.JSONOutput
}

func tabsCommand() *cli.Command {
	var params tabsParams
	return &cli.Command{
		Name:    "tabs",
		Summary: "Show a tab snapshot written by simulate --export",
		Usage:   "gazeflow tabs <snapshot> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("tabs", &params) },
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one snapshot file")
			}
			snapshot, err := tabs.ReadSnapshot(args[0])
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(snapshot); done {
				return err
			}
			printTabs(os.Stdout, snapshot, cli.DefaultTheme)
			return nil
		},
	}
}

func printTabs(writer io.Writer, snapshot tabs.Snapshot, theme cli.Theme) {
	fmt.Fprintf(writer, "%s %s\n", theme.Heading("Tabs"), theme.Dim("taken "+snapshot.Taken.Local().Format("2006-01-02 15:04:05")))
	table := cli.Table{Headers: []string{"TAB", "STATE", "FOCUS", "TITLE", "URL"}, Theme: theme}
	for _, record := range snapshot.Tabs {
		state := "open"
		if record.Closed {
			state = "closed"
		}
		focus := "-"
		if count := len(record.FocusHistory); count > 0 {
			focus = fmt.Sprintf("%s (%d)", record.FocusHistory[count-1].Event, count)
		}
		title, url := "", ""
		if record.LatestPage != nil {
			title, url = record.LatestPage.Title, record.LatestPage.URL
		}
		table.Rows = append(table.Rows, []string{strconv.Itoa(record.TabID), state, focus, title, url})
	}
	fmt.Fprint(writer, table.Render())
}
