// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gazeflow/cmd/gazeflow/cli"
	"github.com/bureau-foundation/gazeflow/history"
	"github.com/bureau-foundation/gazeflow/lib/config"
	"github.com/bureau-foundation/gazeflow/lib/statefile"
)

type historyParams struct {
	configParams
	cli.JSONOutput

	Text     string `flag:"search,s" desc:"only visits whose URL or title contains this text"`
	Limit    int    `flag:"limit,n" desc:"most recent visits to consider (default history.max_results)"`
	Favicons bool   `flag:"favicons" desc:"resolve each visit's favicon"`
}

// visitRow is one line of history output.
type visitRow struct {
	URL        string    `json:"url"`
	Display    string    `json:"display_url"`
	Title      string    `json:"title"`
	LastVisit  time.Time `json:"last_visit"`
	VisitCount int       `json:"visit_count"`
	Icon       string    `json:"icon,omitempty"`
}

func historyCommand() *cli.Command {
	var params historyParams
	return &cli.Command{
		Name:    "history",
		Summary: "List recently visited pages",
		Description: `List the pages recorded by simulated sessions, newest first.

URLs under the configured excluded prefixes are left out. Long URLs are
shortened to history.url_display_length characters, or to the terminal
width when that is narrower.`,
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("history", &params) },
		Subcommands: []*cli.Command{
			faviconCommand(),
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return runHistory(params, os.Stdout)
		},
	}
}

func openHistory(settings *config.Config) (*history.Store, error) {
	if _, err := os.Stat(settings.History.Database); err != nil {
		return nil, fmt.Errorf("no history database at %s (run 'gazeflow simulate' first): %w", settings.History.Database, err)
	}
	return history.OpenStore(history.StoreConfig{Path: settings.History.Database})
}

func faviconLookup(store *history.Store, settings *config.Config) *history.Favicons {
	return store.Favicons(history.FaviconConfig{
		Source: &history.HTTPSource{
			Endpoint: settings.History.FaviconEndpoint,
			Timeout:  settings.History.FaviconTimeout,
		},
	})
}

func runHistory(params historyParams, writer io.Writer) error {
	settings, err := params.load()
	if err != nil {
		return err
	}
	store, err := openHistory(settings)
	if err != nil {
		return err
	}
	defer store.Close()

	limit := params.Limit
	if limit <= 0 {
		limit = settings.History.MaxResults
	}
	ctx := context.Background()
	visits, err := store.Search(ctx, history.Query{
		Text:             params.Text,
		MaxResults:       limit,
		ExcludedPrefixes: settings.History.ExcludedPrefixes,
	})
	if err != nil {
		return err
	}

	displayLength := settings.History.URLDisplayLength
	if !params.OutputJSON {
		// Leave room for the time and count columns.
		displayLength = min(displayLength, max(cli.TerminalWidth(200)-40, 20))
	}

	var favicons *history.Favicons
	if params.Favicons {
		favicons = faviconLookup(store, settings)
	}

	rows := make([]visitRow, 0, len(visits))
	for _, visit := range visits {
		row := visitRow{
			URL:        visit.URL,
			Display:    history.TruncateURL(visit.URL, displayLength),
			Title:      visit.Title,
			LastVisit:  visit.LastVisit,
			VisitCount: visit.VisitCount,
		}
		if favicons != nil {
			icon, err := favicons.Lookup(ctx, visit.URL)
			if err != nil {
				return err
			}
			row.Icon = icon.ContentType
			if icon.Fallback {
				row.Icon = "fallback"
			}
		}
		rows = append(rows, row)
	}

	if done, err := params.EmitJSON(rows); done {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(writer, cli.DefaultTheme.Dim("no visits recorded"))
		return nil
	}
	table := cli.Table{Headers: []string{"LAST VISIT", "VISITS", "TITLE", "URL"}, Theme: cli.DefaultTheme}
	if params.Favicons {
		table.Headers = append(table.Headers, "ICON")
	}
	for _, row := range rows {
		cells := []string{
			row.LastVisit.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(row.VisitCount),
			history.TruncateURL(row.Title, 40),
			row.Display,
		}
		if params.Favicons {
			cells = append(cells, row.Icon)
		}
		table.Rows = append(table.Rows, cells)
	}
	fmt.Fprint(writer, table.Render())
	return nil
}

type faviconParams struct {
	configParams
	Output string `flag:"output,o" desc:"write the icon bytes to this file instead of printing a data URL"`
}

func faviconCommand() *cli.Command {
	var params faviconParams
	return &cli.Command{
		Name:    "favicon",
		Summary: "Resolve the favicon for a page URL",
		Usage:   "gazeflow history favicon <url> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("favicon", &params) },
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one URL")
			}
			settings, err := params.load()
			if err != nil {
				return err
			}
			store, err := openHistory(settings)
			if err != nil {
				return err
			}
			defer store.Close()

			icon, err := faviconLookup(store, settings).Lookup(context.Background(), args[0])
			if err != nil {
				return err
			}
			if params.Output != "" {
				return statefile.Write(params.Output, icon.Data)
			}
			fmt.Println(icon.DataURL())
			return nil
		},
	}
}
