// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gazeflow/cmd/gazeflow/cli"
	"github.com/bureau-foundation/gazeflow/history"
	"github.com/bureau-foundation/gazeflow/host"
	"github.com/bureau-foundation/gazeflow/lib/statefile"
)

type simulateParams struct {
	configParams
	cli.JSONOutput

	Page        string        `flag:"page" desc:"HTML file to open in the tab (default: built-in reading page)"`
	URL         string        `flag:"url" desc:"URL the page is opened at"`
	Duration    time.Duration `flag:"duration,d" desc:"how long capture runs" default:"3s"`
	Deny        bool          `flag:"deny" desc:"refuse the camera prompt"`
	NoDevice    bool          `flag:"no-device" desc:"simulate a machine without a camera"`
	Reveal      bool          `flag:"reveal" desc:"turn the reveal overlay on with capture"`
	RevealSVG   string        `flag:"reveal-svg" desc:"write the final reveal overlay as SVG to this file"`
	ScrollAfter time.Duration `flag:"scroll-after" desc:"scroll to the bottom of the page after this long (0 disables)"`
	Seed        int           `flag:"seed" desc:"synthetic prediction seed" default:"1"`
	Export      string        `flag:"export" desc:"write a tab snapshot to this file"`
	NoHistory   bool          `flag:"no-history" desc:"do not record the visit in the history database"`
	Verbose     bool          `flag:"verbose,v" desc:"log every protocol step"`
}

func simulateCommand() *cli.Command {
	var params simulateParams
	return &cli.Command{
		Name:    "simulate",
		Summary: "Run a simulated capture session",
		Description: `Run one capture session against an in-process browser.

A tab opens the page, the control surface toggles capture on, and the
coordinator walks the full protocol: the page asks for camera
permission through a consent frame, the capture host document is
created and a synthetic engine streams gaze predictions to the page.
When the duration is up capture is toggled off and the page's
engagement record is printed.`,
		Examples: []cli.Example{
			{Description: "Run the built-in page for five seconds with the overlay", Command: "gazeflow simulate -d 5s --reveal --reveal-svg fog.svg"},
			{Description: "See what a refused prompt looks like", Command: "gazeflow simulate --deny"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("simulate", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return runSimulate(params)
		},
	}
}

func runSimulate(params simulateParams) error {
	settings, err := params.load()
	if err != nil {
		return err
	}
	if params.Duration <= 0 {
		return fmt.Errorf("--duration must be positive")
	}
	if params.Deny && params.NoDevice {
		return fmt.Errorf("--deny and --no-device are mutually exclusive")
	}
	logger := cli.NewCommandLogger(params.Verbose).With("command", "simulate")

	options := sessionOptions{
		Config:      settings,
		PageURL:     params.URL,
		Decision:    host.Allow,
		Duration:    params.Duration,
		Reveal:      params.Reveal,
		ScrollAfter: params.ScrollAfter,
		Seed:        uint64(params.Seed),
		Logger:      logger,
	}
	switch {
	case params.Deny:
		options.Decision = host.Deny
	case params.NoDevice:
		options.Decision = host.NoDevice
	}
	if params.Page != "" {
		options.PageHTML, err = readPage(params.Page)
		if err != nil {
			return err
		}
		if options.PageURL == "" {
			options.PageURL = "file://" + params.Page
		}
	}

	if !params.NoHistory {
		if err := os.MkdirAll(filepath.Dir(settings.History.Database), 0o755); err != nil {
			return fmt.Errorf("creating history directory: %w", err)
		}
		store, err := history.OpenStore(history.StoreConfig{Path: settings.History.Database, Logger: logger})
		if err != nil {
			return err
		}
		defer store.Close()
		options.History = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := newSession(options)
	if err != nil {
		return err
	}
	report, runErr := session.Run(ctx)
	if report == nil {
		return runErr
	}

	if params.RevealSVG != "" {
		if err := writeRevealSVG(session, params.RevealSVG); err != nil {
			return err
		}
	}
	if params.Export != "" {
		if err := session.tabs.WriteSnapshot(params.Export); err != nil {
			return err
		}
	}

	if done, err := params.EmitJSON(report); done {
		if err != nil {
			return err
		}
		return runErr
	}
	printReport(os.Stdout, report, cli.DefaultTheme)
	return runErr
}

func writeRevealSVG(session *session, path string) error {
	var builder strings.Builder
	if err := session.page.RenderReveal(&builder); err != nil {
		return fmt.Errorf("rendering reveal overlay: %w", err)
	}
	if err := statefile.Write(path, []byte(builder.String())); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func printReport(writer io.Writer, report *sessionReport, theme cli.Theme) {
	status := theme.Bad("inactive")
	if report.CaptureStarted {
		status = theme.Good("active")
	}
	fmt.Fprintf(writer, "%s\n", theme.Heading("Session"))
	fmt.Fprintf(writer, "  tab %d  %s  %s\n", report.TabID, report.Title, theme.Dim(report.URL))
	fmt.Fprintf(writer, "  permission %s  capture %s  predictions %d  capture documents %d\n",
		report.Permission, status, report.Predictions, report.DocumentCreated)
	if report.RevealActive || report.RevealMarks > 0 {
		fmt.Fprintf(writer, "  reveal active=%v marks=%d\n", report.RevealActive, report.RevealMarks)
	}
	for _, notice := range report.Notices {
		fmt.Fprintf(writer, "  notice: %s\n", notice)
	}

	fmt.Fprintf(writer, "\n%s\n", theme.Heading("Engagement"))
	if len(report.Elements) == 0 {
		fmt.Fprintf(writer, "  %s\n", theme.Dim("no elements observed"))
		return
	}
	table := cli.Table{Headers: []string{"ID", "TAG", "DWELL", "HOVER", "GAZE", "TEXT"}, Theme: theme}
	for _, element := range report.Elements {
		table.Rows = append(table.Rows, []string{
			element.UUID[:8],
			element.Tag,
			element.Dwell.Round(time.Millisecond).String(),
			element.Hover.Round(time.Millisecond).String(),
			strconv.Itoa(element.GazeHits),
			history.TruncateURL(element.Text, 48),
		})
	}
	fmt.Fprint(writer, table.Render())
}
