// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/gazeflow/history"
	"github.com/bureau-foundation/gazeflow/host"
	"github.com/bureau-foundation/gazeflow/lib/config"
	"github.com/bureau-foundation/gazeflow/lib/testutil"
	"github.com/bureau-foundation/gazeflow/permission"
	"github.com/bureau-foundation/gazeflow/tabs"
)

func testSettings() *config.Config {
	settings := config.Default()
	settings.Capture.TickInterval = 10 * time.Millisecond
	settings.Capture.VideoWidth, settings.Capture.VideoHeight = 800, 600
	return settings
}

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.OpenStore(history.StoreConfig{Path: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func runSession(t *testing.T, options sessionOptions) (*session, *sessionReport) {
	t.Helper()
	session, err := newSession(options)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	report, err := session.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return session, report
}

func TestSessionCapturesAndRecords(t *testing.T) {
	store := openStore(t)
	session, report := runSession(t, sessionOptions{
		Config:   testSettings(),
		Decision: host.Allow,
		Duration: time.Second,
		Reveal:   true,
		Seed:     3,
		History:  store,
	})

	if report.Permission != permission.Granted || !report.CaptureStarted {
		t.Fatalf("permission %s, capture started %v", report.Permission, report.CaptureStarted)
	}
	if report.DocumentCreated != 1 {
		t.Errorf("capture documents created = %d, want 1", report.DocumentCreated)
	}
	if report.Predictions == 0 {
		t.Error("no predictions were produced")
	}
	if !report.RevealActive || report.RevealMarks == 0 {
		t.Errorf("reveal active=%v marks=%d", report.RevealActive, report.RevealMarks)
	}
	if report.Title != "Reading Study" || report.URL != sampleURL {
		t.Errorf("page = %q at %q", report.Title, report.URL)
	}

	var heading bool
	for _, element := range report.Elements {
		if element.Tag == "h1" && element.Text == "Reading Study" {
			heading = true
		}
	}
	if !heading {
		t.Errorf("h1 not among %d tracked elements", len(report.Elements))
	}

	testutil.Eventually(t, 5*time.Second, func() bool {
		visits, err := store.Search(context.Background(), history.Query{})
		return err == nil && len(visits) == 1 && visits[0].URL == sampleURL && visits[0].Title == "Reading Study"
	}, "visit recorded in history")

	var svg bytes.Buffer
	if err := session.page.RenderReveal(&svg); err != nil {
		t.Fatalf("RenderReveal: %v", err)
	}
	if !strings.Contains(svg.String(), "<circle") {
		t.Error("reveal SVG has no marks")
	}
}

func TestSessionDenied(t *testing.T) {
	_, report := runSession(t, sessionOptions{
		Config:   testSettings(),
		Decision: host.Deny,
		Duration: 300 * time.Millisecond,
	})
	if report.Permission != permission.Denied {
		t.Errorf("permission = %s, want denied", report.Permission)
	}
	if report.CaptureStarted || report.DocumentCreated != 0 || report.Predictions != 0 {
		t.Errorf("capture ran after a refused prompt: %+v", report)
	}
	if len(report.Notices) != 1 || report.Notices[0] != permission.ConsentNotice {
		t.Errorf("notices = %v", report.Notices)
	}
}

func TestSessionScrollAndExport(t *testing.T) {
	session, report := runSession(t, sessionOptions{
		Config:      testSettings(),
		Decision:    host.Allow,
		Duration:    600 * time.Millisecond,
		ScrollAfter: 200 * time.Millisecond,
	})

	var summary bool
	for _, element := range report.Elements {
		if element.Text == "Summary" {
			summary = true
		}
	}
	if !summary {
		t.Error("element below the fold not tracked after scrolling")
	}

	path := filepath.Join(t.TempDir(), "tabs.cbor")
	if err := session.tabs.WriteSnapshot(path); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	snapshot, err := tabs.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if len(snapshot.Tabs) != 1 || snapshot.Tabs[0].LatestPage == nil || snapshot.Tabs[0].LatestPage.URL != sampleURL {
		t.Fatalf("snapshot = %+v", snapshot)
	}

	var output bytes.Buffer
	printTabs(&output, snapshot, testTheme())
	if !strings.Contains(output.String(), sampleURL) {
		t.Errorf("tabs output missing URL:\n%s", output.String())
	}
}

func TestPrintReport(t *testing.T) {
	report := &sessionReport{
		TabID:      1,
		Title:      "Reading Study",
		URL:        sampleURL,
		Permission: permission.Granted,
		Elements: []elementRow{{
			UUID:     "0123456789abcdef",
			Tag:      "p",
			Text:     "Follow the text",
			Dwell:    1500 * time.Millisecond,
			GazeHits: 4,
		}},
	}
	var output bytes.Buffer
	printReport(&output, report, testTheme())
	for _, want := range []string{"Reading Study", "01234567", "1.5s", "Follow the text"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("report missing %q:\n%s", want, output.String())
		}
	}
}
