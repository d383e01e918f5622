// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/gazeflow/bus"
	"github.com/bureau-foundation/gazeflow/capture"
	"github.com/bureau-foundation/gazeflow/coordinator"
	"github.com/bureau-foundation/gazeflow/dom"
	"github.com/bureau-foundation/gazeflow/history"
	"github.com/bureau-foundation/gazeflow/host"
	"github.com/bureau-foundation/gazeflow/lib/clock"
	"github.com/bureau-foundation/gazeflow/lib/config"
	"github.com/bureau-foundation/gazeflow/page"
	"github.com/bureau-foundation/gazeflow/permission"
	"github.com/bureau-foundation/gazeflow/protocol"
	"github.com/bureau-foundation/gazeflow/tabs"
)

//go:embed sample.html
var samplePage string

// sampleURL is the address the built-in page is opened at.
const sampleURL = "https://study.gazeflow.test/reading"

// sessionOptions are the knobs of one simulated session.
type sessionOptions struct {
	Config *config.Config

	// PageHTML and PageURL describe the document opened in the tab.
	PageHTML string
	PageURL  string

	Decision host.Decision
	Duration time.Duration
	Reveal   bool

	// ScrollAfter scrolls the page to the bottom once that much of the
	// duration has passed. Zero never scrolls.
	ScrollAfter time.Duration

	Seed uint64

	// History, when set, receives every completed navigation.
	History *history.Store

	Logger *slog.Logger
}

// session is every context of one simulated browser session, wired
// onto one bus.
type session struct {
	options sessionOptions
	logger  *slog.Logger

	bus         *bus.Memory
	camera      *host.Camera
	platform    *host.Memory
	engine      *capture.SyntheticEngine
	tabs        *tabs.Tracker
	coordinator *coordinator.Coordinator
	page        *page.Page
	control     *bus.Endpoint
	tabID       int

	predictions atomic.Int64
	recordErr   atomic.Pointer[error]
	stopTabs    func()
}

// sessionReport is what a finished session observed.
type sessionReport struct {
	TabID           int
	URL             string
	Title           string
	Permission      permission.State
	CaptureStarted  bool
	Predictions     int64
	DocumentCreated int
	Elements        []elementRow
	RevealMarks     int
	RevealActive    bool
	Notices         []string
	Tabs            []tabs.Record
}

type elementRow struct {
	UUID     string        `json:"uuid"`
	Tag      string        `json:"tag"`
	XPath    string        `json:"xpath"`
	Text     string        `json:"text"`
	Dwell    time.Duration `json:"dwell"`
	Hover    time.Duration `json:"hover"`
	Clicks   int           `json:"clicks"`
	GazeHits int           `json:"gaze_hits"`
	Visible  bool          `json:"visible"`
}

func newSession(options sessionOptions) (*session, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if options.PageHTML == "" {
		options.PageHTML, options.PageURL = samplePage, sampleURL
	}
	if options.PageURL == "" {
		options.PageURL = sampleURL
	}
	return &session{options: options, logger: logger}, nil
}

// Run plays the session to completion and reports what happened.
func (s *session) Run(ctx context.Context) (*sessionReport, error) {
	if err := s.build(ctx); err != nil {
		s.close()
		return nil, err
	}
	defer s.close()

	if err := s.send(protocol.ToggleCapture{Action: protocol.Start}); err != nil {
		return nil, err
	}
	if s.options.Reveal {
		if err := s.send(protocol.ToggleReveal{Action: protocol.Start}); err != nil {
			return nil, err
		}
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	if err := s.send(protocol.ToggleCapture{Action: protocol.Stop}); err != nil {
		return nil, err
	}
	report := s.report()
	if err := s.recordErr.Load(); err != nil {
		return report, fmt.Errorf("recording history: %w", *err)
	}
	return report, nil
}

func (s *session) build(ctx context.Context) error {
	settings := s.options.Config
	realClock := clock.Real()

	s.bus = bus.NewMemory(bus.MemoryConfig{InboxSize: settings.Bus.InboxSize, Logger: s.logger})
	s.camera = host.NewCamera(s.options.Decision)
	s.engine = capture.NewSyntheticEngine(capture.SyntheticConfig{
		Clock:    realClock,
		Interval: settings.Capture.TickInterval,
		Width:    float64(settings.Capture.VideoWidth),
		Height:   float64(settings.Capture.VideoHeight),
		Seed:     s.options.Seed,
	})

	var launchFrame host.FrameLauncher
	s.platform = host.NewMemory(host.Config{
		LaunchDocument: s.launchCaptureHost,
		LaunchFrame: func(ctx context.Context, tabID int, requestID string) (io.Closer, error) {
			return launchFrame(ctx, tabID, requestID)
		},
		Logger: s.logger,
	})
	launchFrame = page.ConsentLauncher(page.ConsentFrames{
		Bus:         s.bus,
		Devices:     s.camera,
		Notifier:    s.platform,
		VideoWidth:  settings.Capture.VideoWidth,
		VideoHeight: settings.Capture.VideoHeight,
		Logger:      s.logger,
	})

	s.tabs = tabs.NewTracker(tabs.Config{
		Clock:  realClock,
		Logger: s.logger,
		OnPage: s.recordVisit(ctx),
	})
	events, unsubscribe := s.platform.SubscribeTabs()
	listener := tabs.NewListener(s.tabs, s.logger)
	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		listener.Run(ctx, events)
	}()
	s.stopTabs = func() {
		unsubscribe()
		<-listenerDone
	}

	document, err := dom.ParseString(s.options.PageHTML, dom.Options{
		Viewport: dom.Size{Width: float64(settings.Capture.VideoWidth), Height: float64(settings.Capture.VideoHeight)},
		Clock:    realClock,
	})
	if err != nil {
		return fmt.Errorf("parsing page: %w", err)
	}
	title := pageTitle(document)

	s.tabID = s.platform.CreateTab(s.options.PageURL)
	if err := s.platform.ActivateTab(s.tabID); err != nil {
		return err
	}
	if err := s.platform.CompleteNavigation(s.tabID, s.options.PageURL, title); err != nil {
		return err
	}
	document.Load()

	s.page, err = page.New(page.Config{
		TabID:          s.tabID,
		Document:       document,
		Embedder:       page.HostEmbedder(s.platform),
		ConsentTimeout: settings.Coordinator.PermissionTimeout,
		Engagement:     settings.Engagement,
		Reveal:         settings.Reveal,
		Logger:         s.logger,
	})
	if err != nil {
		return err
	}
	if _, err := s.page.Attach(ctx, s.bus); err != nil {
		return err
	}

	s.coordinator, err = coordinator.New(coordinator.Config{
		Host:              s.platform,
		Clock:             realClock,
		PermissionTimeout: settings.Coordinator.PermissionTimeout,
		CreationTimeout:   settings.Coordinator.CreationTimeout,
		CaptureDocument:   settings.Coordinator.CaptureDocument,
		Logger:            s.logger,
	})
	if err != nil {
		return err
	}
	if _, err := s.coordinator.Attach(ctx, s.bus); err != nil {
		return err
	}

	// The control surface only sends; it never answers anything.
	s.control, err = s.bus.Register(bus.ControlSurface, func(*bus.Delivery) bool { return false })
	return err
}

// launchCaptureHost is the host's document launcher: every capture
// document runs a fresh controller on the session's engine.
func (s *session) launchCaptureHost(ctx context.Context, path string) (io.Closer, error) {
	settings := s.options.Config
	controller, err := capture.NewController(capture.Config{
		Devices:        s.camera,
		Permissions:    s.camera,
		Engine:         countingEngine{SyntheticEngine: s.engine, count: &s.predictions},
		VideoWidth:     settings.Capture.VideoWidth,
		VideoHeight:    settings.Capture.VideoHeight,
		PermissionName: settings.Capture.PermissionName,
		Logger:         s.logger,
	})
	if err != nil {
		return nil, err
	}
	if _, err := controller.Attach(context.WithoutCancel(ctx), s.bus); err != nil {
		return nil, err
	}
	s.logger.Debug("capture host launched", "path", path)
	return controller, nil
}

// countingEngine counts the predictions the engine delivers.
type countingEngine struct {
	*capture.SyntheticEngine
	count *atomic.Int64
}

func (e countingEngine) SetPredictionListener(listener func(*protocol.Point)) {
	e.SyntheticEngine.SetPredictionListener(func(point *protocol.Point) {
		e.count.Add(1)
		listener(point)
	})
}

func (s *session) recordVisit(ctx context.Context) func(int, tabs.Page) {
	if s.options.History == nil {
		return nil
	}
	store := s.options.History
	return func(tabID int, visited tabs.Page) {
		err := store.Record(ctx, history.Visit{URL: visited.URL, Title: visited.Title, LastVisit: visited.Timestamp})
		if err != nil {
			s.logger.Warn("recording visit failed", "tab", tabID, "url", visited.URL, "error", err)
			s.recordErr.Store(&err)
		}
	}
}

func (s *session) send(message protocol.Message) error {
	envelope, err := protocol.Encode(message, bus.Coordinator)
	if err != nil {
		return err
	}
	if err := s.control.Send(envelope); err != nil {
		return fmt.Errorf("sending %s: %w", message.MessageType(), err)
	}
	return nil
}

// wait lets the session run for its duration, scrolling once halfway
// through when asked.
func (s *session) wait(ctx context.Context) error {
	deadline := time.After(s.options.Duration)
	var scroll <-chan time.Time
	if s.options.ScrollAfter > 0 && s.options.ScrollAfter < s.options.Duration {
		scroll = time.After(s.options.ScrollAfter)
	}
	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-scroll:
			scroll = nil
			s.page.Do(func(document *dom.Document) {
				size := document.ScrollSize()
				document.ScrollTo(0, size.Height)
			})
		case <-deadline:
			return nil
		}
	}
}

func (s *session) report() *sessionReport {
	report := &sessionReport{
		TabID:           s.tabID,
		URL:             s.options.PageURL,
		Permission:      s.page.PermissionState(),
		CaptureStarted:  s.coordinator.State() == coordinator.Active,
		Predictions:     s.predictions.Load(),
		DocumentCreated: s.platform.DocumentCreations(),
		RevealMarks:     len(s.page.RevealMarks()),
		RevealActive:    s.page.RevealActive(),
		Notices:         s.platform.Notices(),
		Tabs:            s.tabs.Tabs(),
	}
	if record, ok := s.tabs.Tab(s.tabID); ok && record.LatestPage != nil {
		report.Title = record.LatestPage.Title
	}
	for _, element := range s.page.Engagement() {
		report.Elements = append(report.Elements, elementRow{
			UUID:     element.UUID,
			Tag:      element.Tag,
			XPath:    element.XPath,
			Text:     element.Text,
			Dwell:    element.DwellDuration,
			Hover:    element.HoverDuration,
			Clicks:   element.ClickCount,
			GazeHits: element.GazeHits,
			Visible:  element.Visible,
		})
	}
	return report
}

// close tears down in reverse order. Safe after a partial build.
func (s *session) close() {
	if s.coordinator != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.coordinator.Teardown(ctx); err != nil {
			s.logger.Warn("capture host teardown failed", "error", err)
		}
		cancel()
	}
	if s.page != nil {
		s.page.Close()
	}
	if s.stopTabs != nil {
		s.stopTabs()
	}
	if s.bus != nil {
		s.bus.Close()
	}
}

func pageTitle(document *dom.Document) string {
	for _, node := range document.QuerySelectorAll("title") {
		if title := strings.TrimSpace(node.Text()); title != "" {
			return title
		}
	}
	return ""
}

func readPage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading page: %w", err)
	}
	return string(data), nil
}
