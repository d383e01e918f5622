// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/gazeflow/bus"
	"github.com/bureau-foundation/gazeflow/dom"
	"github.com/bureau-foundation/gazeflow/engagement"
	"github.com/bureau-foundation/gazeflow/lib/clock"
	"github.com/bureau-foundation/gazeflow/lib/config"
	"github.com/bureau-foundation/gazeflow/permission"
	"github.com/bureau-foundation/gazeflow/protocol"
	"github.com/bureau-foundation/gazeflow/reveal"
)

// DotID is the id attribute of the gaze indicator.
const DotID = "gazeflow-gaze-dot"

// dotSize is the indicator's edge length in pixels.
const dotSize = 10

// Config configures New.
type Config struct {
	TabID    int
	Document *dom.Document

	// Embedder opens consent frames for permission prompts.
	Embedder permission.Embedder

	// ConsentTimeout bounds the wait for a consent frame. Zero waits
	// until the prompt's context ends.
	ConsentTimeout time.Duration

	Engagement config.EngagementConfig
	Reveal     config.RevealConfig

	// Clock defaults to the document's clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Page is one tab's page context.
type Page struct {
	tabID          int
	document       *dom.Document
	embedder       permission.Embedder
	consentTimeout time.Duration
	clock          clock.Clock
	logger         *slog.Logger

	// mu guards the document and everything attached to it.
	mu      sync.Mutex
	tracker *engagement.Tracker
	overlay *reveal.Overlay
	dot     *dom.Node

	broker   atomic.Pointer[permission.Broker]
	endpoint atomic.Pointer[bus.Endpoint]
	ctx      context.Context
}

// New builds the page's components against the document, inserts the
// gaze indicator and starts engagement tracking.
func New(config Config) (*Page, error) {
	if config.Document == nil || config.Embedder == nil {
		return nil, errors.New("page: Document and Embedder are required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pageClock := config.Clock
	if pageClock == nil {
		pageClock = config.Document.Clock()
	}
	logger = logger.With("component", "page", "tab", config.TabID)

	tracker, err := engagement.NewTracker(engagement.Config{
		Document:            config.Document,
		CandidateTags:       config.Engagement.CandidateTags,
		StrippedTags:        config.Engagement.StrippedTags,
		HighlightColor:      config.Engagement.HighlightColor,
		VisibilityThreshold: config.Engagement.VisibilityThreshold,
		Logger:              logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating engagement tracker: %w", err)
	}
	overlay, err := reveal.New(reveal.Config{
		Document: config.Document,
		Radius:   config.Reveal.Radius,
		Blur:     config.Reveal.Blur,
		Fill:     config.Reveal.Fill,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating reveal overlay: %w", err)
	}

	page := &Page{
		tabID:          config.TabID,
		document:       config.Document,
		embedder:       config.Embedder,
		consentTimeout: config.ConsentTimeout,
		clock:          pageClock,
		logger:         logger,
		tracker:        tracker,
		overlay:        overlay,
		ctx:            context.Background(),
	}
	page.dot = page.insertDot()
	tracker.Start()
	return page, nil
}

func (p *Page) insertDot() *dom.Node {
	dot := p.document.CreateElement("div")
	dot.SetAttribute("id", DotID)
	dot.SetStyle("position", "absolute")
	dot.SetStyle("width", pixels(dotSize))
	dot.SetStyle("height", pixels(dotSize))
	dot.SetStyle("z-index", "99999")
	dot.SetStyle("background-color", "red")
	dot.SetStyle("pointer-events", "none")
	dot.SetStyle("left", pixels(-dotSize/2))
	dot.SetStyle("top", pixels(-dotSize/2))
	p.document.AppendChild(p.document.Body(), dot)
	return dot
}

// Attach registers the page as bus.Page(TabID) and creates its
// permission broker on the resulting endpoint. ctx bounds permission
// prompts started by messages.
func (p *Page) Attach(ctx context.Context, memory *bus.Memory) (*bus.Endpoint, error) {
	p.ctx = ctx
	endpoint, err := memory.Register(bus.Page(p.tabID), p.handle)
	if err != nil {
		return nil, fmt.Errorf("attaching page: %w", err)
	}
	broker, err := permission.NewBroker(permission.Config{
		Port:     endpoint,
		TabID:    p.tabID,
		Embedder: p.embedder,
		Clock:    p.clock,
		Timeout:  p.consentTimeout,
		Logger:   p.logger,
	})
	if err != nil {
		endpoint.Close()
		return nil, err
	}
	p.broker.Store(broker)
	p.endpoint.Store(endpoint)
	return endpoint, nil
}

// Close stops engagement tracking and unregisters the page context.
func (p *Page) Close() error {
	p.mu.Lock()
	p.tracker.Stop()
	p.mu.Unlock()
	if endpoint := p.endpoint.Swap(nil); endpoint != nil {
		endpoint.Close()
	}
	return nil
}

// Do runs fn with exclusive access to the document.
func (p *Page) Do(fn func(document *dom.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.document)
}

// RequestPermission runs the permission broker. The page must be
// attached.
func (p *Page) RequestPermission(ctx context.Context) error {
	broker := p.broker.Load()
	if broker == nil {
		return errors.New("page not attached")
	}
	return broker.Request(ctx)
}

// PermissionState returns the broker's state, Unknown before Attach.
func (p *Page) PermissionState() permission.State {
	if broker := p.broker.Load(); broker != nil {
		return broker.State()
	}
	return permission.Unknown
}

// Engagement returns the tracked elements.
func (p *Page) Engagement() []engagement.Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracker.Elements()
}

// Highlight records an external highlight of the element with the
// given id. Returns false if there is no such tracked element.
func (p *Page) Highlight(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	node := p.document.ElementByID(id)
	if node == nil {
		return false
	}
	return p.tracker.Highlight(node)
}

// RevealMarks returns the overlay's permanent cut-outs.
func (p *Page) RevealMarks() []reveal.Mark {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overlay.Marks()
}

// RevealActive reports whether the overlay is enabled.
func (p *Page) RevealActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overlay.Active()
}

// RenderReveal writes the overlay as SVG.
func (p *Page) RenderReveal(writer io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overlay.Render(writer)
}

// Dot returns the gaze indicator's box in document coordinates.
func (p *Page) Dot() dom.Rect {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dot.Rect()
}

// Gaze applies one prediction to the dot, the engagement tracker and
// the overlay. A nil point is dropped.
func (p *Page) Gaze(point *protocol.Point) {
	if point == nil {
		p.logger.Debug("dropping empty prediction")
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moveDot(point)
	p.tracker.Gaze(point)
	p.overlay.AddPrediction(point)
}

// moveDot places the indicator at point, kept inside the viewport.
func (p *Page) moveDot(point *protocol.Point) {
	viewport := p.document.Viewport()
	scrollX, scrollY := p.document.Scroll()
	x := max(0, min(point.X, viewport.Width-dotSize)) + scrollX
	y := max(0, min(point.Y, viewport.Height-dotSize)) + scrollY
	p.dot.SetStyle("left", pixels(x))
	p.dot.SetStyle("top", pixels(y))
}

// SetReveal enables or disables the overlay.
func (p *Page) SetReveal(action protocol.Action) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch action {
	case protocol.Start:
		return p.overlay.Enable()
	case protocol.Stop:
		p.overlay.Disable()
		return nil
	}
	return fmt.Errorf("unknown reveal action %q", action)
}

func pixels(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64) + "px"
}
