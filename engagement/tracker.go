// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engagement

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/gazeflow/dom"
	"github.com/bureau-foundation/gazeflow/protocol"
)

// Element is the engagement record for one fingerprint. Durations and
// counts never decrease. VisibleSince and HoverStart are zero unless
// the element is visible or hovered right now.
type Element struct {
	Fingerprint string
	UUID        string
	XPath       string
	Tag         string

	// Text is the fingerprinted content, for reports.
	Text string

	FirstSeen    time.Time
	Visible      bool
	VisibleSince time.Time
	HoverStart   time.Time

	DwellDuration time.Duration
	HoverDuration time.Duration

	ClickCount     int
	HighlightCount int
	GazeHits       int
}

// Config configures NewTracker.
type Config struct {
	Document *dom.Document

	// CandidateTags are the element tags tracked.
	CandidateTags []string

	// StrippedTags are excluded from fingerprinted text.
	StrippedTags []string

	// HighlightColor is the background-color given to gazed nodes.
	HighlightColor string

	// VisibilityThreshold is the visible fraction of an element's area
	// at which it counts as visible.
	VisibilityThreshold float64

	Logger *slog.Logger
}

type record struct {
	element Element

	// nodes are every node seen with this fingerprint; visibleNodes
	// the subset currently visible. The record is visible while any of
	// its nodes is.
	nodes        []*dom.Node
	visibleNodes map[*dom.Node]bool
}

// Tracker keeps engagement records for one document.
type Tracker struct {
	document       *dom.Document
	candidates     map[string]bool
	stripped       map[string]bool
	highlightColor string
	threshold      float64
	logger         *slog.Logger

	records map[string]*record
	order   []string

	// fingerprints maps each node with listeners to the fingerprint it
	// had when first seen.
	fingerprints map[*dom.Node]string
	highlighted  map[*dom.Node]string

	visibility *dom.VisibilityObserver
	mutation   *dom.MutationObserver
}

// NewTracker creates a tracker. Nothing is observed until Start.
func NewTracker(config Config) (*Tracker, error) {
	if config.Document == nil {
		return nil, errors.New("engagement: Document is required")
	}
	if len(config.CandidateTags) == 0 {
		return nil, errors.New("engagement: CandidateTags must not be empty")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	highlightColor := config.HighlightColor
	if highlightColor == "" {
		highlightColor = "yellow"
	}
	return &Tracker{
		document:       config.Document,
		candidates:     toSet(config.CandidateTags),
		stripped:       toSet(config.StrippedTags),
		highlightColor: highlightColor,
		threshold:      config.VisibilityThreshold,
		logger:         logger.With("component", "engagement"),
		records:        make(map[string]*record),
		fingerprints:   make(map[*dom.Node]string),
		highlighted:    make(map[*dom.Node]string),
	}, nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, value := range values {
		set[value] = true
	}
	return set
}

// Start observes every candidate element in the body and watches the
// body for inserted content. Calling Start twice does nothing.
func (t *Tracker) Start() {
	if t.visibility != nil {
		return
	}
	t.visibility = t.document.NewVisibilityObserver(t.threshold, t.onVisibility)
	t.mutation = t.document.NewMutationObserver(t.onMutation)

	body := t.document.Body()
	t.observeSubtree(body)
	t.mutation.Observe(body)
}

// Stop disconnects the observers, closing the dwell interval of every
// visible element. Records are kept and a later Start resumes
// tracking.
func (t *Tracker) Stop() {
	if t.visibility == nil {
		return
	}
	now := t.document.Clock().Now()
	for _, fingerprint := range t.order {
		existing := t.records[fingerprint]
		clear(existing.visibleNodes)
		existing.closeDwell(now)
	}
	t.visibility.Disconnect()
	t.mutation.Disconnect()
	t.visibility, t.mutation = nil, nil
}

func (t *Tracker) observeSubtree(root *dom.Node) {
	for _, node := range dom.Select(root, keys(t.candidates)...) {
		t.visibility.Observe(node)
	}
}

func keys(set map[string]bool) []string {
	values := make([]string, 0, len(set))
	for value := range set {
		values = append(values, value)
	}
	return values
}

func (t *Tracker) onMutation(added []*dom.Node) {
	for _, node := range added {
		if node.Type == dom.ElementNode {
			t.observeSubtree(node)
		}
	}
}

func (t *Tracker) onVisibility(entries []dom.VisibilityEntry) {
	for _, entry := range entries {
		if entry.Visible {
			t.enter(entry.Target, entry.Time)
			continue
		}
		t.exit(entry.Target, entry.Time)
	}
}

// enter handles a node becoming visible.
func (t *Tracker) enter(node *dom.Node, now time.Time) {
	fingerprint, known := t.fingerprints[node]
	if !known {
		fingerprint = Fingerprint(node, t.stripped)
		if fingerprint == "" {
			return
		}
		t.fingerprints[node] = fingerprint
		t.listen(node, fingerprint)
	}

	existing, seen := t.records[fingerprint]
	if !seen {
		existing = &record{
			element: Element{
				Fingerprint: fingerprint,
				UUID:        uuid.NewString(),
				XPath:       node.XPath(),
				Tag:         node.Tag,
				Text:        describe(node, t.stripped),
				FirstSeen:   now,
			},
			visibleNodes: make(map[*dom.Node]bool),
		}
		t.records[fingerprint] = existing
		t.order = append(t.order, fingerprint)
		t.logger.Debug("element tracked", "fingerprint", fingerprint, "xpath", existing.element.XPath)
	}
	if !known {
		existing.nodes = append(existing.nodes, node)
	}

	existing.visibleNodes[node] = true
	if !existing.element.Visible {
		existing.element.Visible = true
		existing.element.VisibleSince = now
	}
}

// exit handles a node leaving the viewport. The dwell interval closes
// when the record's last visible node leaves.
func (t *Tracker) exit(node *dom.Node, now time.Time) {
	fingerprint, known := t.fingerprints[node]
	if !known {
		return
	}
	existing := t.records[fingerprint]
	delete(existing.visibleNodes, node)
	if len(existing.visibleNodes) == 0 {
		existing.closeDwell(now)
	}
}

func (r *record) closeDwell(now time.Time) {
	if !r.element.Visible {
		return
	}
	r.element.DwellDuration += nonNegative(now.Sub(r.element.VisibleSince))
	r.element.Visible = false
	r.element.VisibleSince = time.Time{}
}

// listen attaches the hover and click listeners for node.
func (t *Tracker) listen(node *dom.Node, fingerprint string) {
	node.AddEventListener("mouseenter", func(event dom.Event) {
		existing := t.records[fingerprint]
		if existing == nil || !existing.element.HoverStart.IsZero() {
			return
		}
		existing.element.HoverStart = event.Time
	})
	node.AddEventListener("mouseleave", func(event dom.Event) {
		existing := t.records[fingerprint]
		if existing == nil || existing.element.HoverStart.IsZero() {
			return
		}
		existing.element.HoverDuration += nonNegative(event.Time.Sub(existing.element.HoverStart))
		existing.element.HoverStart = time.Time{}
	})
	node.AddEventListener("click", func(dom.Event) {
		if existing := t.records[fingerprint]; existing != nil {
			existing.element.ClickCount++
		}
	})
}

// Highlight records an external highlight of node's content. Returns
// false if node's fingerprint is not tracked.
func (t *Tracker) Highlight(node *dom.Node) bool {
	fingerprint, known := t.fingerprints[node]
	if !known {
		fingerprint = Fingerprint(node, t.stripped)
	}
	existing := t.records[fingerprint]
	if existing == nil {
		return false
	}
	existing.element.HighlightCount++
	return true
}

// Gaze fuses one prediction with the tracked elements and returns the
// fingerprints hit. A nil point is ignored.
func (t *Tracker) Gaze(point *protocol.Point) []string {
	if point == nil {
		return nil
	}
	viewport := t.document.Viewport()
	scrollX, scrollY := t.document.Scroll()
	x := clamp(point.X, 0, viewport.Width) + scrollX
	y := clamp(point.Y, 0, viewport.Height) + scrollY

	var hits []string
	lit := make(map[*dom.Node]bool)
	for _, fingerprint := range t.order {
		existing := t.records[fingerprint]
		hit := false
		for _, node := range existing.nodes {
			box := node.Rect()
			if box.Empty() || !box.Contains(x, y) {
				continue
			}
			hit = true
			lit[node] = true
			if _, already := t.highlighted[node]; !already {
				t.highlighted[node] = node.Style("background-color")
				node.SetStyle("background-color", t.highlightColor)
			}
		}
		if hit {
			existing.element.GazeHits++
			hits = append(hits, fingerprint)
		}
	}

	for node, previous := range t.highlighted {
		if lit[node] {
			continue
		}
		node.SetStyle("background-color", previous)
		delete(t.highlighted, node)
	}
	return hits
}

// Elements returns copies of every record in first-seen order.
func (t *Tracker) Elements() []Element {
	elements := make([]Element, 0, len(t.order))
	for _, fingerprint := range t.order {
		elements = append(elements, t.records[fingerprint].element)
	}
	return elements
}

// Element returns a copy of the record for fingerprint.
func (t *Tracker) Element(fingerprint string) (Element, bool) {
	existing, ok := t.records[fingerprint]
	if !ok {
		return Element{}, false
	}
	return existing.element, true
}

// Observed returns how many nodes the visibility observer watches.
func (t *Tracker) Observed() int {
	if t.visibility == nil {
		return 0
	}
	return t.visibility.Observed()
}

func describe(node *dom.Node, stripped map[string]bool) string {
	if node.Tag == "img" {
		if alt := node.Attribute("alt"); alt != "" {
			return alt
		}
		return node.Attribute("src")
	}
	return node.TextExcluding(stripped)
}

func nonNegative(duration time.Duration) time.Duration {
	return max(duration, 0)
}

func clamp(value, low, high float64) float64 {
	return max(low, min(value, high))
}
