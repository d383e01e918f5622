// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tabs

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/gazeflow/lib/clock"
)

// FocusEvent is the kind of a focus history entry.
type FocusEvent string

const (
	Focused   FocusEvent = "focused"
	Unfocused FocusEvent = "unfocused"
)

// FocusRecord is one focus history entry.
type FocusRecord struct {
	Event     FocusEvent `cbor:"event"`
	Timestamp time.Time  `cbor:"timestamp"`
}

// Page is the latest page recorded for a tab.
type Page struct {
	URL       string    `cbor:"url"`
	Title     string    `cbor:"title"`
	Timestamp time.Time `cbor:"timestamp"`
}

// Record is everything known about one tab.
type Record struct {
	TabID        int           `cbor:"tab_id"`
	LatestPage   *Page         `cbor:"latest_page"`
	Closed       bool          `cbor:"closed"`
	FocusHistory []FocusRecord `cbor:"focus_history"`
}

func (r *Record) clone() Record {
	copied := Record{
		TabID:        r.TabID,
		Closed:       r.Closed,
		FocusHistory: append([]FocusRecord(nil), r.FocusHistory...),
	}
	if r.LatestPage != nil {
		page := *r.LatestPage
		copied.LatestPage = &page
	}
	return copied
}

// Config configures NewTracker.
type Config struct {
	Clock  clock.Clock
	Logger *slog.Logger

	// OnPage, if set, is called after every recorded page, outside the
	// tracker's lock. The history store subscribes here.
	OnPage func(tabID int, page Page)
}

// Tracker owns the tab records. Safe for concurrent use.
type Tracker struct {
	clock  clock.Clock
	logger *slog.Logger
	onPage func(tabID int, page Page)

	mu      sync.Mutex
	records map[int]*Record
}

// NewTracker creates an empty tracker.
func NewTracker(config Config) *Tracker {
	trackerClock := config.Clock
	if trackerClock == nil {
		trackerClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{
		clock:   trackerClock,
		logger:  logger.With("component", "tabs"),
		onPage:  config.OnPage,
		records: make(map[int]*Record),
	}
}

// AddTab creates an empty record for tabID. Does nothing if the tab is
// already known.
func (t *Tracker) AddTab(tabID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addLocked(tabID)
}

func (t *Tracker) addLocked(tabID int) *Record {
	if record, ok := t.records[tabID]; ok {
		return record
	}
	record := &Record{TabID: tabID}
	t.records[tabID] = record
	t.logger.Debug("tab initialized", "tab", tabID)
	return record
}

// CloseTab flags tabID closed. Unknown tabs are ignored.
func (t *Tracker) CloseTab(tabID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if record, ok := t.records[tabID]; ok {
		record.Closed = true
		t.logger.Debug("tab closed", "tab", tabID)
	}
}

// FocusTab appends a focused entry. Unknown tabs are ignored.
func (t *Tracker) FocusTab(tabID int) {
	t.appendFocus(tabID, Focused)
}

// UnfocusTab appends an unfocused entry. Unknown tabs are ignored.
func (t *Tracker) UnfocusTab(tabID int) {
	t.appendFocus(tabID, Unfocused)
}

func (t *Tracker) appendFocus(tabID int, event FocusEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[tabID]
	if !ok {
		return
	}
	record.FocusHistory = append(record.FocusHistory, FocusRecord{Event: event, Timestamp: t.clock.Now()})
	t.logger.Debug("tab focus changed", "tab", tabID, "event", event)
}

// UpdateTabURL records the page now shown in tabID, creating the tab
// first if it is unknown.
func (t *Tracker) UpdateTabURL(tabID int, url, title string) {
	page := Page{URL: url, Title: title, Timestamp: t.clock.Now()}

	t.mu.Lock()
	if _, known := t.records[tabID]; !known {
		t.logger.Debug("page recorded for unknown tab, initializing", "tab", tabID)
	}
	record := t.addLocked(tabID)
	recorded := page
	record.LatestPage = &recorded
	t.mu.Unlock()

	t.logger.Debug("tab page updated", "tab", tabID, "url", url)
	if t.onPage != nil {
		t.onPage(tabID, page)
	}
}

// Tab returns a copy of tabID's record, or false if it was never seen.
func (t *Tracker) Tab(tabID int) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[tabID]
	if !ok {
		return Record{}, false
	}
	return record.clone(), true
}

// Tabs returns copies of every record ordered by tab id, closed tabs
// included.
func (t *Tracker) Tabs() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	records := make([]Record, 0, len(t.records))
	for _, record := range t.records {
		records = append(records, record.clone())
	}
	sort.Slice(records, func(i, j int) bool { return records[i].TabID < records[j].TabID })
	return records
}
