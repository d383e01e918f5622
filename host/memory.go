// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNoTab is returned for operations on a tab id the host does
	// not know.
	ErrNoTab = errors.New("no such tab")

	// ErrDocumentExists is returned by CreateDocument while a capture
	// document is open. Only one may exist at a time.
	ErrDocumentExists = errors.New("only a single capture document may be created")

	// ErrNoDocument is returned by CloseDocument when nothing is open.
	ErrNoDocument = errors.New("no capture document open")
)

// TabStatus is a tab's navigation status.
type TabStatus string

const (
	StatusLoading  TabStatus = "loading"
	StatusComplete TabStatus = "complete"
)

// Tab is the host's view of one tab.
type Tab struct {
	ID     int
	URL    string
	Title  string
	Status TabStatus
	Active bool
}

// TabEventKind names a tab lifecycle event.
type TabEventKind string

const (
	TabCreated   TabEventKind = "created"
	TabRemoved   TabEventKind = "removed"
	TabActivated TabEventKind = "activated"
	TabUpdated   TabEventKind = "updated"
)

// TabEvent is one tab lifecycle notification. URL, Title and Status
// are set for TabUpdated.
type TabEvent struct {
	Kind   TabEventKind
	TabID  int
	URL    string
	Title  string
	Status TabStatus
}

// DocumentLauncher starts the capture host document at path.
type DocumentLauncher func(ctx context.Context, path string) (io.Closer, error)

// FrameLauncher starts a consent frame embedded in tabID for requestID.
type FrameLauncher func(ctx context.Context, tabID int, requestID string) (io.Closer, error)

// Config configures NewMemory.
type Config struct {
	LaunchDocument DocumentLauncher
	LaunchFrame    FrameLauncher

	// EventBuffer bounds each tab event subscription. Events for a
	// full subscription are dropped. Defaults to 64.
	EventBuffer int

	Logger *slog.Logger
}

// Memory is the in-process host. Safe for concurrent use.
type Memory struct {
	launchDocument DocumentLauncher
	launchFrame    FrameLauncher
	eventBuffer    int
	logger         *slog.Logger

	mu          sync.Mutex
	tabs        map[int]*Tab
	nextTabID   int
	activeTabID int
	subscribers map[int]chan TabEvent
	nextSubID   int

	document     io.Closer
	documentPath string
	creations    int

	frames  map[string]*Frame
	notices []string
}

// NewMemory creates a host with no tabs.
func NewMemory(config Config) *Memory {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	eventBuffer := config.EventBuffer
	if eventBuffer <= 0 {
		eventBuffer = 64
	}
	return &Memory{
		launchDocument: config.LaunchDocument,
		launchFrame:    config.LaunchFrame,
		eventBuffer:    eventBuffer,
		logger:         logger.With("component", "host"),
		tabs:           make(map[int]*Tab),
		nextTabID:      1,
		subscribers:    make(map[int]chan TabEvent),
		frames:         make(map[string]*Frame),
	}
}

// SubscribeTabs returns a channel of tab events and a function that
// ends the subscription and closes the channel.
func (m *Memory) SubscribeTabs() (<-chan TabEvent, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	events := make(chan TabEvent, m.eventBuffer)
	m.subscribers[id] = events

	var once sync.Once
	return events, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
			close(events)
		})
	}
}

// emitLocked fans an event out to every subscriber. Callers hold m.mu.
func (m *Memory) emitLocked(event TabEvent) {
	for _, events := range m.subscribers {
		select {
		case events <- event:
		default:
			m.logger.Warn("tab event subscriber full, dropping event", "kind", event.Kind, "tab", event.TabID)
		}
	}
}

// CreateTab opens a tab navigating to url and returns its id.
func (m *Memory) CreateTab(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextTabID
	m.nextTabID++
	m.tabs[id] = &Tab{ID: id, URL: url, Status: StatusLoading}
	m.emitLocked(TabEvent{Kind: TabCreated, TabID: id})
	m.emitLocked(TabEvent{Kind: TabUpdated, TabID: id, URL: url, Status: StatusLoading})
	return id
}

// Navigate starts loading url in an existing tab.
func (m *Memory) Navigate(tabID int, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab, ok := m.tabs[tabID]
	if !ok {
		return fmt.Errorf("navigating tab %d: %w", tabID, ErrNoTab)
	}
	tab.URL, tab.Title, tab.Status = url, "", StatusLoading
	m.emitLocked(TabEvent{Kind: TabUpdated, TabID: tabID, URL: url, Status: StatusLoading})
	return nil
}

// CompleteNavigation finishes loading a tab's page.
func (m *Memory) CompleteNavigation(tabID int, url, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab, ok := m.tabs[tabID]
	if !ok {
		return fmt.Errorf("completing navigation of tab %d: %w", tabID, ErrNoTab)
	}
	tab.URL, tab.Title, tab.Status = url, title, StatusComplete
	m.emitLocked(TabEvent{Kind: TabUpdated, TabID: tabID, URL: url, Title: title, Status: StatusComplete})
	return nil
}

// ActivateTab makes tabID the active tab.
func (m *Memory) ActivateTab(tabID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab, ok := m.tabs[tabID]
	if !ok {
		return fmt.Errorf("activating tab %d: %w", tabID, ErrNoTab)
	}
	if previous, ok := m.tabs[m.activeTabID]; ok {
		previous.Active = false
	}
	tab.Active = true
	m.activeTabID = tabID
	m.emitLocked(TabEvent{Kind: TabActivated, TabID: tabID})
	return nil
}

// RemoveTab closes a tab. Removing the active tab leaves no tab active.
func (m *Memory) RemoveTab(tabID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tabs[tabID]; !ok {
		return fmt.Errorf("removing tab %d: %w", tabID, ErrNoTab)
	}
	delete(m.tabs, tabID)
	if m.activeTabID == tabID {
		m.activeTabID = 0
	}
	m.emitLocked(TabEvent{Kind: TabRemoved, TabID: tabID})
	return nil
}

// ActiveTab returns the active tab, or false when there is none.
func (m *Memory) ActiveTab(ctx context.Context) (Tab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab, ok := m.tabs[m.activeTabID]
	if !ok {
		return Tab{}, false
	}
	return *tab, true
}

// Tabs returns every open tab ordered by id.
func (m *Memory) Tabs() []Tab {
	m.mu.Lock()
	defer m.mu.Unlock()

	tabs := make([]Tab, 0, len(m.tabs))
	for _, tab := range m.tabs {
		tabs = append(tabs, *tab)
	}
	sort.Slice(tabs, func(i, j int) bool { return tabs[i].ID < tabs[j].ID })
	return tabs
}

// HasDocument reports whether an open capture document's path ends
// with path.
func (m *Memory) HasDocument(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.document != nil && strings.HasSuffix(m.documentPath, path), nil
}

// CreateDocument launches the capture host document. Fails with
// ErrDocumentExists while one is open.
func (m *Memory) CreateDocument(ctx context.Context, path string) error {
	m.mu.Lock()
	if m.document != nil {
		m.mu.Unlock()
		return fmt.Errorf("creating %s: %w", path, ErrDocumentExists)
	}
	if m.launchDocument == nil {
		m.mu.Unlock()
		return fmt.Errorf("creating %s: no document launcher configured", path)
	}
	m.creations++
	m.mu.Unlock()

	document, err := m.launchDocument(ctx, path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.document != nil {
		document.Close()
		return fmt.Errorf("creating %s: %w", path, ErrDocumentExists)
	}
	m.document = document
	m.documentPath = path
	m.logger.Info("capture document created", "path", path)
	return nil
}

// CloseDocument closes the capture host document.
func (m *Memory) CloseDocument(ctx context.Context) error {
	m.mu.Lock()
	document := m.document
	path := m.documentPath
	m.document = nil
	m.documentPath = ""
	m.mu.Unlock()

	if document == nil {
		return ErrNoDocument
	}
	if err := document.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	m.logger.Info("capture document closed", "path", path)
	return nil
}

// DocumentCreations returns how many times CreateDocument reached the
// launcher.
func (m *Memory) DocumentCreations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creations
}

// Alert shows a blocking notice. The in-process host logs and records
// it.
func (m *Memory) Alert(message string) {
	m.mu.Lock()
	m.notices = append(m.notices, message)
	m.mu.Unlock()
	m.logger.Warn("notice shown", "message", message)
}

// Notices returns every message passed to Alert, oldest first.
func (m *Memory) Notices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.notices...)
}
