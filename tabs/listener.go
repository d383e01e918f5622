// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tabs

import (
	"context"
	"log/slog"

	"github.com/bureau-foundation/gazeflow/host"
)

// Listener applies host tab events to a Tracker. It remembers the
// active tab so an activation can unfocus the previous one.
type Listener struct {
	tracker *Tracker
	logger  *slog.Logger

	activeTabID int
	hasActive   bool
}

// NewListener creates a listener feeding tracker.
func NewListener(tracker *Tracker, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Listener{tracker: tracker, logger: logger.With("component", "tabs")}
}

// Handle applies one event. Not safe for concurrent use; Run calls it
// from a single goroutine.
func (l *Listener) Handle(event host.TabEvent) {
	switch event.Kind {
	case host.TabCreated:
		l.tracker.AddTab(event.TabID)

	case host.TabRemoved:
		l.tracker.CloseTab(event.TabID)
		if l.hasActive && l.activeTabID == event.TabID {
			l.hasActive = false
		}

	case host.TabActivated:
		if l.hasActive && l.activeTabID == event.TabID {
			return
		}
		if l.hasActive {
			l.tracker.UnfocusTab(l.activeTabID)
		}
		l.tracker.AddTab(event.TabID)
		l.tracker.FocusTab(event.TabID)
		l.activeTabID, l.hasActive = event.TabID, true

	case host.TabUpdated:
		// Only finished navigations carry a trustworthy title.
		if event.Status != host.StatusComplete {
			return
		}
		l.tracker.UpdateTabURL(event.TabID, event.URL, event.Title)

	default:
		l.logger.Warn("ignoring unknown tab event", "kind", event.Kind, "tab", event.TabID)
	}
}

// Run handles events until the channel closes or ctx ends.
func (l *Listener) Run(ctx context.Context, events <-chan host.TabEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			l.Handle(event)
		}
	}
}
