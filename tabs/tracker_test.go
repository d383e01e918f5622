// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tabs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/gazeflow/host"
	"github.com/bureau-foundation/gazeflow/lib/clock"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func newTracker(t *testing.T) (*Tracker, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch)
	return NewTracker(Config{Clock: fake}), fake
}

func TestAddTabIdempotent(t *testing.T) {
	tracker, _ := newTracker(t)
	tracker.AddTab(1)
	tracker.FocusTab(1)
	tracker.AddTab(1)

	record, ok := tracker.Tab(1)
	if !ok {
		t.Fatal("tab 1 missing")
	}
	if len(record.FocusHistory) != 1 {
		t.Fatalf("second AddTab reset the record: %+v", record)
	}
}

func TestUnknownTabOperationsAreNoOps(t *testing.T) {
	tracker, _ := newTracker(t)
	tracker.CloseTab(5)
	tracker.FocusTab(5)
	tracker.UnfocusTab(5)

	if _, ok := tracker.Tab(5); ok {
		t.Fatal("operations on an unknown tab created it")
	}
	if len(tracker.Tabs()) != 0 {
		t.Fatalf("Tabs = %+v", tracker.Tabs())
	}
}

func TestUpdateTabURLSelfHeals(t *testing.T) {
	tracker, _ := newTracker(t)
	tracker.UpdateTabURL(99, "https://a", "A")

	record, ok := tracker.Tab(99)
	if !ok {
		t.Fatal("tab 99 not created")
	}
	if record.LatestPage == nil || record.LatestPage.URL != "https://a" || record.LatestPage.Title != "A" {
		t.Fatalf("LatestPage = %+v", record.LatestPage)
	}
	if !record.LatestPage.Timestamp.Equal(epoch) {
		t.Errorf("Timestamp = %v, want %v", record.LatestPage.Timestamp, epoch)
	}
	if record.Closed || len(record.FocusHistory) != 0 {
		t.Errorf("self-healed record = %+v", record)
	}
}

func TestCloseKeepsRecord(t *testing.T) {
	tracker, _ := newTracker(t)
	tracker.UpdateTabURL(2, "https://b", "B")
	tracker.CloseTab(2)
	tracker.CloseTab(2)

	record, ok := tracker.Tab(2)
	if !ok || !record.Closed {
		t.Fatalf("Tab(2) = %+v, %v", record, ok)
	}
	if record.LatestPage == nil {
		t.Error("closing dropped the latest page")
	}
}

func TestFocusHistoryTimestamps(t *testing.T) {
	tracker, fake := newTracker(t)
	tracker.AddTab(1)
	tracker.FocusTab(1)
	fake.Advance(1500 * time.Millisecond)
	tracker.UnfocusTab(1)

	record, _ := tracker.Tab(1)
	want := []FocusRecord{
		{Event: Focused, Timestamp: epoch},
		{Event: Unfocused, Timestamp: epoch.Add(1500 * time.Millisecond)},
	}
	if len(record.FocusHistory) != len(want) {
		t.Fatalf("FocusHistory = %+v", record.FocusHistory)
	}
	for i := range want {
		if record.FocusHistory[i].Event != want[i].Event || !record.FocusHistory[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("entry %d = %+v, want %+v", i, record.FocusHistory[i], want[i])
		}
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	tracker, _ := newTracker(t)
	tracker.UpdateTabURL(1, "https://a", "A")
	tracker.FocusTab(1)

	record, _ := tracker.Tab(1)
	record.LatestPage.URL = "mutated"
	record.FocusHistory[0].Event = Unfocused

	again, _ := tracker.Tab(1)
	if again.LatestPage.URL != "https://a" || again.FocusHistory[0].Event != Focused {
		t.Fatalf("caller mutation leaked into tracker: %+v", again)
	}
}

func TestOnPageObserver(t *testing.T) {
	var visits []string
	tracker := NewTracker(Config{
		Clock: clock.Fake(epoch),
		OnPage: func(tabID int, page Page) {
			visits = append(visits, page.URL)
		},
	})
	tracker.UpdateTabURL(1, "https://a", "A")
	tracker.UpdateTabURL(1, "https://b", "B")

	if len(visits) != 2 || visits[1] != "https://b" {
		t.Fatalf("visits = %v", visits)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	tracker, fake := newTracker(t)
	tracker.UpdateTabURL(3, "https://c", "C")
	tracker.AddTab(1)
	tracker.FocusTab(1)
	fake.Advance(250 * time.Millisecond)
	tracker.CloseTab(3)

	path := filepath.Join(t.TempDir(), "tabs.cbor")
	if err := tracker.WriteSnapshot(path); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	snapshot, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}

	if !snapshot.Taken.Equal(epoch.Add(250 * time.Millisecond)) {
		t.Errorf("Taken = %v", snapshot.Taken)
	}
	if len(snapshot.Tabs) != 2 || snapshot.Tabs[0].TabID != 1 || snapshot.Tabs[1].TabID != 3 {
		t.Fatalf("Tabs = %+v", snapshot.Tabs)
	}
	if !snapshot.Tabs[1].Closed || snapshot.Tabs[1].LatestPage.URL != "https://c" {
		t.Errorf("tab 3 = %+v", snapshot.Tabs[1])
	}
	if !snapshot.Tabs[0].FocusHistory[0].Timestamp.Equal(epoch) {
		t.Errorf("tab 1 focus = %+v", snapshot.Tabs[0].FocusHistory)
	}
}

func TestListenerMapsHostEvents(t *testing.T) {
	tracker, fake := newTracker(t)
	listener := NewListener(tracker, nil)

	events := make(chan host.TabEvent, 16)
	events <- host.TabEvent{Kind: host.TabCreated, TabID: 1}
	events <- host.TabEvent{Kind: host.TabUpdated, TabID: 1, URL: "https://a", Status: host.StatusLoading}
	events <- host.TabEvent{Kind: host.TabUpdated, TabID: 1, URL: "https://a/", Title: "A", Status: host.StatusComplete}
	events <- host.TabEvent{Kind: host.TabActivated, TabID: 1}
	events <- host.TabEvent{Kind: host.TabUpdated, TabID: 2, URL: "https://b", Title: "B", Status: host.StatusComplete}
	events <- host.TabEvent{Kind: host.TabActivated, TabID: 2}
	events <- host.TabEvent{Kind: host.TabActivated, TabID: 2}
	events <- host.TabEvent{Kind: host.TabRemoved, TabID: 1}
	close(events)

	fake.Advance(time.Second)
	if err := listener.Run(context.Background(), events); err != nil {
		t.Fatalf("Run: %v", err)
	}

	first, _ := tracker.Tab(1)
	if first.LatestPage == nil || first.LatestPage.Title != "A" {
		t.Errorf("loading update recorded or complete update lost: %+v", first.LatestPage)
	}
	if !first.Closed {
		t.Error("tab 1 not closed")
	}
	if len(first.FocusHistory) != 2 || first.FocusHistory[0].Event != Focused || first.FocusHistory[1].Event != Unfocused {
		t.Errorf("tab 1 focus history = %+v", first.FocusHistory)
	}

	second, ok := tracker.Tab(2)
	if !ok || second.LatestPage.URL != "https://b" {
		t.Fatalf("tab 2 = %+v, %v", second, ok)
	}
	if len(second.FocusHistory) != 1 {
		t.Errorf("repeated activation recorded twice: %+v", second.FocusHistory)
	}
}

func TestListenerStopsOnContext(t *testing.T) {
	tracker, _ := newTracker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewListener(tracker, nil).Run(ctx, make(chan host.TabEvent)); err != context.Canceled {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}
