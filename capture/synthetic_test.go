// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/gazeflow/lib/clock"
	"github.com/bureau-foundation/gazeflow/lib/testutil"
	"github.com/bureau-foundation/gazeflow/protocol"
)

func collectPredictions(t *testing.T, seed uint64, ticks int) []*protocol.Point {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	engine := NewSyntheticEngine(SyntheticConfig{
		Clock:     fake,
		Interval:  100 * time.Millisecond,
		Width:     200,
		Height:    100,
		Step:      30,
		MissEvery: 3,
		Seed:      seed,
	})

	var mu sync.Mutex
	var points []*protocol.Point
	received := make(chan struct{}, ticks)
	engine.SetPredictionListener(func(point *protocol.Point) {
		mu.Lock()
		points = append(points, point)
		mu.Unlock()
		received <- struct{}{}
	})

	if err := engine.Begin(context.Background(), &fakeStream{}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	fake.WaitForTimers(1)
	for i := range ticks {
		fake.Advance(100 * time.Millisecond)
		testutil.RequireReceive(t, received, waitTimeout, "tick %d", i)
	}
	engine.Pause()
	engine.Pause()

	if engine.Ticks() != ticks {
		t.Errorf("Ticks = %d, want %d", engine.Ticks(), ticks)
	}
	mu.Lock()
	defer mu.Unlock()
	return points
}

func TestSyntheticEngineWalk(t *testing.T) {
	points := collectPredictions(t, 7, 6)
	if len(points) != 6 {
		t.Fatalf("got %d predictions", len(points))
	}
	for i, point := range points {
		if (i+1)%3 == 0 {
			if point != nil {
				t.Errorf("tick %d = %+v, want a miss", i+1, point)
			}
			continue
		}
		if point == nil {
			t.Fatalf("tick %d missed unexpectedly", i+1)
		}
		if point.X < 0 || point.X > 200 || point.Y < 0 || point.Y > 100 {
			t.Errorf("tick %d out of bounds: %+v", i+1, point)
		}
	}
}

func TestSyntheticEngineDeterministic(t *testing.T) {
	first := collectPredictions(t, 42, 4)
	second := collectPredictions(t, 42, 4)
	for i := range first {
		if (first[i] == nil) != (second[i] == nil) {
			t.Fatalf("tick %d miss pattern differs", i)
		}
		if first[i] != nil && *first[i] != *second[i] {
			t.Fatalf("tick %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSyntheticEngineRequiresStream(t *testing.T) {
	engine := NewSyntheticEngine(SyntheticConfig{})
	if err := engine.Begin(context.Background(), nil); err == nil {
		t.Fatal("Begin accepted a nil stream")
	}
}
