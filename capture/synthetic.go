// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bureau-foundation/gazeflow/lib/clock"
	"github.com/bureau-foundation/gazeflow/protocol"
)

// SyntheticConfig configures NewSyntheticEngine.
type SyntheticConfig struct {
	Clock clock.Clock

	// Interval between predictions.
	Interval time.Duration

	// Width and Height bound the walk, in viewport pixels.
	Width  float64
	Height float64

	// Step is the largest move per tick along each axis.
	Step float64

	// MissEvery makes every Nth tick report no estimate. Zero disables
	// misses.
	MissEvery int

	Seed uint64
}

// SyntheticEngine is an Engine producing a bounded random walk. The
// same seed yields the same sequence.
type SyntheticEngine struct {
	config SyntheticConfig

	mu       sync.Mutex
	random   *rand.Rand
	listener func(*protocol.Point)
	position protocol.Point
	ticks    int
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSyntheticEngine creates an engine positioned at the center of its
// bounds.
func NewSyntheticEngine(config SyntheticConfig) *SyntheticEngine {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Interval <= 0 {
		config.Interval = 100 * time.Millisecond
	}
	if config.Width <= 0 || config.Height <= 0 {
		config.Width, config.Height = 1280, 720
	}
	if config.Step <= 0 {
		config.Step = 40
	}
	return &SyntheticEngine{
		config:   config,
		random:   rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)),
		position: protocol.Point{X: config.Width / 2, Y: config.Height / 2},
	}
}

// SetPredictionListener installs the callback receiving predictions.
func (e *SyntheticEngine) SetPredictionListener(listener func(*protocol.Point)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = listener
}

// Begin starts producing predictions until Pause or ctx ends. Calling
// Begin while running does nothing.
func (e *SyntheticEngine) Begin(ctx context.Context, stream Stream) error {
	if stream == nil {
		return errors.New("synthetic engine: nil stream")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return nil
	}

	runContext, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	e.cancel = func() {
		stop()
		cancel()
	}
	e.done = make(chan struct{})
	go e.run(runContext, e.done)
	return nil
}

// Pause stops prediction and waits for the producing goroutine to
// exit. Pausing an idle engine does nothing.
func (e *SyntheticEngine) Pause() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Ticks returns how many predictions (including misses) were produced.
func (e *SyntheticEngine) Ticks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

func (e *SyntheticEngine) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := e.config.Clock.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			point, listener := e.next()
			if listener != nil {
				listener(point)
			}
		}
	}
}

// next advances the walk one step.
func (e *SyntheticEngine) next() (*protocol.Point, func(*protocol.Point)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ticks++
	if e.config.MissEvery > 0 && e.ticks%e.config.MissEvery == 0 {
		return nil, e.listener
	}
	step := e.config.Step
	e.position.X = clamp(e.position.X+(e.random.Float64()*2-1)*step, 0, e.config.Width)
	e.position.Y = clamp(e.position.Y+(e.random.Float64()*2-1)*step, 0, e.config.Height)
	point := e.position
	return &point, e.listener
}

func clamp(value, low, high float64) float64 {
	return max(low, min(value, high))
}
