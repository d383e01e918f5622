// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/gazeflow/bus"
	"github.com/bureau-foundation/gazeflow/lib/clock"
	"github.com/bureau-foundation/gazeflow/protocol"
)

// State is a page's view of the camera permission. It starts Unknown in
// every page instance; grants are not carried across reloads.
type State string

const (
	Unknown    State = "unknown"
	Requesting State = "requesting"
	Granted    State = "granted"
	Denied     State = "denied"
)

// Frame is an embedded consent frame.
type Frame interface {
	// Remove detaches the frame and stops its context.
	Remove() error
}

// Embedder embeds consent frames into a tab.
type Embedder interface {
	OpenFrame(ctx context.Context, tabID int, requestID string) (Frame, error)
}

// Config configures NewBroker.
type Config struct {
	// Port is the page context's bus port.
	Port bus.Port

	// TabID is the tab the page runs in; frames are embedded there.
	TabID int

	Embedder Embedder
	Clock    clock.Clock

	// Timeout bounds the wait for a consent frame's answer. Zero waits
	// until the caller's context ends.
	Timeout time.Duration

	Logger *slog.Logger
}

// Broker runs permission requests for one page. Safe for concurrent
// use.
type Broker struct {
	port     bus.Port
	tabID    int
	embedder Embedder
	clock    clock.Clock
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	pending map[string]chan protocol.ConsentResult
}

// NewBroker creates a broker in the Unknown state.
func NewBroker(config Config) (*Broker, error) {
	if config.Port == nil || config.Embedder == nil {
		return nil, errors.New("permission: Port and Embedder are required")
	}
	brokerClock := config.Clock
	if brokerClock == nil {
		brokerClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Broker{
		port:     config.Port,
		tabID:    config.TabID,
		embedder: config.Embedder,
		clock:    brokerClock,
		timeout:  config.Timeout,
		logger:   logger.With("component", "permission", "tab", config.TabID),
		state:    Unknown,
		pending:  make(map[string]chan protocol.ConsentResult),
	}, nil
}

// State returns the current permission state.
func (b *Broker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Broker) setState(state State) {
	b.mu.Lock()
	b.state = state
	b.mu.Unlock()
}

// Pending returns the number of consent frames awaiting an answer.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Request obtains consent. Returns nil when granted, a *DeniedError
// when refused, ErrTimeout when the consent frame never answered, or
// the error that kept the consent frame from opening.
func (b *Broker) Request(ctx context.Context) error {
	b.setState(Requesting)

	granted, reason := b.checkCaptureHost(ctx)
	if granted {
		b.setState(Granted)
		b.logger.Debug("permission already granted")
		return nil
	}
	b.logger.Debug("permission not confirmed by capture host, opening consent frame", "reason", reason)

	err := b.requestConsent(ctx)
	switch {
	case err == nil:
		b.setState(Granted)
	case IsDenied(err):
		b.setState(Denied)
	default:
		b.setState(Unknown)
	}
	return err
}

// checkCaptureHost asks the capture host whether the permission is
// granted. Any failure to get an answer counts as not granted.
func (b *Broker) checkCaptureHost(ctx context.Context) (bool, string) {
	reply, err := b.port.Request(ctx, protocol.MustEncode(protocol.CheckPermission{}, bus.CaptureHost))
	if err != nil {
		return false, err.Error()
	}
	result, err := protocol.DecodeResult(reply)
	if err != nil {
		return false, err.Error()
	}
	check, ok := result.(protocol.CheckPermissionResult)
	if !ok {
		return false, fmt.Sprintf("unexpected reply %s", reply.Type)
	}
	return check.Granted, check.Reason
}

func (b *Broker) requestConsent(ctx context.Context) error {
	requestID := uuid.NewString()
	results := make(chan protocol.ConsentResult, 1)

	b.mu.Lock()
	b.pending[requestID] = results
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, requestID)
		b.mu.Unlock()
	}()

	frame, err := b.embedder.OpenFrame(ctx, b.tabID, requestID)
	if err != nil {
		return fmt.Errorf("opening consent frame: %w", err)
	}
	defer func() {
		if err := frame.Remove(); err != nil {
			b.logger.Warn("removing consent frame failed", "request", requestID, "error", err)
		}
	}()

	var timeout <-chan time.Time
	if b.timeout > 0 {
		timeout = b.clock.After(b.timeout)
	}

	select {
	case result := <-results:
		if !result.Granted {
			return &DeniedError{Reason: result.Reason}
		}
		return nil
	case <-timeout:
		return fmt.Errorf("waiting for consent frame %s: %w", requestID, ErrTimeout)
	case <-ctx.Done():
		return fmt.Errorf("waiting for consent frame %s: %w", requestID, ctx.Err())
	}
}

// Deliver routes a consent frame's answer to the request it belongs to.
// Returns false for unknown or already-answered request ids.
func (b *Broker) Deliver(result protocol.ConsentResult) bool {
	b.mu.Lock()
	results, ok := b.pending[result.RequestID]
	if ok {
		delete(b.pending, result.RequestID)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Debug("ignoring consent result for unknown request", "request", result.RequestID)
		return false
	}
	results <- result
	return true
}
