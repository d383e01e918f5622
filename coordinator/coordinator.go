// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/gazeflow/bus"
	"github.com/bureau-foundation/gazeflow/host"
	"github.com/bureau-foundation/gazeflow/lib/clock"
	"github.com/bureau-foundation/gazeflow/protocol"
)

// State is the lifecycle state of the capture host.
type State string

const (
	Absent   State = "absent"
	Creating State = "creating"
	Active   State = "active"
)

var (
	// ErrNoActiveTab is returned when an operation needs the active
	// tab and the host reports none.
	ErrNoActiveTab = errors.New("no active tab")

	// ErrPermissionDenied wraps a page's failed permission result.
	ErrPermissionDenied = errors.New("permission denied by page")

	// ErrTimeout is the cause of a permission or creation wait that
	// exceeded its configured timeout.
	ErrTimeout = errors.New("timed out")
)

// Host is the part of the host platform the coordinator drives.
// host.Memory implements it.
type Host interface {
	ActiveTab(ctx context.Context) (host.Tab, bool)
	HasDocument(ctx context.Context, path string) (bool, error)
	CreateDocument(ctx context.Context, path string) error
	CloseDocument(ctx context.Context) error
}

// Config configures New.
type Config struct {
	Host  Host
	Clock clock.Clock

	// PermissionTimeout bounds the wait for a page's permission
	// result. Zero waits until the caller's context ends.
	PermissionTimeout time.Duration

	// CreationTimeout bounds capture host creation. Zero waits until
	// the caller's context ends.
	CreationTimeout time.Duration

	// CaptureDocument is the capture host document path.
	CaptureDocument string

	Logger *slog.Logger
}

// Coordinator is the coordinator context. Safe for concurrent use.
type Coordinator struct {
	host              Host
	clock             clock.Clock
	permissionTimeout time.Duration
	creationTimeout   time.Duration
	captureDocument   string
	logger            *slog.Logger

	endpoint atomic.Pointer[bus.Endpoint]
	ctx      context.Context

	mu    sync.Mutex
	state State

	// creation is non-nil while state is Creating.
	creation *creation
}

// creation is one capture host creation attempt. err is written before
// done is closed.
type creation struct {
	done    chan struct{}
	err     error
	waiters int
}

// New creates a coordinator with the capture host Absent.
func New(config Config) (*Coordinator, error) {
	if config.Host == nil {
		return nil, errors.New("coordinator: Host is required")
	}
	if config.CaptureDocument == "" {
		return nil, errors.New("coordinator: CaptureDocument is required")
	}
	coordinatorClock := config.Clock
	if coordinatorClock == nil {
		coordinatorClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		host:              config.Host,
		clock:             coordinatorClock,
		permissionTimeout: config.PermissionTimeout,
		creationTimeout:   config.CreationTimeout,
		captureDocument:   config.CaptureDocument,
		logger:            logger.With("component", "coordinator"),
		ctx:               context.Background(),
		state:             Absent,
	}, nil
}

// Attach registers the coordinator context. ctx bounds the sequences
// started by messages.
func (c *Coordinator) Attach(ctx context.Context, memory *bus.Memory) (*bus.Endpoint, error) {
	c.ctx = ctx
	endpoint, err := memory.Register(bus.Coordinator, c.handle)
	if err != nil {
		return nil, fmt.Errorf("attaching coordinator: %w", err)
	}
	c.endpoint.Store(endpoint)
	return endpoint, nil
}

// State returns the capture host state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) port() (*bus.Endpoint, error) {
	endpoint := c.endpoint.Load()
	if endpoint == nil {
		return nil, errors.New("coordinator not attached")
	}
	return endpoint, nil
}

// Start runs the START sequence: resolve the active tab, obtain
// permission from its page, make sure the capture host exists, then
// tell it to start capturing. A refused permission returns
// ErrPermissionDenied without touching the capture host.
func (c *Coordinator) Start(ctx context.Context) error {
	endpoint, err := c.port()
	if err != nil {
		return err
	}
	tab, ok := c.host.ActiveTab(ctx)
	if !ok {
		return ErrNoActiveTab
	}

	if err := c.promptPermission(ctx, endpoint, tab.ID); err != nil {
		return err
	}
	if err := c.ensureCaptureHost(ctx); err != nil {
		return err
	}
	if err := endpoint.Send(protocol.MustEncode(protocol.StartCapture{}, bus.CaptureHost)); err != nil {
		return fmt.Errorf("sending START_CAPTURE: %w", err)
	}
	c.logger.Info("capture start requested", "tab", tab.ID)
	return nil
}

func (c *Coordinator) promptPermission(ctx context.Context, endpoint *bus.Endpoint, tabID int) error {
	ctx, cancel := c.withTimeout(ctx, c.permissionTimeout)
	defer cancel()

	requestID := uuid.NewString()
	reply, err := endpoint.Request(ctx, protocol.MustEncode(protocol.PromptPermission{RequestID: requestID}, bus.Page(tabID)))
	if err != nil {
		return fmt.Errorf("prompting permission in tab %d: %w", tabID, contextCause(ctx, err))
	}
	result, err := protocol.DecodeResult(reply)
	if err != nil {
		return fmt.Errorf("prompting permission in tab %d: %w", tabID, err)
	}
	permission, ok := result.(protocol.PermissionResult)
	if !ok {
		return fmt.Errorf("prompting permission in tab %d: unexpected reply %s", tabID, reply.Type)
	}
	if permission.Status != protocol.Success {
		return fmt.Errorf("%w: tab %d: %s", ErrPermissionDenied, tabID, permission.Reason)
	}
	return nil
}

// ensureCaptureHost brings the capture host to Active, creating it
// only from Absent.
func (c *Coordinator) ensureCaptureHost(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Active:
		c.mu.Unlock()
		return nil

	case Creating:
		attempt := c.creation
		attempt.waiters++
		c.mu.Unlock()
		c.logger.Debug("joining capture host creation in progress")
		select {
		case <-attempt.done:
			return attempt.err
		case <-ctx.Done():
			return fmt.Errorf("waiting for capture host creation: %w", ctx.Err())
		}
	}

	attempt := &creation{done: make(chan struct{})}
	c.state = Creating
	c.creation = attempt
	c.mu.Unlock()

	err := c.create(ctx)

	c.mu.Lock()
	if err == nil {
		c.state = Active
	} else {
		c.state = Absent
	}
	c.creation = nil
	attempt.err = err
	close(attempt.done)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("capture host creation failed", "error", err, "waiters", attempt.waiters)
		return err
	}
	c.logger.Info("capture host active", "document", c.captureDocument)
	return nil
}

func (c *Coordinator) create(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx, c.creationTimeout)
	defer cancel()

	exists, err := c.host.HasDocument(ctx, c.captureDocument)
	if err != nil {
		return fmt.Errorf("checking for capture host: %w", err)
	}
	if exists {
		c.logger.Debug("capture host already exists")
		return nil
	}

	result := make(chan error, 1)
	go func() { result <- c.host.CreateDocument(ctx, c.captureDocument) }()
	select {
	case err := <-result:
		if errors.Is(err, host.ErrDocumentExists) {
			c.logger.Debug("capture host created concurrently")
			return nil
		}
		if err != nil {
			return fmt.Errorf("creating capture host: %w", contextCause(ctx, err))
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("creating capture host: %w", context.Cause(ctx))
	}
}

// Stop forwards STOP_CAPTURE to the capture host. A missing capture
// host is not an error and the state is not changed.
func (c *Coordinator) Stop(ctx context.Context) error {
	endpoint, err := c.port()
	if err != nil {
		return err
	}
	err = endpoint.Send(protocol.MustEncode(protocol.StopCapture{}, bus.CaptureHost))
	if errors.Is(err, bus.ErrNoReceiver) {
		c.logger.Debug("stop requested with no capture host")
		return nil
	}
	if err != nil {
		return fmt.Errorf("sending STOP_CAPTURE: %w", err)
	}
	return nil
}

// ToggleReveal forwards a reveal toggle to the active tab's page.
func (c *Coordinator) ToggleReveal(ctx context.Context, action protocol.Action) error {
	if !action.Valid() {
		return fmt.Errorf("unknown reveal action %q", action)
	}
	endpoint, err := c.port()
	if err != nil {
		return err
	}
	tab, ok := c.host.ActiveTab(ctx)
	if !ok {
		return ErrNoActiveTab
	}
	if err := endpoint.Send(protocol.MustEncode(protocol.ToggleReveal{Action: action}, bus.Page(tab.ID))); err != nil {
		return fmt.Errorf("sending TOGGLE_REVEAL to tab %d: %w", tab.ID, err)
	}
	return nil
}

// RelayPrediction forwards a prediction to the active tab's page.
// Predictions that cannot be delivered are dropped; the return value
// reports whether it was handed to a page.
func (c *Coordinator) RelayPrediction(ctx context.Context, prediction protocol.GazePrediction) bool {
	if prediction.Point == nil {
		c.logger.Debug("dropping empty prediction")
		return false
	}
	endpoint, err := c.port()
	if err != nil {
		return false
	}
	tab, ok := c.host.ActiveTab(ctx)
	if !ok {
		c.logger.Debug("dropping prediction with no active tab")
		return false
	}
	if err := endpoint.Send(protocol.MustEncode(prediction, bus.Page(tab.ID))); err != nil {
		c.logger.Debug("dropping prediction", "tab", tab.ID, "error", err)
		return false
	}
	return true
}

// Install makes sure the capture host exists, as on first install.
func (c *Coordinator) Install(ctx context.Context) error {
	return c.ensureCaptureHost(ctx)
}

// Teardown closes the capture host document and returns the state to
// Absent. A creation in progress is waited for first.
func (c *Coordinator) Teardown(ctx context.Context) error {
	for {
		c.mu.Lock()
		attempt := c.creation
		if attempt == nil {
			c.state = Absent
			c.mu.Unlock()
			break
		}
		c.mu.Unlock()
		select {
		case <-attempt.done:
		case <-ctx.Done():
			return fmt.Errorf("waiting for capture host creation: %w", ctx.Err())
		}
	}

	err := c.host.CloseDocument(ctx)
	if errors.Is(err, host.ErrNoDocument) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("closing capture host: %w", err)
	}
	c.logger.Info("capture host torn down")
	return nil
}

// withTimeout derives a context cancelled with cause ErrTimeout after
// d on the coordinator's clock. A zero d only derives.
func (c *Coordinator) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(ctx)
	if d <= 0 {
		return ctx, func() { cancel(context.Canceled) }
	}
	timer := c.clock.AfterFunc(d, func() { cancel(ErrTimeout) })
	return ctx, func() {
		timer.Stop()
		cancel(context.Canceled)
	}
}

// contextCause prefers the cancellation cause of ctx over err when ctx
// ended, so timeouts read as ErrTimeout.
func contextCause(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
	}
	return err
}
