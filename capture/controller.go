// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/gazeflow/bus"
	"github.com/bureau-foundation/gazeflow/protocol"
)

// DefaultPermissionName is the permission CHECK_PERMISSION queries when
// Config.PermissionName is empty.
const DefaultPermissionName = "camera"

// queryTimeout bounds a CHECK_PERMISSION answer.
const queryTimeout = 5 * time.Second

// Config configures NewController.
type Config struct {
	Devices     MediaDevices
	Permissions Permissions
	Engine      Engine

	// VideoWidth and VideoHeight are the requested frame size.
	// Default 1280x720.
	VideoWidth  int
	VideoHeight int

	PermissionName string

	Logger *slog.Logger
}

// Controller is the capture host context.
type Controller struct {
	devices        MediaDevices
	permissions    Permissions
	engine         Engine
	constraints    Constraints
	permissionName string
	logger         *slog.Logger

	endpoint atomic.Pointer[bus.Endpoint]
	ctx      context.Context

	mu      sync.Mutex
	stream  Stream
	running bool
}

// NewController creates a controller and installs its prediction
// listener on the engine.
func NewController(config Config) (*Controller, error) {
	if config.Devices == nil || config.Permissions == nil || config.Engine == nil {
		return nil, errors.New("capture: Devices, Permissions and Engine are required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	width, height := config.VideoWidth, config.VideoHeight
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}
	permissionName := config.PermissionName
	if permissionName == "" {
		permissionName = DefaultPermissionName
	}

	controller := &Controller{
		devices:     config.Devices,
		permissions: config.Permissions,
		engine:      config.Engine,
		constraints: Constraints{
			Video: VideoConstraints{Width: width, Height: height},
			Audio: false,
		},
		permissionName: permissionName,
		logger:         logger.With("component", "capture"),
		ctx:            context.Background(),
	}
	config.Engine.SetPredictionListener(controller.forward)
	return controller, nil
}

// Attach registers the controller as the capture host context. ctx
// bounds every device call made on behalf of a message.
func (c *Controller) Attach(ctx context.Context, memory *bus.Memory) (*bus.Endpoint, error) {
	c.ctx = ctx
	endpoint, err := memory.Register(bus.CaptureHost, c.handle)
	if err != nil {
		return nil, fmt.Errorf("attaching capture host: %w", err)
	}
	c.endpoint.Store(endpoint)
	return endpoint, nil
}

// Close stops capture and unregisters the capture host context. Used
// as the capture document's closer.
func (c *Controller) Close() error {
	c.Stop()
	if endpoint := c.endpoint.Swap(nil); endpoint != nil {
		endpoint.Close()
	}
	return nil
}

// handle is the capture host's bus handler. Only envelopes addressed to
// the capture host are acted on.
func (c *Controller) handle(delivery *bus.Delivery) bool {
	if delivery.Envelope.Target != bus.CaptureHost {
		return false
	}
	command, err := protocol.DecodeCommand(delivery.Envelope)
	if err != nil {
		c.logger.Warn("dropping message", "sender", delivery.Sender, "type", delivery.Envelope.Type, "error", err)
		return false
	}
	return protocol.VisitCommand[bool](command, &commandHandler{controller: c, delivery: delivery})
}

// commandHandler dispatches one delivery. Commands meant for other
// contexts are declined.
type commandHandler struct {
	controller *Controller
	delivery   *bus.Delivery
}

func (h *commandHandler) StartCapture(protocol.StartCapture) bool {
	if err := h.controller.Start(h.controller.ctx); err != nil {
		h.controller.logger.Error("starting capture failed", "error", err)
	}
	return false
}

func (h *commandHandler) StopCapture(protocol.StopCapture) bool {
	h.controller.Stop()
	return false
}

func (h *commandHandler) CheckPermission(command protocol.CheckPermission) bool {
	if !h.delivery.ExpectsReply() {
		return false
	}
	go func() {
		ctx, cancel := context.WithTimeout(h.controller.ctx, queryTimeout)
		defer cancel()
		result := h.controller.CheckPermission(ctx, command.Name)
		h.delivery.Reply(protocol.MustEncode(result, h.delivery.Sender))
	}()
	return true
}

func (h *commandHandler) ToggleCapture(protocol.ToggleCapture) bool       { return false }
func (h *commandHandler) ToggleReveal(protocol.ToggleReveal) bool         { return false }
func (h *commandHandler) PromptPermission(protocol.PromptPermission) bool { return false }

// Start opens the camera and begins the engine. Starting a running
// controller does nothing.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.logger.Debug("capture already running")
		return nil
	}

	stream, err := c.devices.GetUserMedia(ctx, c.constraints)
	if err != nil {
		return fmt.Errorf("opening camera: %w", err)
	}
	if err := c.engine.Begin(ctx, stream); err != nil {
		stream.Stop()
		return fmt.Errorf("beginning engine: %w", err)
	}
	c.stream = stream
	c.running = true
	c.logger.Info("capture started",
		"width", c.constraints.Video.Width,
		"height", c.constraints.Video.Height,
	)
	return nil
}

// Stop pauses the engine and releases the camera. Stopping an idle
// controller does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.engine.Pause()
	c.stream.Stop()
	c.stream = nil
	c.running = false
	c.logger.Info("capture stopped")
}

// Running reports whether the engine is producing predictions.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// CheckPermission queries the device permission. An empty name uses
// the configured permission name.
func (c *Controller) CheckPermission(ctx context.Context, name string) protocol.CheckPermissionResult {
	if name == "" {
		name = c.permissionName
	}
	state, err := c.permissions.Query(ctx, name)
	if err != nil {
		c.logger.Warn("permission query failed", "permission", name, "error", err)
		return protocol.CheckPermissionResult{Reason: err.Error()}
	}
	if state != PermissionGranted {
		c.logger.Debug("permission not granted", "permission", name, "state", state)
		return protocol.CheckPermissionResult{Reason: string(state)}
	}
	return protocol.CheckPermissionResult{Granted: true}
}

// forward is the engine's prediction listener.
func (c *Controller) forward(point *protocol.Point) {
	if point == nil {
		return
	}
	endpoint := c.endpoint.Load()
	if endpoint == nil {
		return
	}
	prediction := *point
	err := endpoint.Send(protocol.MustEncode(protocol.GazePrediction{Point: &prediction}, ""))
	if err != nil && !errors.Is(err, bus.ErrClosed) {
		c.logger.Debug("prediction not delivered", "error", err)
	}
}
