// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"errors"

	"github.com/bureau-foundation/gazeflow/bus"
	"github.com/bureau-foundation/gazeflow/protocol"
)

// handle is the coordinator's bus handler. Failures are logged and the
// message dropped; nothing is reported back to the control surface.
func (c *Coordinator) handle(delivery *bus.Delivery) bool {
	if target := delivery.Envelope.Target; target != "" && target != bus.Coordinator {
		return false
	}
	message, err := protocol.Decode(delivery.Envelope)
	if err != nil {
		c.logger.Warn("dropping message", "sender", delivery.Sender, "type", delivery.Envelope.Type, "error", err)
		return false
	}
	switch message := message.(type) {
	case protocol.Command:
		return protocol.VisitCommand[bool](message, commandHandler{coordinator: c})
	case protocol.Event:
		return protocol.VisitEvent[bool](message, eventHandler{coordinator: c})
	}
	return false
}

type commandHandler struct {
	coordinator *Coordinator
}

func (h commandHandler) ToggleCapture(command protocol.ToggleCapture) bool {
	c := h.coordinator
	switch command.Action {
	case protocol.Start:
		// START waits on the page and the host; run it off the handler
		// so predictions keep flowing meanwhile.
		go func() {
			err := c.Start(c.ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrNoActiveTab):
				c.logger.Warn("capture not started: no active tab")
			case errors.Is(err, ErrPermissionDenied):
				c.logger.Warn("capture not started: permission denied", "error", err)
			default:
				c.logger.Error("capture not started", "error", err)
			}
		}()
	case protocol.Stop:
		if err := c.Stop(c.ctx); err != nil {
			c.logger.Error("capture not stopped", "error", err)
		}
	default:
		c.logger.Warn("dropping capture toggle", "action", command.Action)
	}
	return false
}

func (h commandHandler) ToggleReveal(command protocol.ToggleReveal) bool {
	if err := h.coordinator.ToggleReveal(h.coordinator.ctx, command.Action); err != nil {
		h.coordinator.logger.Warn("reveal toggle not delivered", "action", command.Action, "error", err)
	}
	return false
}

func (commandHandler) PromptPermission(protocol.PromptPermission) bool { return false }
func (commandHandler) CheckPermission(protocol.CheckPermission) bool   { return false }
func (commandHandler) StartCapture(protocol.StartCapture) bool         { return false }
func (commandHandler) StopCapture(protocol.StopCapture) bool           { return false }

type eventHandler struct {
	coordinator *Coordinator
}

func (h eventHandler) GazePrediction(prediction protocol.GazePrediction) bool {
	h.coordinator.RelayPrediction(h.coordinator.ctx, prediction)
	return false
}
