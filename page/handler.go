// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"errors"

	"github.com/bureau-foundation/gazeflow/bus"
	"github.com/bureau-foundation/gazeflow/protocol"
	"github.com/bureau-foundation/gazeflow/reveal"
)

// handle is the page's bus handler.
func (p *Page) handle(delivery *bus.Delivery) bool {
	message, err := protocol.Decode(delivery.Envelope)
	if err != nil {
		p.logger.Warn("dropping message", "sender", delivery.Sender, "type", delivery.Envelope.Type, "error", err)
		return false
	}
	switch message := message.(type) {
	case protocol.Command:
		return protocol.VisitCommand[bool](message, &commandHandler{page: p, delivery: delivery})
	case protocol.Result:
		return protocol.VisitResult[bool](message, &resultHandler{page: p})
	case protocol.Event:
		return protocol.VisitEvent[bool](message, &eventHandler{page: p})
	}
	return false
}

type commandHandler struct {
	page     *Page
	delivery *bus.Delivery
}

// PromptPermission runs the broker off the handler goroutine so the
// consent result can be delivered while the prompt waits for it.
func (h *commandHandler) PromptPermission(command protocol.PromptPermission) bool {
	page, delivery := h.page, h.delivery
	go func() {
		result := protocol.PermissionResult{RequestID: command.RequestID, Status: protocol.Success}
		if err := page.RequestPermission(page.ctx); err != nil {
			result.Status = protocol.Failure
			result.Reason = err.Error()
			page.logger.Warn("permission not granted", "request", command.RequestID, "error", err)
		}
		reply := protocol.MustEncode(result, delivery.Sender)
		if delivery.ExpectsReply() {
			delivery.Reply(reply)
			return
		}
		if endpoint := page.endpoint.Load(); endpoint != nil {
			if err := endpoint.Send(reply); err != nil {
				page.logger.Warn("reporting permission result failed", "error", err)
			}
		}
	}()
	return delivery.ExpectsReply()
}

func (h *commandHandler) ToggleReveal(command protocol.ToggleReveal) bool {
	// The overlay logs its own refusal on a loading page.
	if err := h.page.SetReveal(command.Action); err != nil && !errors.Is(err, reveal.ErrNotReady) {
		h.page.logger.Warn("dropping reveal toggle", "error", err)
	}
	return false
}

func (h *commandHandler) ToggleCapture(protocol.ToggleCapture) bool     { return false }
func (h *commandHandler) CheckPermission(protocol.CheckPermission) bool { return false }
func (h *commandHandler) StartCapture(protocol.StartCapture) bool       { return false }
func (h *commandHandler) StopCapture(protocol.StopCapture) bool         { return false }

type resultHandler struct {
	page *Page
}

func (h *resultHandler) ConsentResult(result protocol.ConsentResult) bool {
	if broker := h.page.broker.Load(); broker != nil {
		broker.Deliver(result)
	}
	return false
}

func (h *resultHandler) PermissionResult(protocol.PermissionResult) bool           { return false }
func (h *resultHandler) CheckPermissionResult(protocol.CheckPermissionResult) bool { return false }

type eventHandler struct {
	page *Page
}

func (h *eventHandler) GazePrediction(event protocol.GazePrediction) bool {
	h.page.Gaze(event.Point)
	return false
}
