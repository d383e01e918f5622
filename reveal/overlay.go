// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reveal

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bureau-foundation/gazeflow/dom"
	"github.com/bureau-foundation/gazeflow/protocol"
)

// LayerID is the id attribute of the overlay element while attached.
const LayerID = "gazeflow-fog"

// ErrNotReady is returned by Enable when the document has not reached
// the interactive ready state.
var ErrNotReady = errors.New("reveal: document not ready")

// Mark is one permanent cut-out, in document coordinates.
type Mark struct {
	X float64
	Y float64
}

// Config configures New.
type Config struct {
	Document *dom.Document

	// Radius of each cut-out in pixels.
	Radius float64

	// Blur is the standard deviation of the soft edge.
	Blur float64

	// Fill is the color of the darkened area.
	Fill string

	Logger *slog.Logger
}

// Overlay is the fog-of-war state machine for one document.
type Overlay struct {
	document *dom.Document
	radius   float64
	blur     float64
	fill     string
	logger   *slog.Logger

	active bool
	queued []Mark
	marks  []Mark
	size   dom.Size

	// layer is non-nil while attached.
	layer *dom.Node
}

// New creates an inactive overlay and subscribes it to the document's
// load, resize and scroll events.
func New(config Config) (*Overlay, error) {
	if config.Document == nil {
		return nil, errors.New("reveal: Document is required")
	}
	if config.Radius <= 0 {
		return nil, fmt.Errorf("reveal: Radius must be positive, got %g", config.Radius)
	}
	if config.Blur < 0 {
		return nil, fmt.Errorf("reveal: Blur must not be negative, got %g", config.Blur)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fill := config.Fill
	if fill == "" {
		fill = "rgba(0, 0, 0, 0.5)"
	}

	overlay := &Overlay{
		document: config.Document,
		radius:   config.Radius,
		blur:     config.Blur,
		fill:     fill,
		logger:   logger.With("component", "reveal"),
		size:     config.Document.ScrollSize(),
	}
	for _, kind := range []string{"load", "resize", "scroll"} {
		config.Document.AddWindowListener(kind, func(dom.Event) { overlay.Resize() })
	}
	return overlay, nil
}

// AddPrediction records a gaze position given in viewport coordinates.
// While active it becomes a mark immediately, otherwise it is queued.
// A nil point is ignored.
func (o *Overlay) AddPrediction(point *protocol.Point) {
	if point == nil {
		return
	}
	scrollX, scrollY := o.document.Scroll()
	mark := Mark{X: point.X + scrollX, Y: point.Y + scrollY}
	if !o.active {
		o.queued = append(o.queued, mark)
		return
	}
	o.marks = append(o.marks, mark)
	o.sync()
}

// Enable flushes queued predictions into marks and attaches the layer.
// On a document that is still loading the overlay disables itself and
// returns ErrNotReady; the queue is kept.
func (o *Overlay) Enable() error {
	if !o.document.ReadyState().Ready() {
		o.Disable()
		o.logger.Warn("reveal not enabled", "ready_state", string(o.document.ReadyState()))
		return ErrNotReady
	}
	o.active = true
	o.marks = append(o.marks, o.queued...)
	o.queued = nil
	o.attach()
	o.logger.Debug("reveal enabled", "marks", len(o.marks))
	return nil
}

// Disable detaches the layer. Marks are kept and later predictions
// queue until the next Enable.
func (o *Overlay) Disable() {
	o.active = false
	if o.layer == nil {
		return
	}
	o.document.RemoveChild(o.layer)
	o.layer = nil
	o.logger.Debug("reveal disabled", "marks", len(o.marks))
}

// Resize matches the overlay to the full scrollable extent of the
// document.
func (o *Overlay) Resize() {
	size := o.document.ScrollSize()
	if size == o.size {
		return
	}
	o.size = size
	o.sync()
}

// Active reports whether predictions become marks immediately.
func (o *Overlay) Active() bool { return o.active }

// Attached reports whether the layer is in the document.
func (o *Overlay) Attached() bool { return o.layer != nil }

// Size returns the overlay's coordinate space.
func (o *Overlay) Size() dom.Size { return o.size }

// Marks returns a copy of the permanent cut-outs in the order made.
func (o *Overlay) Marks() []Mark {
	return append([]Mark(nil), o.marks...)
}

// Queued returns a copy of the predictions waiting for Enable.
func (o *Overlay) Queued() []Mark {
	return append([]Mark(nil), o.queued...)
}

func (o *Overlay) attach() {
	if o.layer != nil {
		return
	}
	layer := o.document.CreateElement("div")
	layer.SetAttribute("id", LayerID)
	layer.SetStyle("position", "absolute")
	layer.SetStyle("left", "0px")
	layer.SetStyle("top", "0px")
	layer.SetStyle("pointer-events", "none")
	o.layer = layer
	o.sync()
	o.document.AppendChild(o.document.Body(), layer)
}

// sync copies the current size and mark count onto the attached layer.
func (o *Overlay) sync() {
	if o.layer == nil {
		return
	}
	setIfChanged(o.layer, "width", pixels(o.size.Width))
	setIfChanged(o.layer, "height", pixels(o.size.Height))
	o.layer.SetAttribute("data-marks", strconv.Itoa(len(o.marks)))
}

func setIfChanged(node *dom.Node, property, value string) {
	if node.Style(property) != value {
		node.SetStyle(property, value)
	}
}

func pixels(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64) + "px"
}
