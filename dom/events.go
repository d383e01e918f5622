// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dom

import "time"

// Event is one dispatched DOM event.
type Event struct {
	Type string

	// Target is the node the event was dispatched to. Nil for window
	// events.
	Target *Node

	// CurrentTarget is the node whose listener is running.
	CurrentTarget *Node

	Time time.Time
}

// Listener handles an event.
type Listener func(event Event)

// Event kinds that propagate from the target to its ancestors.
var bubblingEvents = map[string]bool{
	"click":     true,
	"mousemove": true,
}

// AddWindowListener registers listener for window-level events:
// "DOMContentLoaded", "load", "resize" and "scroll".
func (d *Document) AddWindowListener(kind string, listener Listener) {
	d.windowListeners[kind] = append(d.windowListeners[kind], listener)
}

// Dispatch delivers an event of kind to target, bubbling to ancestors
// for click and mousemove.
func (d *Document) Dispatch(target *Node, kind string) {
	event := Event{Type: kind, Target: target, Time: d.clock.Now()}
	for node := target; node != nil; node = node.Parent {
		event.CurrentTarget = node
		for _, listener := range node.listeners[kind] {
			listener(event)
		}
		if !bubblingEvents[kind] {
			return
		}
	}
}

func (d *Document) dispatchWindow(kind string) {
	event := Event{Type: kind, Time: d.clock.Now()}
	for _, listener := range d.windowListeners[kind] {
		listener(event)
	}
}

// ElementAt returns the deepest rendered element under the viewport
// point (x, y), skipping elements styled pointer-events: none. Later
// siblings win over earlier ones. Returns nil outside the body.
func (d *Document) ElementAt(x, y float64) *Node {
	documentX, documentY := x+d.scrollX, y+d.scrollY
	var hit func(node *Node) *Node
	hit = func(node *Node) *Node {
		for i := len(node.Children) - 1; i >= 0; i-- {
			child := node.Children[i]
			if child.Type != ElementNode {
				continue
			}
			if found := hit(child); found != nil {
				return found
			}
		}
		if node.rect.Empty() || node.Style("pointer-events") == "none" {
			return nil
		}
		if node.rect.Contains(documentX, documentY) {
			return node
		}
		return nil
	}
	return hit(d.body)
}

// PointerMove moves the pointer to the viewport point (x, y). Elements
// the pointer left receive "mouseleave" (innermost first), elements it
// entered receive "mouseenter" (outermost first); neither bubbles.
func (d *Document) PointerMove(x, y float64) {
	var chain []*Node
	for node := d.ElementAt(x, y); node != nil; node = node.Parent {
		chain = append([]*Node{node}, chain...)
	}

	common := 0
	for common < len(chain) && common < len(d.hovered) && chain[common] == d.hovered[common] {
		common++
	}
	for i := len(d.hovered) - 1; i >= common; i-- {
		d.Dispatch(d.hovered[i], "mouseleave")
	}
	for i := common; i < len(chain); i++ {
		d.Dispatch(chain[i], "mouseenter")
	}
	d.hovered = chain

	if len(chain) > 0 {
		d.Dispatch(chain[len(chain)-1], "mousemove")
	}
}

// Click dispatches a bubbling "click" at the viewport point (x, y).
// Returns the element clicked, or nil if the point hit nothing.
func (d *Document) Click(x, y float64) *Node {
	target := d.ElementAt(x, y)
	if target != nil {
		d.Dispatch(target, "click")
	}
	return target
}
