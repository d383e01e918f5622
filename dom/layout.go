// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dom

import (
	"math"
	"strconv"
	"strings"
)

// Block-flow metrics. Every rendered element is a full-width block;
// text wraps at a fixed character width.
const (
	characterWidth    = 8.0
	lineHeight        = 20.0
	defaultImageSize  = 100.0
	pixelSuffixLength = len("px")
)

// Elements that never produce a box.
var unrenderedTags = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"title":    true,
	"meta":     true,
	"link":     true,
}

// Style properties whose change requires a new layout pass.
var layoutProperties = map[string]bool{
	"display":  true,
	"position": true,
	"left":     true,
	"top":      true,
	"width":    true,
	"height":   true,
}

// Viewport returns the visible area size.
func (d *Document) Viewport() Size { return d.viewport }

// Scroll returns the current scroll offsets.
func (d *Document) Scroll() (x, y float64) { return d.scrollX, d.scrollY }

// ScrollSize returns the full scrollable extent of the document, never
// smaller than the viewport.
func (d *Document) ScrollSize() Size {
	extent := d.viewport
	d.root.Walk(func(node *Node) bool {
		if node.rect.Empty() {
			return true
		}
		extent.Width = max(extent.Width, node.rect.X+node.rect.Width)
		extent.Height = max(extent.Height, node.rect.Y+node.rect.Height)
		return true
	})
	return extent
}

// ScrollTo moves the viewport, clamped to the scrollable extent, then
// dispatches "scroll" and re-evaluates visibility. Does nothing when the
// clamped offsets are unchanged.
func (d *Document) ScrollTo(x, y float64) {
	x, y = d.clampScroll(x, y)
	if x == d.scrollX && y == d.scrollY {
		return
	}
	d.scrollX, d.scrollY = x, y
	d.dispatchWindow("scroll")
	d.updateVisibility()
}

// Resize changes the viewport, relayouts, dispatches "resize" and
// re-evaluates visibility.
func (d *Document) Resize(viewport Size) {
	if viewport.Width <= 0 || viewport.Height <= 0 {
		return
	}
	d.viewport = viewport
	d.relayout()
	d.scrollX, d.scrollY = d.clampScroll(d.scrollX, d.scrollY)
	d.dispatchWindow("resize")
	d.updateVisibility()
}

func (d *Document) clampScroll(x, y float64) (float64, float64) {
	extent := d.ScrollSize()
	x = math.Max(0, math.Min(x, extent.Width-d.viewport.Width))
	y = math.Max(0, math.Min(y, extent.Height-d.viewport.Height))
	return x, y
}

func (d *Document) relayout() {
	if d.root == nil {
		return
	}
	height := d.layoutChildren(d.root, 0, 0, d.viewport.Width)
	d.root.rect = Rect{Width: d.viewport.Width, Height: height}
}

// layout positions an element at (x, y) with the given width and
// returns the vertical space it consumes in the flow.
func (d *Document) layout(node *Node, x, y, width float64) float64 {
	if !rendered(node) {
		clearLayout(node)
		return 0
	}

	if node.Style("position") == "absolute" || node.Style("position") == "fixed" {
		box := Rect{
			X:      pixels(node.Style("left"), 0),
			Y:      pixels(node.Style("top"), 0),
			Width:  pixels(node.Style("width"), width),
			Height: pixels(node.Style("height"), 0),
		}
		contentHeight := d.layoutChildren(node, box.X, box.Y, box.Width)
		if node.Style("height") == "" {
			box.Height = contentHeight
		}
		node.rect = box
		return 0
	}

	if node.Tag == "img" {
		imageWidth := math.Min(pixels(node.Attribute("width"), defaultImageSize), width)
		imageHeight := pixels(node.Attribute("height"), defaultImageSize)
		node.rect = Rect{X: x, Y: y, Width: imageWidth, Height: imageHeight}
		return imageHeight
	}

	height := d.layoutChildren(node, x, y, width)
	if explicit := node.Style("height"); explicit != "" {
		height = pixels(explicit, height)
	}
	node.rect = Rect{X: x, Y: y, Width: width, Height: height}
	return height
}

// layoutChildren stacks node's children from y downwards and returns
// the total height. Adjacent text nodes, including text separated only
// by unrendered elements, share one run of lines.
func (d *Document) layoutChildren(node *Node, x, y, width float64) float64 {
	cursor := y
	var run strings.Builder
	flush := func() {
		cursor += textHeight(run.String(), width)
		run.Reset()
	}
	for _, child := range node.Children {
		if child.Type == TextNode {
			run.WriteString(child.Data)
			continue
		}
		if !rendered(child) {
			clearLayout(child)
			continue
		}
		flush()
		cursor += d.layout(child, x, cursor, width)
	}
	flush()
	return cursor - y
}

func rendered(node *Node) bool {
	if unrenderedTags[node.Tag] || node.HasAttribute("hidden") {
		return false
	}
	return node.Style("display") != "none"
}

func clearLayout(node *Node) {
	node.Walk(func(element *Node) bool {
		element.rect = Rect{}
		return true
	})
}

func textHeight(text string, width float64) float64 {
	characters := len([]rune(strings.Join(strings.Fields(text), " ")))
	if characters == 0 {
		return 0
	}
	perLine := max(1, int(width/characterWidth))
	lines := (characters + perLine - 1) / perLine
	return float64(lines) * lineHeight
}

// pixels parses "12", "12px" or "12.5px", returning fallback for
// anything else.
func pixels(value string, fallback float64) float64 {
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, "px") {
		value = value[:len(value)-pixelSuffixLength]
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
