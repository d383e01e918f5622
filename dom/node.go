// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dom

import (
	"fmt"
	"sort"
	"strings"
)

// NodeType distinguishes element nodes from text nodes.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
)

// Node is one element or text node.
type Node struct {
	Type NodeType

	// Tag is the lower-case element name. Empty for text nodes.
	Tag string

	// Data is the raw text of a text node.
	Data string

	Parent   *Node
	Children []*Node

	attributes map[string]string
	style      map[string]string
	listeners  map[string][]Listener

	document *Document
	rect     Rect
}

// Attribute returns the named attribute, or "" if absent.
func (n *Node) Attribute(name string) string {
	return n.attributes[name]
}

// HasAttribute reports whether the named attribute is present.
func (n *Node) HasAttribute(name string) bool {
	_, ok := n.attributes[name]
	return ok
}

// SetAttribute sets an attribute. Changing layout-relevant attributes
// takes effect at the next layout pass.
func (n *Node) SetAttribute(name, value string) {
	if n.attributes == nil {
		n.attributes = make(map[string]string)
	}
	n.attributes[name] = value
}

// Style returns an inline style property, or "" if unset.
func (n *Node) Style(property string) string {
	return n.style[property]
}

// SetStyle sets an inline style property. An empty value removes it.
// Position and size properties relayout the document.
func (n *Node) SetStyle(property, value string) {
	if value == "" {
		delete(n.style, property)
	} else {
		if n.style == nil {
			n.style = make(map[string]string)
		}
		n.style[property] = value
	}
	if n.document != nil && layoutProperties[property] && n.Connected() {
		n.document.relayout()
		n.document.updateVisibility()
	}
}

// StyleText renders the inline style in property order, as it would
// appear in a style attribute.
func (n *Node) StyleText() string {
	if len(n.style) == 0 {
		return ""
	}
	properties := make([]string, 0, len(n.style))
	for property := range n.style {
		properties = append(properties, property)
	}
	sort.Strings(properties)
	var builder strings.Builder
	for i, property := range properties {
		if i > 0 {
			builder.WriteByte(' ')
		}
		fmt.Fprintf(&builder, "%s: %s;", property, n.style[property])
	}
	return builder.String()
}

// Rect returns the node's box in document coordinates as of the last
// layout. Nodes that are not rendered have an empty rect.
func (n *Node) Rect() Rect { return n.rect }

// BoundingClientRect returns the node's box in viewport coordinates.
func (n *Node) BoundingClientRect() Rect {
	if n.document == nil {
		return n.rect
	}
	return n.rect.Offset(-n.document.scrollX, -n.document.scrollY)
}

// Document returns the document the node is attached to, or nil for a
// detached node.
func (n *Node) Document() *Document { return n.document }

// Connected reports whether the node is in its document's tree.
func (n *Node) Connected() bool {
	for node := n; node != nil; node = node.Parent {
		if node.document != nil && node == node.document.root {
			return true
		}
	}
	return false
}

// Text returns the whitespace-collapsed text content of the subtree.
func (n *Node) Text() string {
	return n.TextExcluding(nil)
}

// TextExcluding returns the whitespace-collapsed text content of the
// subtree, skipping every element whose tag is in excluded along with
// its descendants.
func (n *Node) TextExcluding(excluded map[string]bool) string {
	var builder strings.Builder
	var walk func(node *Node)
	walk = func(node *Node) {
		switch node.Type {
		case TextNode:
			builder.WriteString(node.Data)
			builder.WriteByte(' ')
		case ElementNode:
			if excluded[node.Tag] {
				return
			}
			for _, child := range node.Children {
				walk(child)
			}
		}
	}
	walk(n)
	return strings.Join(strings.Fields(builder.String()), " ")
}

// Walk calls visit for n and every descendant element in document
// order. Returning false from visit skips that element's subtree.
func (n *Node) Walk(visit func(*Node) bool) {
	if n.Type != ElementNode {
		return
	}
	if !visit(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(visit)
	}
}

// Contains reports whether other is n or a descendant of n.
func (n *Node) Contains(other *Node) bool {
	for node := other; node != nil; node = node.Parent {
		if node == n {
			return true
		}
	}
	return false
}

// XPath returns an absolute positional path such as
// /html/body/div[2]/p[1].
func (n *Node) XPath() string {
	if n.Type != ElementNode {
		if n.Parent == nil {
			return ""
		}
		return n.Parent.XPath() + "/text()"
	}
	var segments []string
	for node := n; node != nil; node = node.Parent {
		if node.Parent == nil {
			segments = append(segments, node.Tag)
			break
		}
		index := 1
		for _, sibling := range node.Parent.Children {
			if sibling == node {
				break
			}
			if sibling.Type == ElementNode && sibling.Tag == node.Tag {
				index++
			}
		}
		segments = append(segments, fmt.Sprintf("%s[%d]", node.Tag, index))
	}
	for left, right := 0, len(segments)-1; left < right; left, right = left+1, right-1 {
		segments[left], segments[right] = segments[right], segments[left]
	}
	return "/" + strings.Join(segments, "/")
}

// AddEventListener registers listener for events of kind dispatched to
// this node (and, for bubbling kinds, to its descendants).
func (n *Node) AddEventListener(kind string, listener Listener) {
	if n.listeners == nil {
		n.listeners = make(map[string][]Listener)
	}
	n.listeners[kind] = append(n.listeners[kind], listener)
}

// ListenerCount returns how many listeners of kind are registered on
// the node.
func (n *Node) ListenerCount(kind string) int {
	return len(n.listeners[kind])
}

func (n *Node) String() string {
	if n.Type == TextNode {
		return fmt.Sprintf("#text %q", n.Data)
	}
	if id := n.Attribute("id"); id != "" {
		return fmt.Sprintf("<%s id=%q>", n.Tag, id)
	}
	return "<" + n.Tag + ">"
}

func (n *Node) setDocument(document *Document) {
	n.document = document
	for _, child := range n.Children {
		child.setDocument(document)
	}
}
