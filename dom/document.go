// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dom

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/bureau-foundation/gazeflow/lib/clock"
)

// ReadyState mirrors document.readyState.
type ReadyState string

const (
	Loading     ReadyState = "loading"
	Interactive ReadyState = "interactive"
	Complete    ReadyState = "complete"
)

// Ready reports whether scripts may attach to the document.
func (s ReadyState) Ready() bool { return s == Interactive || s == Complete }

// DefaultViewport is used when Options.Viewport is zero.
var DefaultViewport = Size{Width: 1280, Height: 720}

// Options configures Parse and New.
type Options struct {
	// Viewport is the visible area in CSS pixels.
	Viewport Size

	// Clock stamps dispatched events and observer entries. Defaults to
	// the real clock.
	Clock clock.Clock
}

// Document is a parsed page.
type Document struct {
	clock clock.Clock

	root *Node
	head *Node
	body *Node

	viewport         Size
	scrollX, scrollY float64
	readyState       ReadyState

	windowListeners map[string][]Listener
	hovered         []*Node

	visibilityObservers []*VisibilityObserver
	mutationObservers   []*MutationObserver
}

// Parse reads an HTML document. The result starts in the Loading state;
// call Load to advance it.
func Parse(reader io.Reader, options Options) (*Document, error) {
	parsed, err := html.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var rootSource *html.Node
	for child := parsed.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == "html" {
			rootSource = child
			break
		}
	}
	if rootSource == nil {
		return nil, errors.New("parsing html: no <html> element")
	}

	document := newDocument(options)
	document.root = convert(rootSource)
	document.root.setDocument(document)
	for _, child := range document.root.Children {
		switch child.Tag {
		case "head":
			document.head = child
		case "body":
			document.body = child
		}
	}
	if document.body == nil {
		document.body = &Node{Type: ElementNode, Tag: "body", Parent: document.root}
		document.body.setDocument(document)
		document.root.Children = append(document.root.Children, document.body)
	}
	document.relayout()
	return document, nil
}

// ParseString is Parse over a string.
func ParseString(source string, options Options) (*Document, error) {
	return Parse(strings.NewReader(source), options)
}

func newDocument(options Options) *Document {
	viewport := options.Viewport
	if viewport.Width <= 0 || viewport.Height <= 0 {
		viewport = DefaultViewport
	}
	documentClock := options.Clock
	if documentClock == nil {
		documentClock = clock.Real()
	}
	return &Document{
		clock:           documentClock,
		viewport:        viewport,
		readyState:      Loading,
		windowListeners: make(map[string][]Listener),
	}
}

// convert copies the element and text nodes of an x/net/html tree.
// Comments and doctypes are dropped.
func convert(source *html.Node) *Node {
	node := &Node{Type: ElementNode, Tag: strings.ToLower(source.Data)}
	if len(source.Attr) > 0 {
		node.attributes = make(map[string]string, len(source.Attr))
		for _, attribute := range source.Attr {
			node.attributes[attribute.Key] = attribute.Val
		}
		if style, ok := node.attributes["style"]; ok {
			node.style = parseStyle(style)
		}
	}
	for child := source.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.ElementNode:
			converted := convert(child)
			converted.Parent = node
			node.Children = append(node.Children, converted)
		case html.TextNode:
			node.Children = append(node.Children, &Node{Type: TextNode, Data: child.Data, Parent: node})
		}
	}
	return node
}

func parseStyle(declarations string) map[string]string {
	style := make(map[string]string)
	for _, declaration := range strings.Split(declarations, ";") {
		property, value, ok := strings.Cut(declaration, ":")
		if !ok {
			continue
		}
		property = strings.ToLower(strings.TrimSpace(property))
		value = strings.TrimSpace(value)
		if property != "" && value != "" {
			style[property] = value
		}
	}
	return style
}

// Root returns the <html> element.
func (d *Document) Root() *Node { return d.root }

// Body returns the <body> element.
func (d *Document) Body() *Node { return d.body }

// Head returns the <head> element, or nil if the source had none.
func (d *Document) Head() *Node { return d.head }

// Clock returns the document's time source.
func (d *Document) Clock() clock.Clock { return d.clock }

// ReadyState returns the loading state.
func (d *Document) ReadyState() ReadyState { return d.readyState }

// Load advances the document to Complete, dispatching
// "DOMContentLoaded" on the way through Interactive and "load" at the
// end. Calling Load on a complete document does nothing.
func (d *Document) Load() {
	if d.readyState == Loading {
		d.readyState = Interactive
		d.dispatchWindow("DOMContentLoaded")
	}
	if d.readyState == Interactive {
		d.readyState = Complete
		d.dispatchWindow("load")
	}
}

// CreateElement returns a detached element owned by d.
func (d *Document) CreateElement(tag string) *Node {
	return &Node{Type: ElementNode, Tag: strings.ToLower(tag), document: d}
}

// CreateTextNode returns a detached text node owned by d.
func (d *Document) CreateTextNode(text string) *Node {
	return &Node{Type: TextNode, Data: text, document: d}
}

// AppendChild inserts child as the last child of parent, detaching it
// from any previous parent first. Mutation observers watching parent
// see child as added; visibility is re-evaluated afterwards.
func (d *Document) AppendChild(parent, child *Node) {
	if child.Parent != nil {
		d.detach(child)
	}
	child.Parent = parent
	parent.Children = append(parent.Children, child)
	child.setDocument(d)

	d.relayout()
	if parent.Connected() {
		d.notifyMutation(parent, []*Node{child})
	}
	d.updateVisibility()
}

// RemoveChild detaches node from its parent. Observed nodes inside the
// removed subtree report not visible.
func (d *Document) RemoveChild(node *Node) {
	if node.Parent == nil {
		return
	}
	d.detach(node)
	d.relayout()
	d.updateVisibility()
}

func (d *Document) detach(node *Node) {
	siblings := node.Parent.Children
	for i, sibling := range siblings {
		if sibling == node {
			node.Parent.Children = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	node.Parent = nil
	node.Walk(func(element *Node) bool {
		element.rect = Rect{}
		return true
	})
}

// QuerySelectorAll returns every connected element whose tag is in
// tags, in document order.
func (d *Document) QuerySelectorAll(tags ...string) []*Node {
	return Select(d.root, tags...)
}

// Select returns root and its descendant elements whose tag is in
// tags, in document order.
func Select(root *Node, tags ...string) []*Node {
	wanted := make(map[string]bool, len(tags))
	for _, tag := range tags {
		wanted[strings.ToLower(tag)] = true
	}
	var matches []*Node
	root.Walk(func(node *Node) bool {
		if wanted[node.Tag] {
			matches = append(matches, node)
		}
		return true
	})
	return matches
}

// ElementByID returns the first element with the given id attribute.
func (d *Document) ElementByID(id string) *Node {
	var found *Node
	d.root.Walk(func(node *Node) bool {
		if found != nil {
			return false
		}
		if node.Attribute("id") == id {
			found = node
			return false
		}
		return true
	})
	return found
}

// Render writes the current tree, including inline styles changed since
// parsing, as HTML.
func (d *Document) Render(writer io.Writer) error {
	document := &html.Node{Type: html.DocumentNode}
	document.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	document.AppendChild(export(d.root))
	return html.Render(writer, document)
}

func export(node *Node) *html.Node {
	if node.Type == TextNode {
		return &html.Node{Type: html.TextNode, Data: node.Data}
	}
	exported := &html.Node{Type: html.ElementNode, Data: node.Tag}
	names := make([]string, 0, len(node.attributes))
	for name := range node.attributes {
		if name != "style" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		exported.Attr = append(exported.Attr, html.Attribute{Key: name, Val: node.attributes[name]})
	}
	if style := node.StyleText(); style != "" {
		exported.Attr = append(exported.Attr, html.Attribute{Key: "style", Val: style})
	}
	for _, child := range node.Children {
		exported.AppendChild(export(child))
	}
	return exported
}
