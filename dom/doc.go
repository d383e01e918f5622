// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dom is the document a page context observes: a node tree
// parsed from HTML with golang.org/x/net/html, laid out by a simple
// block-flow algorithm into document-coordinate rectangles, plus the
// viewport, scroll offsets, ready state, listeners and observers the
// page scripts rely on.
//
// A Document is not safe for concurrent use. It belongs to exactly one
// page context and every call, including the callbacks it makes into
// listeners and observers, runs on that context's event loop.
//
// Coordinates: [Node.Rect] is in document coordinates (origin at the
// top-left of the scrollable page). [Node.BoundingClientRect] and every
// pointer method take viewport coordinates, which differ by the scroll
// offset.
package dom
