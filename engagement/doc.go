// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package engagement measures how a page's content is looked at.
//
// A [Tracker] watches candidate elements (paragraphs, headings, list
// items, images) through a visibility observer and keeps one [Element]
// record per content fingerprint: time spent visible (dwell), time
// hovered, clicks, external highlights, and gaze hits. Records are
// keyed by fingerprint rather than node, so an element re-rendered with
// the same content keeps accumulating into the same record. Elements
// inserted after Start are picked up by a mutation observer.
//
// Gaze fusion is a linear scan: each prediction is clamped to the
// viewport, shifted by the scroll offset into document coordinates, and
// tested against the box of every tracked node. Hit nodes get a
// highlight style that lasts until the next prediction misses them.
//
// The tracker belongs to its page context and is not safe for
// concurrent use.
package engagement
