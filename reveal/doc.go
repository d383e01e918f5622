// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reveal implements the fog-of-war overlay: a layer darkening
// the whole document except for blurred circular cut-outs at every
// gaze position.
//
// An [Overlay] is inactive until [Overlay.Enable]. While inactive it
// queues predictions without drawing them; enabling flushes the queue
// into permanent marks and attaches the layer to the page. Marks are
// never removed for the life of the page. [Overlay.Disable] detaches
// the layer and goes back to queueing, so a later Enable continues
// from where the reveal left off.
//
// Predictions arrive in viewport coordinates and are converted to
// document coordinates when received, so scrolling afterwards does
// not move a mark.
//
// Like the rest of the page context, an Overlay is not safe for
// concurrent use.
package reveal
