// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package host is an in-process stand-in for the browser platform the
// contexts run on. [Memory] owns the tab registry and emits tab
// lifecycle events, answers the active-tab query, creates and closes
// the capture host document, embeds consent frames into pages, and
// shows blocking notices. [Camera] is the capture device with a
// scripted user decision and a permission state shared by every
// context of the extension origin.
//
// Creating a document or frame runs a launcher supplied by the caller,
// which typically registers a new context on the bus. The host itself
// never touches the bus.
package host
