// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package coordinator is the control-plane hub. It turns control
// surface commands into the START and STOP sequences, owns the
// lifecycle of the singleton capture host, and relays predictions and
// reveal toggles to the active tab's page.
//
// The capture host is tracked with a three-valued [State]. Only
// Absent may start a creation; a START that finds Creating joins the
// creation in progress and shares its outcome, so concurrent STARTs
// never create twice. A failed or timed-out creation reverts to
// Absent. Active becomes Absent only through [Coordinator.Teardown].
//
// Host platform checks and creation are separate calls, so another
// party can still create the document between them. Creation that
// fails with host.ErrDocumentExists is treated as success.
package coordinator
