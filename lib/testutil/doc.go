// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the small helpers gazeflow tests share.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so a test that waits on a bus reply or a context's event loop
// fails with a message instead of hanging. [Eventually] polls a
// condition that some other goroutine will make true, such as a visit
// reaching the history store.
//
// Helpers call t.Fatalf on failure since setup failures are not
// recoverable.
package testutil
