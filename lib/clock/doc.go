// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by every
// gazeflow component that records a timestamp or waits on a deadline.
//
// Production wiring passes Real(). Tests pass Fake(start) and move time
// explicitly with Advance, which makes dwell accounting, focus history
// timestamps, and coordinator timeouts deterministic:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	tracker := tabs.New(tabs.Config{Clock: fake})
//	tracker.FocusTab(7)
//	fake.Advance(3 * time.Second)
//	tracker.UnfocusTab(7)
//
// Goroutines that block on After or AfterFunc register a pending timer
// on the fake. WaitForTimers blocks the test until the expected number
// of timers is registered so Advance never races the registration.
package clock
