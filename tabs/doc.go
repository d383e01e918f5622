// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tabs tracks per-tab navigation and focus history.
//
// [Tracker] is the only writer of tab records. Every operation is
// idempotent and tolerates host events arriving out of order: closing,
// focusing or unfocusing an unknown tab does nothing, and recording a
// page on an unknown tab creates the tab first. Records are never
// deleted, only flagged closed. Readers get copies.
//
// [Listener] maps host tab events onto the tracker. [Tracker.WriteSnapshot]
// exports every record for an external aggregator; cross-tab
// aggregation itself is not done here.
package tabs
