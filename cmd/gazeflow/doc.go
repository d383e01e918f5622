// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Gazeflow drives the gaze capture coordination protocol in-process.
//
// The simulate command wires every context of a browser session onto
// one bus: a host with a scripted camera, the coordinator, the capture
// host with a synthetic prediction engine, and a page parsed from an
// HTML file. It starts capture, lets predictions flow for a while and
// reports what the page recorded. The history, tabs and config
// commands inspect what simulate leaves behind.
package main
