// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bus is the host-provided message channel between gazeflow's
// isolated execution contexts: the control surface, the coordinator,
// the capture host, one page context per tab, and short-lived consent
// frames.
//
// Contexts share no memory. [Endpoint.Send] encodes the [Envelope] with
// lib/codec once and every receiving context decodes its own copy on its
// own event loop. Each context processes deliveries one at a time, so a
// handler body never interleaves with another handler of the same
// context; a handler that must wait on another context starts a
// goroutine and returns true to promise a reply later.
//
// # Delivery model
//
// There is no delivery, ordering, or exactly-once guarantee beyond what
// the in-process implementation happens to give:
//
//   - An envelope with a Target goes only to that context. An envelope
//     without one goes to every registered extension context except the
//     sender. Page contexts are reachable only by Target, the way a tab
//     is only reachable by an explicit tab message.
//   - A context whose inbox is full drops the message.
//   - Sending to a context that does not exist fails with
//     [ErrNoReceiver]; callers that treat the target as optional log and
//     move on.
//
// [Endpoint.Request] delivers the same way and waits for the first
// [Delivery.Reply]. Only the first reply is kept. If every candidate
// declines (its handler returns false, its inbox is full, or it closes
// before answering) the request fails with [ErrNoResponse] rather than
// hanging. A candidate that promised an answer and never gives one
// stalls the request until the caller's context ends.
package bus
