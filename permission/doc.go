// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package permission obtains camera consent for a page.
//
// A [Broker] lives in a page context. Request first asks the capture
// host whether the permission is already granted. If not, or if the
// question goes unanswered, it embeds a hidden consent frame (a
// [ConsentPage] running in its own context) and waits for the frame's
// single CONSENT_RESULT, then removes the frame. Each request gets a
// generated id and its own entry in the broker's pending table, so
// concurrent requests never resolve each other.
//
// A refusal surfaces as a [*DeniedError]. The consent page shows a
// blocking notice first when the user refused the device.
package permission
