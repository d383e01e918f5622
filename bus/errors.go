// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import "errors"

var (
	// ErrNoReceiver means no registered context matched the envelope.
	ErrNoReceiver = errors.New("bus: no receiving context")

	// ErrNoResponse means every candidate for a request declined to
	// answer it.
	ErrNoResponse = errors.New("bus: no response")

	// ErrInboxFull means the only candidate's inbox was full and the
	// message was dropped.
	ErrInboxFull = errors.New("bus: inbox full")

	// ErrDuplicateContext is returned by Register when the id is taken.
	ErrDuplicateContext = errors.New("bus: context already registered")

	// ErrClosed is returned after the endpoint or the bus has closed.
	ErrClosed = errors.New("bus: closed")
)
