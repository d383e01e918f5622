// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import "errors"

// ErrTimeout is returned by Broker.Request when the consent frame does
// not report within the configured timeout.
var ErrTimeout = errors.New("permission request timed out")

// DeniedError reports that consent was refused. Reason carries the
// device error or refusal message, when one was given.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	if e.Reason == "" {
		return "permission denied"
	}
	return "permission denied: " + e.Reason
}

// IsDenied reports whether err wraps a *DeniedError.
func IsDenied(err error) bool {
	var denied *DeniedError
	return errors.As(err, &denied)
}
