// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/gazeflow/protocol"
)

// PermissionState is the answer to a device permission query.
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

// Constraints selects the media a stream carries.
type Constraints struct {
	Video VideoConstraints
	Audio bool
}

// VideoConstraints are the requested frame dimensions.
type VideoConstraints struct {
	Width  int
	Height int
}

// Stream is an open capture device.
type Stream interface {
	// Stop releases the device.
	Stop()
}

// MediaDevices opens capture devices, like navigator.mediaDevices.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, constraints Constraints) (Stream, error)
}

// Permissions answers permission queries, like navigator.permissions.
type Permissions interface {
	Query(ctx context.Context, name string) (PermissionState, error)
}

// DeviceError is a refused or failed device request. Name follows the
// DOMException naming ("NotAllowedError", "NotFoundError").
type DeviceError struct {
	Name    string
	Message string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Common device failures.
const (
	NotAllowedError = "NotAllowedError"
	NotFoundError   = "NotFoundError"

	// PermissionDeniedMessage is the message a user refusal carries.
	PermissionDeniedMessage = "Permission denied"
)

// Engine is the external vision engine turning frames into gaze points.
// A nil point means the engine had no estimate for that frame.
type Engine interface {
	SetPredictionListener(listener func(point *protocol.Point))
	Begin(ctx context.Context, stream Stream) error
	Pause()
}
