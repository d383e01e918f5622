// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/bureau-foundation/gazeflow/capture"
)

// Decision is how the simulated user answers a device prompt.
type Decision int

const (
	// Allow grants the prompt.
	Allow Decision = iota

	// Deny refuses the prompt with "Permission denied".
	Deny

	// NoDevice fails every request as if no camera were attached.
	NoDevice
)

// CameraPermission is the permission name the camera answers to.
const CameraPermission = "camera"

// Camera is a capture device whose permission state is shared by every
// context that uses it. The first GetUserMedia while the state is
// "prompt" applies the scripted Decision; afterwards the state sticks.
type Camera struct {
	mu       sync.Mutex
	decision Decision
	state    capture.PermissionState
	open     int
	requests int
}

// NewCamera returns a camera in the "prompt" state.
func NewCamera(decision Decision) *Camera {
	return &Camera{decision: decision, state: capture.PermissionPrompt}
}

// Grant sets the permission state to granted without prompting.
func (c *Camera) Grant() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = capture.PermissionGranted
}

// GetUserMedia opens the camera. Audio is never available.
func (c *Camera) GetUserMedia(ctx context.Context, constraints capture.Constraints) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests++

	if c.decision == NoDevice || constraints.Audio {
		return nil, &capture.DeviceError{Name: capture.NotFoundError, Message: "Requested device not found"}
	}
	if c.state == capture.PermissionPrompt {
		if c.decision == Allow {
			c.state = capture.PermissionGranted
		} else {
			c.state = capture.PermissionDenied
		}
	}
	if c.state != capture.PermissionGranted {
		return nil, &capture.DeviceError{Name: capture.NotAllowedError, Message: capture.PermissionDeniedMessage}
	}

	c.open++
	return &cameraStream{camera: c}, nil
}

// Query reports the camera permission state.
func (c *Camera) Query(ctx context.Context, name string) (capture.PermissionState, error) {
	if name != CameraPermission {
		return "", fmt.Errorf("querying permission %q: unsupported permission name", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, nil
}

// OpenStreams returns how many streams are open.
func (c *Camera) OpenStreams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Requests returns how many times GetUserMedia was called.
func (c *Camera) Requests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests
}

type cameraStream struct {
	camera *Camera
	once   sync.Once
}

func (s *cameraStream) Stop() {
	s.once.Do(func() {
		s.camera.mu.Lock()
		s.camera.open--
		s.camera.mu.Unlock()
	})
}
