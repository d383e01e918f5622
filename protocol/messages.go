// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

// Type is the envelope type string of a variant.
type Type string

const (
	TypeToggleCapture         Type = "TOGGLE_CAPTURE"
	TypeToggleReveal          Type = "TOGGLE_REVEAL"
	TypePromptPermission      Type = "PROMPT_PERMISSION"
	TypeCheckPermission       Type = "CHECK_PERMISSION"
	TypeStartCapture          Type = "START_CAPTURE"
	TypeStopCapture           Type = "STOP_CAPTURE"
	TypePermissionResult      Type = "PERMISSION_RESULT"
	TypeCheckPermissionResult Type = "CHECK_PERMISSION_RESULT"
	TypeConsentResult         Type = "CONSENT_RESULT"
	TypeGazePrediction        Type = "GAZE_PREDICTION"
)

// Action is the payload of the two toggle commands.
type Action string

const (
	Start Action = "START"
	Stop  Action = "STOP"
)

// Valid reports whether a is START or STOP.
func (a Action) Valid() bool { return a == Start || a == Stop }

// Status is the outcome carried by a PermissionResult.
type Status string

const (
	Success Status = "success"
	Failure Status = "failure"
)

// Point is a gaze coordinate in viewport pixels.
type Point struct {
	X float64 `cbor:"x"`
	Y float64 `cbor:"y"`
}

// Message is implemented by every variant.
type Message interface {
	MessageType() Type
	message()
}

// Commands.

// ToggleCapture starts or stops gaze capture.
type ToggleCapture struct {
	Action Action `cbor:"action"`
}

// ToggleReveal enables or disables the reveal overlay in the active tab.
type ToggleReveal struct {
	Action Action `cbor:"action"`
}

// PromptPermission asks a page to obtain device consent.
type PromptPermission struct {
	RequestID string `cbor:"request_id,omitempty"`
}

// CheckPermission asks the capture host whether the device permission
// is already granted.
type CheckPermission struct {
	Name string `cbor:"name,omitempty"`
}

// StartCapture tells the capture host to begin predicting.
type StartCapture struct{}

// StopCapture tells the capture host to pause. Idempotent.
type StopCapture struct{}

// Results.

// PermissionResult answers PromptPermission.
type PermissionResult struct {
	RequestID string `cbor:"request_id,omitempty"`
	Status    Status `cbor:"status"`
	Reason    string `cbor:"reason,omitempty"`
}

// CheckPermissionResult answers CheckPermission. Reason is the
// permission state or query error when not granted.
type CheckPermissionResult struct {
	Granted bool   `cbor:"granted"`
	Reason  string `cbor:"reason,omitempty"`
}

// ConsentResult is posted once by a consent frame to its parent page.
type ConsentResult struct {
	RequestID string `cbor:"request_id"`
	Granted   bool   `cbor:"granted"`
	Reason    string `cbor:"reason,omitempty"`
}

// Events.

// GazePrediction carries one engine tick. Point is nil when the engine
// had no estimate.
type GazePrediction struct {
	Point *Point `cbor:"point"`
}

func (ToggleCapture) MessageType() Type         { return TypeToggleCapture }
func (ToggleReveal) MessageType() Type          { return TypeToggleReveal }
func (PromptPermission) MessageType() Type      { return TypePromptPermission }
func (CheckPermission) MessageType() Type       { return TypeCheckPermission }
func (StartCapture) MessageType() Type          { return TypeStartCapture }
func (StopCapture) MessageType() Type           { return TypeStopCapture }
func (PermissionResult) MessageType() Type      { return TypePermissionResult }
func (CheckPermissionResult) MessageType() Type { return TypeCheckPermissionResult }
func (ConsentResult) MessageType() Type         { return TypeConsentResult }
func (GazePrediction) MessageType() Type        { return TypeGazePrediction }

func (ToggleCapture) message()         {}
func (ToggleReveal) message()          {}
func (PromptPermission) message()      {}
func (CheckPermission) message()       {}
func (StartCapture) message()          {}
func (StopCapture) message()           {}
func (PermissionResult) message()      {}
func (CheckPermissionResult) message() {}
func (ConsentResult) message()         {}
func (GazePrediction) message()        {}
