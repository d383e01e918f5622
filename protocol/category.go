// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "fmt"

// Command is a message that asks its receiver to act.
type Command interface {
	Message
	command()
}

// Result is a reply to a command.
type Result interface {
	Message
	result()
}

// Event reports something that already happened.
type Event interface {
	Message
	event()
}

func (ToggleCapture) command()    {}
func (ToggleReveal) command()     {}
func (PromptPermission) command() {}
func (CheckPermission) command()  {}
func (StartCapture) command()     {}
func (StopCapture) command()      {}

func (PermissionResult) result()      {}
func (CheckPermissionResult) result() {}
func (ConsentResult) result()         {}

func (GazePrediction) event() {}

// CommandVisitor handles every command variant.
type CommandVisitor[R any] interface {
	ToggleCapture(ToggleCapture) R
	ToggleReveal(ToggleReveal) R
	PromptPermission(PromptPermission) R
	CheckPermission(CheckPermission) R
	StartCapture(StartCapture) R
	StopCapture(StopCapture) R
}

// ResultVisitor handles every result variant.
type ResultVisitor[R any] interface {
	PermissionResult(PermissionResult) R
	CheckPermissionResult(CheckPermissionResult) R
	ConsentResult(ConsentResult) R
}

// EventVisitor handles every event variant.
type EventVisitor[R any] interface {
	GazePrediction(GazePrediction) R
}

// VisitCommand calls the visitor method for command's variant.
func VisitCommand[R any](command Command, visitor CommandVisitor[R]) R {
	switch command := command.(type) {
	case ToggleCapture:
		return visitor.ToggleCapture(command)
	case ToggleReveal:
		return visitor.ToggleReveal(command)
	case PromptPermission:
		return visitor.PromptPermission(command)
	case CheckPermission:
		return visitor.CheckPermission(command)
	case StartCapture:
		return visitor.StartCapture(command)
	case StopCapture:
		return visitor.StopCapture(command)
	}
	panic(fmt.Sprintf("protocol: unhandled command %T", command))
}

// VisitResult calls the visitor method for result's variant.
func VisitResult[R any](result Result, visitor ResultVisitor[R]) R {
	switch result := result.(type) {
	case PermissionResult:
		return visitor.PermissionResult(result)
	case CheckPermissionResult:
		return visitor.CheckPermissionResult(result)
	case ConsentResult:
		return visitor.ConsentResult(result)
	}
	panic(fmt.Sprintf("protocol: unhandled result %T", result))
}

// VisitEvent calls the visitor method for event's variant.
func VisitEvent[R any](event Event, visitor EventVisitor[R]) R {
	switch event := event.(type) {
	case GazePrediction:
		return visitor.GazePrediction(event)
	}
	panic(fmt.Sprintf("protocol: unhandled event %T", event))
}
