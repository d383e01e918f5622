// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/gazeflow/bus"
	"github.com/bureau-foundation/gazeflow/lib/codec"
)

// ErrUnknownType is returned by Decode for an envelope type outside the
// vocabulary.
var ErrUnknownType = errors.New("unknown message type")

// ErrWrongCategory is returned by DecodeCommand, DecodeResult and
// DecodeEvent when the envelope holds a variant of another category.
var ErrWrongCategory = errors.New("message in wrong category")

// Encode wraps message in an envelope addressed to target. An empty
// target leaves the envelope open to any non-page listener.
func Encode(message Message, target bus.ContextID) (bus.Envelope, error) {
	data, err := codec.Marshal(message)
	if err != nil {
		return bus.Envelope{}, fmt.Errorf("encoding %s: %w", message.MessageType(), err)
	}
	return bus.Envelope{
		Type:   string(message.MessageType()),
		Target: target,
		Data:   data,
	}, nil
}

// MustEncode is Encode for messages whose fields always encode. The
// vocabulary contains only strings, numbers and booleans, so failures
// are programming errors.
func MustEncode(message Message, target bus.ContextID) bus.Envelope {
	envelope, err := Encode(message, target)
	if err != nil {
		panic(err)
	}
	return envelope
}

// Decode returns the variant carried by envelope. An empty Data field
// decodes to the variant's zero value.
func Decode(envelope bus.Envelope) (Message, error) {
	switch Type(envelope.Type) {
	case TypeToggleCapture:
		return decodeInto[ToggleCapture](envelope)
	case TypeToggleReveal:
		return decodeInto[ToggleReveal](envelope)
	case TypePromptPermission:
		return decodeInto[PromptPermission](envelope)
	case TypeCheckPermission:
		return decodeInto[CheckPermission](envelope)
	case TypeStartCapture:
		return decodeInto[StartCapture](envelope)
	case TypeStopCapture:
		return decodeInto[StopCapture](envelope)
	case TypePermissionResult:
		return decodeInto[PermissionResult](envelope)
	case TypeCheckPermissionResult:
		return decodeInto[CheckPermissionResult](envelope)
	case TypeConsentResult:
		return decodeInto[ConsentResult](envelope)
	case TypeGazePrediction:
		return decodeInto[GazePrediction](envelope)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, envelope.Type)
}

// DecodeCommand decodes envelope and requires a command variant.
func DecodeCommand(envelope bus.Envelope) (Command, error) {
	return decodeCategory[Command](envelope, "command")
}

// DecodeResult decodes envelope and requires a result variant.
func DecodeResult(envelope bus.Envelope) (Result, error) {
	return decodeCategory[Result](envelope, "result")
}

// DecodeEvent decodes envelope and requires an event variant.
func DecodeEvent(envelope bus.Envelope) (Event, error) {
	return decodeCategory[Event](envelope, "event")
}

func decodeCategory[C Message](envelope bus.Envelope, category string) (C, error) {
	var zero C
	message, err := Decode(envelope)
	if err != nil {
		return zero, err
	}
	typed, ok := message.(C)
	if !ok {
		return zero, fmt.Errorf("%w: %s is not a %s", ErrWrongCategory, envelope.Type, category)
	}
	return typed, nil
}

func decodeInto[M Message](envelope bus.Envelope) (Message, error) {
	var message M
	if len(envelope.Data) == 0 {
		return message, nil
	}
	if err := codec.Unmarshal(envelope.Data, &message); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", envelope.Type, err)
	}
	return message, nil
}
