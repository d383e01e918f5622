// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bureau-foundation/gazeflow/lib/codec"
)

// ContextID names one execution context on the bus.
type ContextID string

// Well-known singleton contexts.
const (
	ControlSurface ContextID = "control"
	Coordinator    ContextID = "coordinator"
	CaptureHost    ContextID = "capture-host"
)

const (
	pagePrefix    = "page/"
	consentPrefix = "consent/"
)

// Page returns the context of the page script running in tabID.
func Page(tabID int) ContextID {
	return ContextID(pagePrefix + strconv.Itoa(tabID))
}

// Consent returns the context of the consent frame opened for a
// permission request.
func Consent(requestID string) ContextID {
	return ContextID(consentPrefix + requestID)
}

// TabID returns the tab a page context belongs to.
func (id ContextID) TabID() (int, bool) {
	rest, ok := strings.CutPrefix(string(id), pagePrefix)
	if !ok {
		return 0, false
	}
	tabID, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return tabID, true
}

// IsPage reports whether id is a page context. Page contexts only
// receive targeted envelopes.
func (id ContextID) IsPage() bool {
	return strings.HasPrefix(string(id), pagePrefix)
}

// Envelope is the unit of communication. Data is the CBOR encoding of
// the typed payload named by Type.
type Envelope struct {
	Type   string           `cbor:"type"`
	Target ContextID        `cbor:"target,omitempty"`
	Data   codec.RawMessage `cbor:"data,omitempty"`
}

func (e Envelope) String() string {
	if e.Target == "" {
		return e.Type
	}
	return fmt.Sprintf("%s -> %s", e.Type, e.Target)
}
