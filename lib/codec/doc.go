// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is gazeflow's single CBOR configuration.
//
// Contexts on the message bus never share memory: a message is encoded
// once by the sender and every receiver decodes its own copy. Both the
// envelope and its typed payload use this package, as does the tab
// snapshot export. Encoding is Core Deterministic (RFC 8949 §4.2), so
// the same message always produces the same bytes, which keeps tests
// that compare wire output stable.
//
//	data, err := codec.Marshal(envelope)
//	err = codec.Unmarshal(data, &envelope)
//
// Payloads that are decoded lazily, after the receiver has looked at
// the envelope type, are carried as [RawMessage].
package codec
