// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package page is the context injected into every tab. It owns the
// tab's document and hosts the permission broker, the engagement
// tracker, the reveal overlay and the gaze indicator dot.
//
// The bus delivers one message at a time to a context, but permission
// prompts run on their own goroutines so a page can keep receiving
// predictions (and the consent result it is waiting for) while a prompt
// is outstanding. Every touch of the document therefore goes through
// the page's lock; callers outside the bus use [Page.Do].
package page
