// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines every message gazeflow's contexts exchange.
//
// Messages fall into three closed categories: [Command] (asks a context
// to do something), [Result] (answers a command), and [Event] (reports
// something that happened). Each category is a sealed interface, and
// each has a visitor interface with one method per variant. A context
// handles a category by implementing the whole visitor, so adding a
// variant breaks the build of every context that has not decided what
// to do with it. Decode turns an envelope back into a variant and
// rejects unknown types with [ErrUnknownType].
//
// Wire vocabulary:
//
//	TOGGLE_CAPTURE{START|STOP}     control surface -> coordinator
//	TOGGLE_REVEAL{START|STOP}      control surface -> coordinator -> page
//	PROMPT_PERMISSION              coordinator -> page
//	PERMISSION_RESULT              page -> coordinator (reply)
//	CHECK_PERMISSION               page -> capture host
//	CHECK_PERMISSION_RESULT        capture host -> page (reply)
//	CONSENT_RESULT                 consent frame -> page
//	START_CAPTURE / STOP_CAPTURE   coordinator -> capture host
//	GAZE_PREDICTION{x,y}           capture host -> coordinator -> page
package protocol
