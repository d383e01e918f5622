// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture runs the capture host: the single privileged context
// that owns the camera and the external vision engine.
//
// The [Controller] answers three commands addressed to the capture host
// context. START_CAPTURE opens the camera (video only, at the configured
// size) and begins the engine. STOP_CAPTURE pauses the engine and
// releases the camera; stopping an idle host does nothing.
// CHECK_PERMISSION replies whether the device permission is already
// granted, so a page can skip the consent frame. Every non-nil engine
// prediction is broadcast as GAZE_PREDICTION for the coordinator to
// relay; nil predictions are dropped here.
//
// [SyntheticEngine] is a stand-in engine producing a deterministic
// random walk on a clock ticker.
package capture
