// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the gazeflow
// binary: a tree of [Command] values dispatched by name, pflag flag
// sets built from tagged parameter structs, typo suggestions for
// unknown commands and flags, and the shared output helpers (JSON
// mode, the command logger, the terminal theme).
package cli
