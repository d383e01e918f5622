// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads gazeflow's configuration.
//
// Configuration comes from exactly one file, named by the
// GAZEFLOW_CONFIG environment variable or the --config flag. There is
// no search path. YAML is the native format; files ending in .json or
// .jsonc have their comments and trailing commas stripped first and are
// then read by the same YAML decoder, since JSON is a YAML subset.
//
// The file may carry development and production sections whose
// non-zero fields replace the base values when the environment field
// selects them.
package config
