// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which gazeflow build is running.
//
// [Version], [GitCommit] and [BuildTime] may be injected with
// -ldflags -X. When GitCommit is not injected, the VCS revision the
// Go toolchain stamped into the binary is used instead, so plain
// "go build" and "go install" binaries still identify themselves.
package version
