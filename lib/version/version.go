// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags at build time, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/gazeflow/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	GitCommit = "unknown"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Info returns the one-line form printed by "gazeflow version".
func Info() string {
	commit, dirty := Commit()
	if dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("gazeflow %s (%s, %s, %s/%s)", Version, commit, BuildTime, runtime.GOOS, runtime.GOARCH)
}

// Commit returns the build's git revision and whether the tree had
// uncommitted changes.
func Commit() (string, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return GitCommit, false
	}
	return fromBuildInfo(GitCommit, info.Settings)
}

func fromBuildInfo(injected string, settings []debug.BuildSetting) (string, bool) {
	revision, dirty := "", false
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if injected != "unknown" && injected != "" {
		return injected, dirty
	}
	if revision == "" {
		return "unknown", false
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	return revision, dirty
}
