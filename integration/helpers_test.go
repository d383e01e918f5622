// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package integration_test runs the gazeflow binary end to end: it is
// built once in TestMain and every test drives it through its command
// line, the way a user would. Skipped under -short.
package integration_test

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

var gazeflowBinary string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	directory, err := os.MkdirTemp("", "gazeflow-integration-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating build directory: %v\n", err)
		os.Exit(1)
	}
	gazeflowBinary = filepath.Join(directory, "gazeflow")
	build := exec.Command("go", "build", "-o", gazeflowBinary, "github.com/bureau-foundation/gazeflow/cmd/gazeflow")
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building gazeflow: %v\n", err)
		os.RemoveAll(directory)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(directory)
	os.Exit(code)
}

// environment is one isolated gazeflow installation: its own config
// file and history database.
type environment struct {
	directory  string
	configPath string
	database   string
}

func newEnvironment(t *testing.T) *environment {
	t.Helper()
	directory := t.TempDir()
	env := &environment{
		directory:  directory,
		configPath: filepath.Join(directory, "gazeflow.yaml"),
		database:   filepath.Join(directory, "history.db"),
	}
	config := fmt.Sprintf(`environment: development
capture:
  tick_interval: 20ms
  video_width: 800
  video_height: 600
history:
  database: %s
`, env.database)
	if err := os.WriteFile(env.configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return env
}

// run executes gazeflow with the environment's config and returns
// stdout, stderr and the exit code.
func (e *environment) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	command := exec.Command(gazeflowBinary, args...)
	command.Env = append(os.Environ(), "GAZEFLOW_CONFIG="+e.configPath)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	err := command.Run()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("running gazeflow %v: %v", args, err)
	}
	return stdout.String(), stderr.String(), code
}

func (e *environment) runOrFail(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, code := e.run(t, args...)
	if code != 0 {
		t.Fatalf("gazeflow %v exited %d\nstderr:\n%s", args, code, stderr)
	}
	return stdout
}
