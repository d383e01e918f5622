// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tabs

import (
	"fmt"
	"os"
	"time"

	"github.com/bureau-foundation/gazeflow/lib/codec"
	"github.com/bureau-foundation/gazeflow/lib/statefile"
)

// SnapshotVersion is bumped when the snapshot layout changes
// incompatibly.
const SnapshotVersion = 1

// Snapshot is the exported form of every tab record.
type Snapshot struct {
	Version int       `cbor:"version"`
	Taken   time.Time `cbor:"taken"`
	Tabs    []Record  `cbor:"tabs"`
}

// Snapshot captures every record at the current time.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Version: SnapshotVersion,
		Taken:   t.clock.Now(),
		Tabs:    t.Tabs(),
	}
}

// WriteSnapshot atomically writes the CBOR encoding of Snapshot to
// path.
func (t *Tracker) WriteSnapshot(path string) error {
	snapshot := t.Snapshot()
	data, err := codec.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding tab snapshot: %w", err)
	}
	if err := statefile.Write(path, data); err != nil {
		return fmt.Errorf("writing tab snapshot: %w", err)
	}
	t.logger.Debug("tab snapshot written", "path", path, "tabs", len(snapshot.Tabs))
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading tab snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := codec.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decoding tab snapshot %s: %w", path, err)
	}
	if snapshot.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("tab snapshot %s has version %d, want %d", path, snapshot.Version, SnapshotVersion)
	}
	return snapshot, nil
}
