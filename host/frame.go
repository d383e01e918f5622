// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Frame is a hidden consent frame embedded in a page.
type Frame struct {
	TabID     int
	RequestID string

	host    *Memory
	context io.Closer
	once    sync.Once
}

// OpenFrame embeds a consent frame for requestID into tabID and starts
// its context.
func (m *Memory) OpenFrame(ctx context.Context, tabID int, requestID string) (*Frame, error) {
	if m.launchFrame == nil {
		return nil, errors.New("opening consent frame: no frame launcher configured")
	}

	m.mu.Lock()
	if _, exists := m.frames[requestID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("opening consent frame: request %s already has a frame", requestID)
	}
	frame := &Frame{TabID: tabID, RequestID: requestID, host: m}
	m.frames[requestID] = frame
	m.mu.Unlock()

	closer, err := m.launchFrame(ctx, tabID, requestID)
	if err != nil {
		m.mu.Lock()
		delete(m.frames, requestID)
		m.mu.Unlock()
		return nil, fmt.Errorf("opening consent frame: %w", err)
	}
	frame.context = closer
	m.logger.Debug("consent frame opened", "tab", tabID, "request", requestID)
	return frame, nil
}

// Remove detaches the frame and stops its context. Safe to call more
// than once.
func (f *Frame) Remove() error {
	var err error
	f.once.Do(func() {
		f.host.mu.Lock()
		delete(f.host.frames, f.RequestID)
		f.host.mu.Unlock()
		if f.context != nil {
			err = f.context.Close()
		}
		f.host.logger.Debug("consent frame removed", "tab", f.TabID, "request", f.RequestID)
	})
	return err
}

// Frames returns the request ids of every embedded frame, sorted.
func (m *Memory) Frames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.frames))
	for id := range m.frames {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
