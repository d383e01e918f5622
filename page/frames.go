// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"context"
	"io"
	"log/slog"

	"github.com/bureau-foundation/gazeflow/bus"
	"github.com/bureau-foundation/gazeflow/capture"
	"github.com/bureau-foundation/gazeflow/host"
	"github.com/bureau-foundation/gazeflow/permission"
)

// HostEmbedder embeds consent frames through the host's frame
// registry.
func HostEmbedder(platform *host.Memory) permission.Embedder {
	return hostEmbedder{platform: platform}
}

type hostEmbedder struct {
	platform *host.Memory
}

func (e hostEmbedder) OpenFrame(ctx context.Context, tabID int, requestID string) (permission.Frame, error) {
	frame, err := e.platform.OpenFrame(ctx, tabID, requestID)
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// ConsentFrames configures ConsentLauncher.
type ConsentFrames struct {
	Bus      *bus.Memory
	Devices  capture.MediaDevices
	Notifier permission.Notifier

	VideoWidth  int
	VideoHeight int

	Logger *slog.Logger
}

// ConsentLauncher returns a host.FrameLauncher that runs a consent page
// in every frame the host opens. Closing the frame unregisters the
// consent context.
func ConsentLauncher(frames ConsentFrames) host.FrameLauncher {
	logger := frames.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(ctx context.Context, tabID int, requestID string) (io.Closer, error) {
		consent, err := permission.NewConsentPage(permission.ConsentConfig{
			TabID:       tabID,
			RequestID:   requestID,
			Devices:     frames.Devices,
			Notifier:    frames.Notifier,
			VideoWidth:  frames.VideoWidth,
			VideoHeight: frames.VideoHeight,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		endpoint, err := consent.Attach(frames.Bus)
		if err != nil {
			return nil, err
		}
		go func() {
			if err := consent.Run(ctx); err != nil {
				logger.Warn("consent page failed", "tab", tabID, "request", requestID, "error", err)
			}
		}()
		return endpointCloser{endpoint}, nil
	}
}

type endpointCloser struct {
	endpoint *bus.Endpoint
}

func (c endpointCloser) Close() error {
	c.endpoint.Close()
	return nil
}
