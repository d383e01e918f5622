// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/gazeflow/bus"
	"github.com/bureau-foundation/gazeflow/capture"
	"github.com/bureau-foundation/gazeflow/protocol"
)

// ConsentNotice is shown when the user refuses the camera.
const ConsentNotice = "Gazeflow requires camera access to work."

// Notifier shows blocking notices to the user.
type Notifier interface {
	Alert(message string)
}

// ConsentConfig configures NewConsentPage.
type ConsentConfig struct {
	TabID     int
	RequestID string

	Devices  capture.MediaDevices
	Notifier Notifier

	// VideoWidth and VideoHeight match the capture host's request so
	// the grant covers it. Default 1280x720.
	VideoWidth  int
	VideoHeight int

	Logger *slog.Logger
}

// ConsentPage is the context inside a consent frame. It requests the
// camera once and reports the outcome to its parent page.
type ConsentPage struct {
	config   ConsentConfig
	logger   *slog.Logger
	endpoint *bus.Endpoint
}

// NewConsentPage creates a consent page for one request.
func NewConsentPage(config ConsentConfig) (*ConsentPage, error) {
	if config.Devices == nil || config.Notifier == nil {
		return nil, errors.New("permission: Devices and Notifier are required")
	}
	if config.RequestID == "" {
		return nil, errors.New("permission: RequestID is required")
	}
	if config.VideoWidth <= 0 || config.VideoHeight <= 0 {
		config.VideoWidth, config.VideoHeight = 1280, 720
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ConsentPage{
		config: config,
		logger: logger.With("component", "consent", "tab", config.TabID, "request", config.RequestID),
	}, nil
}

// Attach registers the page's context. The context declines every
// message; it only sends.
func (p *ConsentPage) Attach(memory *bus.Memory) (*bus.Endpoint, error) {
	endpoint, err := memory.Register(bus.Consent(p.config.RequestID), func(*bus.Delivery) bool { return false })
	if err != nil {
		return nil, fmt.Errorf("attaching consent page: %w", err)
	}
	p.endpoint = endpoint
	return endpoint, nil
}

// Run requests the camera and posts exactly one CONSENT_RESULT to the
// parent page. A refusal with "Permission denied" raises ConsentNotice
// before reporting.
func (p *ConsentPage) Run(ctx context.Context) error {
	if p.endpoint == nil {
		return errors.New("consent page not attached")
	}

	result := protocol.ConsentResult{RequestID: p.config.RequestID}
	stream, err := p.config.Devices.GetUserMedia(ctx, capture.Constraints{
		Video: capture.VideoConstraints{Width: p.config.VideoWidth, Height: p.config.VideoHeight},
	})
	if err == nil {
		stream.Stop()
		result.Granted = true
		p.logger.Info("camera access granted")
	} else {
		var deviceError *capture.DeviceError
		if errors.As(err, &deviceError) && deviceError.Message == capture.PermissionDeniedMessage {
			p.config.Notifier.Alert(ConsentNotice)
		}
		result.Reason = err.Error()
		p.logger.Warn("camera access refused", "error", err)
	}

	if err := p.endpoint.Send(protocol.MustEncode(result, bus.Page(p.config.TabID))); err != nil {
		return fmt.Errorf("reporting consent result: %w", err)
	}
	return nil
}
