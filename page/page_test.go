// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/gazeflow/bus"
	"github.com/bureau-foundation/gazeflow/capture"
	"github.com/bureau-foundation/gazeflow/dom"
	"github.com/bureau-foundation/gazeflow/host"
	"github.com/bureau-foundation/gazeflow/lib/clock"
	"github.com/bureau-foundation/gazeflow/lib/config"
	"github.com/bureau-foundation/gazeflow/lib/testutil"
	"github.com/bureau-foundation/gazeflow/permission"
	"github.com/bureau-foundation/gazeflow/protocol"
)

const (
	waitTimeout = 5 * time.Second
	testTab     = 7
)

// With an 800x600 viewport: title 0-20, intro 20-40, filler 40-1040.
const studyPage = `<html><head><title>Study</title></head><body>
<h1 id="title">Study</h1>
<p id="intro">Look here</p>
<div style="height: 1000px"></div>
</body></html>`

type harness struct {
	memory      *bus.Memory
	platform    *host.Memory
	camera      *host.Camera
	page        *Page
	coordinator *bus.Endpoint
}

func newHarness(t *testing.T, decision host.Decision, loaded bool) *harness {
	t.Helper()
	memory := bus.NewMemory(bus.MemoryConfig{})
	t.Cleanup(memory.Close)
	camera := host.NewCamera(decision)

	var launcher host.FrameLauncher
	platform := host.NewMemory(host.Config{
		LaunchFrame: func(ctx context.Context, tabID int, requestID string) (io.Closer, error) {
			return launcher(ctx, tabID, requestID)
		},
	})
	launcher = ConsentLauncher(ConsentFrames{Bus: memory, Devices: camera, Notifier: platform})

	controller, err := capture.NewController(capture.Config{
		Devices:     camera,
		Permissions: camera,
		Engine:      capture.NewSyntheticEngine(capture.SyntheticConfig{}),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if _, err := controller.Attach(context.Background(), memory); err != nil {
		t.Fatalf("Attach capture host: %v", err)
	}
	t.Cleanup(func() { controller.Close() })

	document, err := dom.ParseString(studyPage, dom.Options{
		Viewport: dom.Size{Width: 800, Height: 600},
		Clock:    clock.Fake(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if loaded {
		document.Load()
	}

	defaults := config.Default()
	page, err := New(Config{
		TabID:      testTab,
		Document:   document,
		Embedder:   HostEmbedder(platform),
		Engagement: defaults.Engagement,
		Reveal:     defaults.Reveal,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := page.Attach(context.Background(), memory); err != nil {
		t.Fatalf("Attach page: %v", err)
	}
	t.Cleanup(func() { page.Close() })

	coordinator, err := memory.Register(bus.Coordinator, func(*bus.Delivery) bool { return false })
	if err != nil {
		t.Fatalf("Register coordinator: %v", err)
	}
	return &harness{memory: memory, platform: platform, camera: camera, page: page, coordinator: coordinator}
}

func (h *harness) prompt(t *testing.T, requestID string) protocol.PermissionResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	reply, err := h.coordinator.Request(ctx, protocol.MustEncode(protocol.PromptPermission{RequestID: requestID}, bus.Page(testTab)))
	if err != nil {
		t.Fatalf("Request PROMPT_PERMISSION: %v", err)
	}
	result, err := protocol.DecodeResult(reply)
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	permissionResult, ok := result.(protocol.PermissionResult)
	if !ok {
		t.Fatalf("reply is %T", result)
	}
	return permissionResult
}

func (h *harness) send(t *testing.T, message protocol.Message) {
	t.Helper()
	if err := h.coordinator.Send(protocol.MustEncode(message, bus.Page(testTab))); err != nil {
		t.Fatalf("Send %s: %v", message.MessageType(), err)
	}
}

func (h *harness) gaze(t *testing.T, x, y float64) {
	t.Helper()
	h.send(t, protocol.GazePrediction{Point: &protocol.Point{X: x, Y: y}})
}

// settle waits until the page has handled everything sent before it by
// moving the dot to a sentinel position.
func (h *harness) settle(t *testing.T, x, y float64) {
	t.Helper()
	h.gaze(t, x, y)
	testutil.Eventually(t, waitTimeout, func() bool {
		dot := h.page.Dot()
		return dot.X == x && dot.Y == y
	}, "page handled prediction (%g, %g)", x, y)
}

func TestPromptGrantedThroughConsentFrame(t *testing.T) {
	h := newHarness(t, host.Allow, true)

	result := h.prompt(t, "prompt-1")
	if result.Status != protocol.Success || result.RequestID != "prompt-1" {
		t.Fatalf("result = %+v", result)
	}
	if h.page.PermissionState() != permission.Granted {
		t.Errorf("PermissionState = %q", h.page.PermissionState())
	}
	if frames := h.platform.Frames(); len(frames) != 0 {
		t.Errorf("consent frames left open: %v", frames)
	}
	if h.camera.OpenStreams() != 0 {
		t.Error("consent page left the camera open")
	}

	second := h.prompt(t, "prompt-2")
	if second.Status != protocol.Success {
		t.Fatalf("second result = %+v", second)
	}
	if got := h.camera.Requests(); got != 1 {
		t.Errorf("camera requested %d times, want the capture host check to answer the second prompt", got)
	}
}

func TestPromptDeniedReportsFailure(t *testing.T) {
	h := newHarness(t, host.Deny, true)

	result := h.prompt(t, "prompt-1")
	if result.Status != protocol.Failure || !strings.Contains(result.Reason, "permission denied") {
		t.Fatalf("result = %+v", result)
	}
	if h.page.PermissionState() != permission.Denied {
		t.Errorf("PermissionState = %q", h.page.PermissionState())
	}
	notices := h.platform.Notices()
	if len(notices) != 1 || notices[0] != permission.ConsentNotice {
		t.Errorf("notices = %v", notices)
	}
}

func TestGazeMovesDotAndFeedsTracker(t *testing.T) {
	h := newHarness(t, host.Allow, true)

	if dot := h.page.Dot(); dot.X != -5 || dot.Y != -5 || dot.Width != 10 {
		t.Fatalf("initial dot = %v", dot)
	}

	h.send(t, protocol.GazePrediction{})
	h.settle(t, 10, 30)

	var intro bool
	for _, element := range h.page.Engagement() {
		if element.Text == "Look here" {
			intro = true
			if element.GazeHits != 1 {
				t.Errorf("intro GazeHits = %d, want 1", element.GazeHits)
			}
		}
	}
	if !intro {
		t.Fatal("intro paragraph not tracked")
	}

	h.settle(t, 790, 590)
	h.gaze(t, 5000, 5000)
	h.settle(t, 0, 0)
	h.gaze(t, 5000, -20)
	testutil.Eventually(t, waitTimeout, func() bool {
		dot := h.page.Dot()
		return dot.X == 790 && dot.Y == 0
	}, "dot clamped to the viewport")
}

func TestDotFollowsScroll(t *testing.T) {
	h := newHarness(t, host.Allow, true)
	h.page.Do(func(document *dom.Document) { document.ScrollTo(0, 200) })

	h.gaze(t, 10, 10)
	testutil.Eventually(t, waitTimeout, func() bool {
		dot := h.page.Dot()
		return dot.X == 10 && dot.Y == 210
	}, "dot placed in document coordinates")
}

func TestToggleReveal(t *testing.T) {
	h := newHarness(t, host.Allow, true)

	h.gaze(t, 100, 100)
	h.send(t, protocol.ToggleReveal{Action: protocol.Start})
	h.settle(t, 200, 200)

	if !h.page.RevealActive() {
		t.Fatal("reveal not active after TOGGLE_REVEAL START")
	}
	if marks := h.page.RevealMarks(); len(marks) != 2 {
		t.Fatalf("marks = %v, want queued and live predictions", marks)
	}

	h.send(t, protocol.ToggleReveal{Action: protocol.Stop})
	h.settle(t, 300, 300)
	if h.page.RevealActive() {
		t.Error("reveal still active after STOP")
	}
	if marks := h.page.RevealMarks(); len(marks) != 2 {
		t.Errorf("marks after STOP = %d, want 2", len(marks))
	}

	var svg strings.Builder
	if err := h.page.RenderReveal(&svg); err != nil {
		t.Fatalf("RenderReveal: %v", err)
	}
	if strings.Count(svg.String(), "<circle") != 2 {
		t.Errorf("rendered overlay:\n%s", svg.String())
	}
}

func TestToggleRevealOnLoadingPage(t *testing.T) {
	h := newHarness(t, host.Allow, false)

	h.send(t, protocol.ToggleReveal{Action: protocol.Start})
	h.settle(t, 50, 50)
	if h.page.RevealActive() {
		t.Fatal("reveal enabled on a loading page")
	}
}

func TestHighlight(t *testing.T) {
	h := newHarness(t, host.Allow, true)
	if !h.page.Highlight("intro") {
		t.Fatal("Highlight(intro) = false")
	}
	if h.page.Highlight("missing") {
		t.Error("Highlight of a missing id succeeded")
	}
}
