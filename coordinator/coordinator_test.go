// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/gazeflow/bus"
	"github.com/bureau-foundation/gazeflow/host"
	"github.com/bureau-foundation/gazeflow/lib/clock"
	"github.com/bureau-foundation/gazeflow/lib/testutil"
	"github.com/bureau-foundation/gazeflow/protocol"
)

const (
	waitTimeout     = 5 * time.Second
	testTab         = 4
	captureDocument = "capture.html"
)

// fakeHost is a scriptable Host.
type fakeHost struct {
	mu        sync.Mutex
	activeTab int
	document  bool
	creations int
	closes    int
	createErr error

	// gate, when set, holds CreateDocument until closed or until the
	// creation's context ends.
	gate chan struct{}
}

func (h *fakeHost) ActiveTab(context.Context) (host.Tab, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.activeTab == 0 {
		return host.Tab{}, false
	}
	return host.Tab{ID: h.activeTab, Active: true}, true
}

func (h *fakeHost) HasDocument(context.Context, string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.document, nil
}

func (h *fakeHost) CreateDocument(ctx context.Context, path string) error {
	h.mu.Lock()
	h.creations++
	gate, createErr := h.gate, h.createErr
	h.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if createErr != nil {
		return createErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.document {
		return host.ErrDocumentExists
	}
	h.document = true
	return nil
}

func (h *fakeHost) CloseDocument(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.document {
		return host.ErrNoDocument
	}
	h.document = false
	h.closes++
	return nil
}

func (h *fakeHost) counts() (creations, closes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.creations, h.closes
}

type harness struct {
	memory      *bus.Memory
	host        *fakeHost
	coordinator *Coordinator

	// captured receives the type of every envelope the capture host
	// sees; relayed receives every prediction the page sees.
	captured chan string
	relayed  chan protocol.GazePrediction

	mu      sync.Mutex
	prompts int
	status  protocol.Status
}

type options struct {
	noPage        bool
	noCaptureHost bool
	clock         clock.Clock
	creation      time.Duration
}

func newHarness(t *testing.T, opts options) *harness {
	t.Helper()
	memory := bus.NewMemory(bus.MemoryConfig{InboxSize: 64})
	t.Cleanup(memory.Close)

	h := &harness{
		memory:   memory,
		host:     &fakeHost{activeTab: testTab},
		captured: make(chan string, 16),
		relayed:  make(chan protocol.GazePrediction, 16),
		status:   protocol.Success,
	}

	if !opts.noCaptureHost {
		_, err := memory.Register(bus.CaptureHost, func(delivery *bus.Delivery) bool {
			if delivery.Envelope.Target == bus.CaptureHost {
				h.captured <- delivery.Envelope.Type
			}
			return false
		})
		if err != nil {
			t.Fatalf("Register capture host: %v", err)
		}
	}

	if !opts.noPage {
		_, err := memory.Register(bus.Page(testTab), func(delivery *bus.Delivery) bool {
			message, err := protocol.Decode(delivery.Envelope)
			if err != nil {
				return false
			}
			switch message := message.(type) {
			case protocol.PromptPermission:
				h.mu.Lock()
				h.prompts++
				status := h.status
				h.mu.Unlock()
				result := protocol.PermissionResult{RequestID: message.RequestID, Status: status}
				if status == protocol.Failure {
					result.Reason = "permission denied: NotAllowedError: Permission denied"
				}
				go delivery.Reply(protocol.MustEncode(result, delivery.Sender))
				return true
			case protocol.GazePrediction:
				h.relayed <- message
			}
			return false
		})
		if err != nil {
			t.Fatalf("Register page: %v", err)
		}
	}

	coordinator, err := New(Config{
		Host:              h.host,
		Clock:             opts.clock,
		PermissionTimeout: time.Minute,
		CreationTimeout:   opts.creation,
		CaptureDocument:   captureDocument,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := coordinator.Attach(context.Background(), memory); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	h.coordinator = coordinator
	return h
}

func (h *harness) promptCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.prompts
}

func (h *harness) expectCaptured(t *testing.T, want string) {
	t.Helper()
	if got := testutil.RequireReceive(t, h.captured, waitTimeout, "capture host message"); got != want {
		t.Fatalf("capture host received %s, want %s", got, want)
	}
}

func (h *harness) expectNothingCaptured(t *testing.T) {
	t.Helper()
	select {
	case got := <-h.captured:
		t.Fatalf("capture host received %s", got)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{CaptureDocument: captureDocument}); err == nil {
		t.Error("New without Host succeeded")
	}
	if _, err := New(Config{Host: &fakeHost{}}); err == nil {
		t.Error("New without CaptureDocument succeeded")
	}
}

func TestStartCreatesCaptureHost(t *testing.T) {
	h := newHarness(t, options{})

	if err := h.coordinator.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h.coordinator.State() != Active {
		t.Fatalf("State = %s, want active", h.coordinator.State())
	}
	h.expectCaptured(t, string(protocol.TypeStartCapture))

	if err := h.coordinator.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if creations, _ := h.host.counts(); creations != 1 {
		t.Errorf("creations = %d, want 1", creations)
	}
	if h.promptCount() != 2 {
		t.Errorf("prompts = %d, want one per START", h.promptCount())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness(t, options{noCaptureHost: true})

	for range 2 {
		if err := h.coordinator.Stop(context.Background()); err != nil {
			t.Fatalf("Stop without capture host: %v", err)
		}
	}
	if h.coordinator.State() != Absent {
		t.Errorf("State = %s", h.coordinator.State())
	}

	h = newHarness(t, options{})
	if err := h.coordinator.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	h.expectCaptured(t, string(protocol.TypeStopCapture))
	if h.coordinator.State() != Absent {
		t.Errorf("Stop changed state to %s", h.coordinator.State())
	}
}

func TestConcurrentStartsCreateOnce(t *testing.T) {
	h := newHarness(t, options{})
	h.host.gate = make(chan struct{})

	errs := make(chan error, 2)
	for range 2 {
		go func() { errs <- h.coordinator.Start(context.Background()) }()
	}

	testutil.Eventually(t, waitTimeout, func() bool {
		h.coordinator.mu.Lock()
		defer h.coordinator.mu.Unlock()
		return h.coordinator.creation != nil && h.coordinator.creation.waiters == 1
	}, "second START joined the creation")
	if h.coordinator.State() != Creating {
		t.Fatalf("State = %s, want creating", h.coordinator.State())
	}

	close(h.host.gate)
	for range 2 {
		if err := testutil.RequireReceive(t, errs, waitTimeout, "Start result"); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	if creations, _ := h.host.counts(); creations != 1 {
		t.Fatalf("creations = %d, want 1", creations)
	}
	if h.coordinator.State() != Active {
		t.Fatalf("State = %s, want active", h.coordinator.State())
	}
	h.expectCaptured(t, string(protocol.TypeStartCapture))
	h.expectCaptured(t, string(protocol.TypeStartCapture))
}

func TestDeniedPermissionAbortsStart(t *testing.T) {
	h := newHarness(t, options{})
	h.status = protocol.Failure

	err := h.coordinator.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Start = %v, want ErrPermissionDenied", err)
	}
	if creations, _ := h.host.counts(); creations != 0 {
		t.Errorf("creations = %d, want 0", creations)
	}
	if h.coordinator.State() != Absent {
		t.Errorf("State = %s", h.coordinator.State())
	}
	h.expectNothingCaptured(t)
}

func TestStartWithoutActiveTab(t *testing.T) {
	h := newHarness(t, options{})
	h.host.activeTab = 0

	if err := h.coordinator.Start(context.Background()); !errors.Is(err, ErrNoActiveTab) {
		t.Fatalf("Start = %v, want ErrNoActiveTab", err)
	}
	if h.promptCount() != 0 {
		t.Error("page prompted with no active tab")
	}
}

func TestStartWithoutPage(t *testing.T) {
	h := newHarness(t, options{noPage: true})

	err := h.coordinator.Start(context.Background())
	if !errors.Is(err, bus.ErrNoReceiver) {
		t.Fatalf("Start = %v, want ErrNoReceiver", err)
	}
	if h.coordinator.State() != Absent {
		t.Errorf("State = %s", h.coordinator.State())
	}
}

func TestFailedCreationRevertsToAbsent(t *testing.T) {
	h := newHarness(t, options{})
	h.host.createErr = errors.New("document crashed")

	if err := h.coordinator.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded with a failing creation")
	}
	if h.coordinator.State() != Absent {
		t.Fatalf("State = %s, want absent", h.coordinator.State())
	}
	h.expectNothingCaptured(t)

	h.host.mu.Lock()
	h.host.createErr = nil
	h.host.mu.Unlock()
	if err := h.coordinator.Start(context.Background()); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	if creations, _ := h.host.counts(); creations != 2 {
		t.Errorf("creations = %d, want 2", creations)
	}
	if h.coordinator.State() != Active {
		t.Errorf("State = %s", h.coordinator.State())
	}
}

func TestCreationTimeout(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	h := newHarness(t, options{clock: fake, creation: 10 * time.Second})
	h.host.gate = make(chan struct{})

	result := make(chan error, 1)
	go func() { result <- h.coordinator.Install(context.Background()) }()

	fake.WaitForTimers(1)
	fake.Advance(10 * time.Second)

	err := testutil.RequireReceive(t, result, waitTimeout, "Install result")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Install = %v, want ErrTimeout", err)
	}
	if h.coordinator.State() != Absent {
		t.Errorf("State = %s, want absent", h.coordinator.State())
	}
}

func TestExistingDocumentIsAdopted(t *testing.T) {
	h := newHarness(t, options{})
	h.host.document = true

	if err := h.coordinator.Install(context.Background()); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if creations, _ := h.host.counts(); creations != 0 {
		t.Errorf("creations = %d, want 0", creations)
	}
	if h.coordinator.State() != Active {
		t.Errorf("State = %s", h.coordinator.State())
	}
}

func TestTeardown(t *testing.T) {
	h := newHarness(t, options{})
	if err := h.coordinator.Install(context.Background()); err != nil {
		t.Fatalf("Install: %v", err)
	}

	for range 2 {
		if err := h.coordinator.Teardown(context.Background()); err != nil {
			t.Fatalf("Teardown: %v", err)
		}
	}
	if _, closes := h.host.counts(); closes != 1 {
		t.Errorf("closes = %d, want 1", closes)
	}
	if h.coordinator.State() != Absent {
		t.Errorf("State = %s", h.coordinator.State())
	}

	if err := h.coordinator.Install(context.Background()); err != nil {
		t.Fatalf("Install after Teardown: %v", err)
	}
	if creations, _ := h.host.counts(); creations != 2 {
		t.Errorf("creations = %d, want a new capture host after teardown", creations)
	}
}

func TestRelayPrediction(t *testing.T) {
	h := newHarness(t, options{})
	ctx := context.Background()

	if !h.coordinator.RelayPrediction(ctx, protocol.GazePrediction{Point: &protocol.Point{X: 3, Y: 4}}) {
		t.Fatal("prediction not relayed")
	}
	relayed := testutil.RequireReceive(t, h.relayed, waitTimeout, "relayed prediction")
	if relayed.Point == nil || *relayed.Point != (protocol.Point{X: 3, Y: 4}) {
		t.Fatalf("relayed %+v", relayed.Point)
	}

	if h.coordinator.RelayPrediction(ctx, protocol.GazePrediction{}) {
		t.Error("empty prediction relayed")
	}

	h.host.mu.Lock()
	h.host.activeTab = 0
	h.host.mu.Unlock()
	if h.coordinator.RelayPrediction(ctx, protocol.GazePrediction{Point: &protocol.Point{X: 1, Y: 1}}) {
		t.Error("prediction relayed with no active tab")
	}

	h.host.mu.Lock()
	h.host.activeTab = testTab + 1
	h.host.mu.Unlock()
	if h.coordinator.RelayPrediction(ctx, protocol.GazePrediction{Point: &protocol.Point{X: 1, Y: 1}}) {
		t.Error("prediction relayed to a tab without a page")
	}
}

func TestBusMessages(t *testing.T) {
	h := newHarness(t, options{})
	control, err := h.memory.Register(bus.ControlSurface, func(*bus.Delivery) bool { return false })
	if err != nil {
		t.Fatalf("Register control: %v", err)
	}

	if err := control.Send(protocol.MustEncode(protocol.ToggleCapture{Action: protocol.Start}, "")); err != nil {
		t.Fatalf("Send TOGGLE_CAPTURE: %v", err)
	}
	h.expectCaptured(t, string(protocol.TypeStartCapture))
	if h.coordinator.State() != Active {
		t.Errorf("State = %s", h.coordinator.State())
	}

	capture, err := h.memory.Register("capture-probe", func(*bus.Delivery) bool { return false })
	if err != nil {
		t.Fatalf("Register probe: %v", err)
	}
	if err := capture.Send(protocol.MustEncode(protocol.GazePrediction{Point: &protocol.Point{X: 9, Y: 9}}, bus.Coordinator)); err != nil {
		t.Fatalf("Send GAZE_PREDICTION: %v", err)
	}
	relayed := testutil.RequireReceive(t, h.relayed, waitTimeout, "relayed prediction")
	if relayed.Point == nil || relayed.Point.X != 9 {
		t.Fatalf("relayed %+v", relayed.Point)
	}

	if err := control.Send(protocol.MustEncode(protocol.ToggleCapture{Action: protocol.Stop}, bus.Coordinator)); err != nil {
		t.Fatalf("Send TOGGLE_CAPTURE STOP: %v", err)
	}
	h.expectCaptured(t, string(protocol.TypeStopCapture))
}

func TestToggleReveal(t *testing.T) {
	h := newHarness(t, options{})
	if err := h.coordinator.ToggleReveal(context.Background(), "SIDEWAYS"); err == nil {
		t.Error("invalid action accepted")
	}
	if err := h.coordinator.ToggleReveal(context.Background(), protocol.Start); err != nil {
		t.Fatalf("ToggleReveal: %v", err)
	}

	h.host.mu.Lock()
	h.host.activeTab = 0
	h.host.mu.Unlock()
	if err := h.coordinator.ToggleReveal(context.Background(), protocol.Stop); !errors.Is(err, ErrNoActiveTab) {
		t.Errorf("ToggleReveal = %v, want ErrNoActiveTab", err)
	}
}
