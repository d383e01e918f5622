// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/gazeflow/bus"
	"github.com/bureau-foundation/gazeflow/capture"
	"github.com/bureau-foundation/gazeflow/lib/clock"
	"github.com/bureau-foundation/gazeflow/lib/testutil"
	"github.com/bureau-foundation/gazeflow/protocol"
)

const (
	waitTimeout = 5 * time.Second
	testTab     = 3
)

type fakeStream struct{}

func (fakeStream) Stop() {}

// fakeDevices grants or refuses every request.
type fakeDevices struct {
	err error
}

func (d fakeDevices) GetUserMedia(context.Context, capture.Constraints) (capture.Stream, error) {
	if d.err != nil {
		return nil, d.err
	}
	return fakeStream{}, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []string
}

func (n *recordingNotifier) Alert(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, message)
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.notices...)
}

type testFrame struct {
	embedder  *testEmbedder
	requestID string
	endpoint  *bus.Endpoint
}

func (f *testFrame) Remove() error {
	f.embedder.mu.Lock()
	f.embedder.removed = append(f.embedder.removed, f.requestID)
	f.embedder.mu.Unlock()
	if f.endpoint != nil {
		f.endpoint.Close()
	}
	return nil
}

// testEmbedder opens frames that either run a real ConsentPage or, when
// silent, never answer.
type testEmbedder struct {
	memory   *bus.Memory
	devices  capture.MediaDevices
	notifier *recordingNotifier
	silent   bool

	mu      sync.Mutex
	opened  []string
	removed []string
	openedC chan string
}

func (e *testEmbedder) OpenFrame(ctx context.Context, tabID int, requestID string) (Frame, error) {
	e.mu.Lock()
	e.opened = append(e.opened, requestID)
	e.mu.Unlock()
	if e.openedC != nil {
		e.openedC <- requestID
	}

	frame := &testFrame{embedder: e, requestID: requestID}
	if e.silent {
		return frame, nil
	}
	page, err := NewConsentPage(ConsentConfig{
		TabID:     tabID,
		RequestID: requestID,
		Devices:   e.devices,
		Notifier:  e.notifier,
	})
	if err != nil {
		return nil, err
	}
	if frame.endpoint, err = page.Attach(e.memory); err != nil {
		return nil, err
	}
	go page.Run(ctx)
	return frame, nil
}

func (e *testEmbedder) counts() (opened, removed int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.opened), len(e.removed)
}

type harness struct {
	memory   *bus.Memory
	broker   *Broker
	embedder *testEmbedder
	notifier *recordingNotifier
}

// newHarness wires a page context whose handler feeds CONSENT_RESULT to
// the broker. checkGranted is nil for "no capture host registered".
func newHarness(t *testing.T, checkGranted *bool, devices capture.MediaDevices, options ...func(*Config)) *harness {
	t.Helper()
	memory := bus.NewMemory(bus.MemoryConfig{})
	t.Cleanup(memory.Close)

	if checkGranted != nil {
		granted := *checkGranted
		_, err := memory.Register(bus.CaptureHost, func(delivery *bus.Delivery) bool {
			result := protocol.CheckPermissionResult{Granted: granted}
			if !granted {
				result.Reason = "prompt"
			}
			return delivery.Reply(protocol.MustEncode(result, delivery.Sender))
		})
		if err != nil {
			t.Fatalf("Register capture host: %v", err)
		}
	}

	h := &harness{memory: memory, notifier: &recordingNotifier{}}
	h.embedder = &testEmbedder{memory: memory, devices: devices, notifier: h.notifier}

	var broker *Broker
	var brokerReady sync.WaitGroup
	brokerReady.Add(1)
	page, err := memory.Register(bus.Page(testTab), func(delivery *bus.Delivery) bool {
		brokerReady.Wait()
		message, err := protocol.Decode(delivery.Envelope)
		if err != nil {
			return false
		}
		if result, ok := message.(protocol.ConsentResult); ok {
			broker.Deliver(result)
		}
		return false
	})
	if err != nil {
		t.Fatalf("Register page: %v", err)
	}

	config := Config{Port: page, TabID: testTab, Embedder: h.embedder}
	for _, option := range options {
		option(&config)
	}
	broker, err = NewBroker(config)
	brokerReady.Done()
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}
	h.broker = broker
	return h
}

func boolPointer(value bool) *bool { return &value }

func TestRequestGrantedByCaptureHost(t *testing.T) {
	h := newHarness(t, boolPointer(true), fakeDevices{})

	if err := h.broker.Request(context.Background()); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if opened, _ := h.embedder.counts(); opened != 0 {
		t.Errorf("opened %d consent frames, want 0", opened)
	}
	if h.broker.State() != Granted {
		t.Errorf("State = %q", h.broker.State())
	}
}

func TestFallbackOpensOneFrameAndRemovesIt(t *testing.T) {
	h := newHarness(t, boolPointer(false), fakeDevices{})

	if err := h.broker.Request(context.Background()); err != nil {
		t.Fatalf("Request: %v", err)
	}
	opened, removed := h.embedder.counts()
	if opened != 1 || removed != 1 {
		t.Fatalf("frames opened=%d removed=%d, want 1 and 1", opened, removed)
	}
	if h.broker.Pending() != 0 {
		t.Errorf("Pending = %d after resolution", h.broker.Pending())
	}
	if h.broker.State() != Granted {
		t.Errorf("State = %q", h.broker.State())
	}
	testutil.Eventually(t, waitTimeout, func() bool {
		return len(h.memory.Contexts()) == 2
	}, "consent context torn down")
}

func TestFallbackWhenCaptureHostAbsent(t *testing.T) {
	h := newHarness(t, nil, fakeDevices{})

	if err := h.broker.Request(context.Background()); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if opened, _ := h.embedder.counts(); opened != 1 {
		t.Errorf("opened %d consent frames, want 1", opened)
	}
}

func TestFallbackDenied(t *testing.T) {
	refusal := &capture.DeviceError{Name: capture.NotAllowedError, Message: capture.PermissionDeniedMessage}
	h := newHarness(t, boolPointer(false), fakeDevices{err: refusal})

	err := h.broker.Request(context.Background())
	if !IsDenied(err) {
		t.Fatalf("Request = %v, want DeniedError", err)
	}
	var denied *DeniedError
	errors.As(err, &denied)
	if denied.Reason != refusal.Error() {
		t.Errorf("Reason = %q", denied.Reason)
	}
	if notices := h.notifier.all(); len(notices) != 1 || notices[0] != ConsentNotice {
		t.Errorf("notices = %v", notices)
	}
	if _, removed := h.embedder.counts(); removed != 1 {
		t.Errorf("frame removed %d times", removed)
	}
	if h.broker.State() != Denied {
		t.Errorf("State = %q", h.broker.State())
	}
}

func TestMissingDeviceDeniedWithoutNotice(t *testing.T) {
	missing := &capture.DeviceError{Name: capture.NotFoundError, Message: "Requested device not found"}
	h := newHarness(t, boolPointer(false), fakeDevices{err: missing})

	if err := h.broker.Request(context.Background()); !IsDenied(err) {
		t.Fatalf("Request = %v, want DeniedError", err)
	}
	if notices := h.notifier.all(); len(notices) != 0 {
		t.Errorf("notices = %v, want none", notices)
	}
}

func TestConsentTimeout(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	h := newHarness(t, boolPointer(false), fakeDevices{}, func(config *Config) {
		config.Clock = fake
		config.Timeout = time.Minute
	})
	h.embedder.silent = true

	result := make(chan error, 1)
	go func() { result <- h.broker.Request(context.Background()) }()

	fake.WaitForTimers(1)
	fake.Advance(time.Minute)

	err := testutil.RequireReceive(t, result, waitTimeout, "request result")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Request = %v, want ErrTimeout", err)
	}
	if _, removed := h.embedder.counts(); removed != 1 {
		t.Errorf("frame removed %d times after timeout", removed)
	}
	if h.broker.State() != Unknown {
		t.Errorf("State = %q after timeout", h.broker.State())
	}
}

func TestConcurrentRequestsResolveIndependently(t *testing.T) {
	h := newHarness(t, boolPointer(false), fakeDevices{})
	h.embedder.silent = true
	h.embedder.openedC = make(chan string, 2)

	first := make(chan error, 1)
	second := make(chan error, 1)
	go func() { first <- h.broker.Request(context.Background()) }()
	firstID := testutil.RequireReceive(t, h.embedder.openedC, waitTimeout, "first frame")
	go func() { second <- h.broker.Request(context.Background()) }()
	secondID := testutil.RequireReceive(t, h.embedder.openedC, waitTimeout, "second frame")

	if firstID == secondID {
		t.Fatalf("both requests got id %s", firstID)
	}

	if !h.broker.Deliver(protocol.ConsentResult{RequestID: secondID, Granted: true}) {
		t.Fatal("Deliver(second) not routed")
	}
	if err := testutil.RequireReceive(t, second, waitTimeout, "second result"); err != nil {
		t.Fatalf("second Request = %v", err)
	}
	select {
	case err := <-first:
		t.Fatalf("first request resolved by the second's answer: %v", err)
	default:
	}

	if !h.broker.Deliver(protocol.ConsentResult{RequestID: firstID, Reason: "dismissed"}) {
		t.Fatal("Deliver(first) not routed")
	}
	if err := testutil.RequireReceive(t, first, waitTimeout, "first result"); !IsDenied(err) {
		t.Fatalf("first Request = %v, want DeniedError", err)
	}

	if h.broker.Deliver(protocol.ConsentResult{RequestID: firstID, Granted: true}) {
		t.Error("second answer for the same request was routed")
	}
	if h.broker.Deliver(protocol.ConsentResult{RequestID: "unknown"}) {
		t.Error("answer for an unknown request was routed")
	}
}

func TestDeniedErrorMessage(t *testing.T) {
	if got := (&DeniedError{}).Error(); got != "permission denied" {
		t.Errorf("Error() = %q", got)
	}
	wrapped := errors.Join(errors.New("start"), &DeniedError{Reason: "NotAllowedError"})
	if !IsDenied(wrapped) {
		t.Error("IsDenied missed a wrapped DeniedError")
	}
}
