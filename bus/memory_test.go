// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/gazeflow/lib/testutil"
)

const waitTimeout = 5 * time.Second

func newTestBus(t *testing.T) *Memory {
	t.Helper()
	memory := NewMemory(MemoryConfig{InboxSize: 8})
	t.Cleanup(memory.Close)
	return memory
}

func register(t *testing.T, memory *Memory, id ContextID, handler Handler) *Endpoint {
	t.Helper()
	endpoint, err := memory.Register(id, handler)
	if err != nil {
		t.Fatalf("Register(%s): %v", id, err)
	}
	return endpoint
}

func recorder(deliveries chan<- *Delivery) Handler {
	return func(delivery *Delivery) bool {
		deliveries <- delivery
		return false
	}
}

func TestSendTargetedReachesOnlyTarget(t *testing.T) {
	memory := newTestBus(t)
	captured := make(chan *Delivery, 4)
	other := make(chan *Delivery, 4)

	sender := register(t, memory, Coordinator, func(*Delivery) bool { return false })
	register(t, memory, CaptureHost, recorder(captured))
	register(t, memory, ControlSurface, recorder(other))

	if err := sender.Send(Envelope{Type: "STOP_CAPTURE", Target: CaptureHost}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	delivery := testutil.RequireReceive(t, captured, waitTimeout, "capture host delivery")
	if delivery.Envelope.Type != "STOP_CAPTURE" || delivery.Sender != Coordinator {
		t.Fatalf("delivery = %+v from %s", delivery.Envelope, delivery.Sender)
	}
	if delivery.ExpectsReply() {
		t.Error("Send delivery should not expect a reply")
	}

	select {
	case unexpected := <-other:
		t.Fatalf("control surface received %s", unexpected.Envelope.Type)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSendBroadcastSkipsSenderAndPages(t *testing.T) {
	memory := newTestBus(t)
	coordinator := make(chan *Delivery, 4)
	page := make(chan *Delivery, 4)
	self := make(chan *Delivery, 4)

	sender := register(t, memory, CaptureHost, recorder(self))
	register(t, memory, Coordinator, recorder(coordinator))
	register(t, memory, Page(3), recorder(page))

	if err := sender.Send(Envelope{Type: "GAZE_PREDICTION"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	testutil.RequireReceive(t, coordinator, waitTimeout, "coordinator delivery")

	select {
	case <-page:
		t.Fatal("page context received an untargeted envelope")
	case <-self:
		t.Fatal("sender received its own envelope")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSendToMissingContext(t *testing.T) {
	memory := newTestBus(t)
	sender := register(t, memory, Coordinator, func(*Delivery) bool { return false })

	err := sender.Send(Envelope{Type: "GAZE_PREDICTION", Target: Page(99)})
	if !errors.Is(err, ErrNoReceiver) {
		t.Fatalf("Send = %v, want ErrNoReceiver", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	memory := newTestBus(t)
	register(t, memory, CaptureHost, func(*Delivery) bool { return false })

	_, err := memory.Register(CaptureHost, func(*Delivery) bool { return false })
	if !errors.Is(err, ErrDuplicateContext) {
		t.Fatalf("Register = %v, want ErrDuplicateContext", err)
	}
}

func TestRequestAsyncReply(t *testing.T) {
	memory := newTestBus(t)
	requester := register(t, memory, Page(1), func(*Delivery) bool { return false })
	register(t, memory, CaptureHost, func(delivery *Delivery) bool {
		go delivery.Reply(Envelope{Type: "CHECK_PERMISSION_RESULT"})
		return true
	})

	reply, err := requester.Request(context.Background(), Envelope{Type: "CHECK_PERMISSION", Target: CaptureHost})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if reply.Type != "CHECK_PERMISSION_RESULT" {
		t.Fatalf("reply type = %q", reply.Type)
	}
}

func TestRequestKeepsFirstReplyOnly(t *testing.T) {
	memory := newTestBus(t)
	second := make(chan bool, 1)
	requester := register(t, memory, ControlSurface, func(*Delivery) bool { return false })
	register(t, memory, CaptureHost, func(delivery *Delivery) bool {
		delivery.Reply(Envelope{Type: "FIRST"})
		second <- delivery.Reply(Envelope{Type: "SECOND"})
		return true
	})

	reply, err := requester.Request(context.Background(), Envelope{Type: "PING", Target: CaptureHost})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if reply.Type != "FIRST" {
		t.Fatalf("reply = %q, want FIRST", reply.Type)
	}
	if testutil.RequireReceive(t, second, waitTimeout, "second reply result") {
		t.Error("second Reply should return false")
	}
}

func TestRequestAllDecline(t *testing.T) {
	memory := newTestBus(t)
	requester := register(t, memory, ControlSurface, func(*Delivery) bool { return false })
	register(t, memory, Coordinator, func(*Delivery) bool { return false })
	register(t, memory, CaptureHost, func(*Delivery) bool { return false })

	_, err := requester.Request(context.Background(), Envelope{Type: "PING"})
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("Request = %v, want ErrNoResponse", err)
	}
}

func TestRequestDeclinedWhenPromiserCloses(t *testing.T) {
	memory := newTestBus(t)
	promised := make(chan struct{})
	requester := register(t, memory, Page(4), func(*Delivery) bool { return false })
	frame := register(t, memory, Consent("r-1"), func(*Delivery) bool {
		close(promised)
		return true
	})

	result := make(chan error, 1)
	go func() {
		_, err := requester.Request(context.Background(), Envelope{Type: "PING", Target: Consent("r-1")})
		result <- err
	}()

	testutil.RequireClosed(t, promised, waitTimeout, "handler promised a reply")
	frame.Close()

	err := testutil.RequireReceive(t, result, waitTimeout, "request result")
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("Request = %v, want ErrNoResponse", err)
	}
	if memory.Exists(Consent("r-1")) {
		t.Error("closed context still registered")
	}
}

func TestRequestHonorsContext(t *testing.T) {
	memory := newTestBus(t)
	requester := register(t, memory, ControlSurface, func(*Delivery) bool { return false })
	register(t, memory, Coordinator, func(*Delivery) bool { return true })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := requester.Request(ctx, Envelope{Type: "PING", Target: Coordinator})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Request = %v, want DeadlineExceeded", err)
	}
}

func TestHandlersRunSequentially(t *testing.T) {
	memory := newTestBus(t)
	active := 0
	overlapped := make(chan struct{}, 1)
	finished := make(chan struct{}, 16)

	sender := register(t, memory, ControlSurface, func(*Delivery) bool { return false })
	register(t, memory, Coordinator, func(*Delivery) bool {
		active++
		if active > 1 {
			overlapped <- struct{}{}
		}
		time.Sleep(time.Millisecond)
		active--
		finished <- struct{}{}
		return false
	})

	for range 5 {
		if err := sender.Send(Envelope{Type: "TICK", Target: Coordinator}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	for range 5 {
		testutil.RequireReceive(t, finished, waitTimeout, "handler finished")
	}
	select {
	case <-overlapped:
		t.Fatal("handlers of one context overlapped")
	default:
	}
}

func TestInboxFullDrops(t *testing.T) {
	memory := NewMemory(MemoryConfig{InboxSize: 1})
	t.Cleanup(memory.Close)

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	sender := register(t, memory, ControlSurface, func(*Delivery) bool { return false })
	register(t, memory, Coordinator, func(*Delivery) bool {
		entered <- struct{}{}
		<-release
		return false
	})

	if err := sender.Send(Envelope{Type: "A", Target: Coordinator}); err != nil {
		t.Fatalf("Send A: %v", err)
	}
	testutil.RequireReceive(t, entered, waitTimeout, "first handler running")
	if err := sender.Send(Envelope{Type: "B", Target: Coordinator}); err != nil {
		t.Fatalf("Send B: %v", err)
	}
	err := sender.Send(Envelope{Type: "C", Target: Coordinator})
	close(release)
	if !errors.Is(err, ErrInboxFull) {
		t.Fatalf("Send C = %v, want ErrInboxFull", err)
	}
}

func TestContextIDTabID(t *testing.T) {
	tabID, ok := Page(42).TabID()
	if !ok || tabID != 42 {
		t.Fatalf("Page(42).TabID() = %d, %v", tabID, ok)
	}
	if _, ok := CaptureHost.TabID(); ok {
		t.Error("capture host should not have a tab id")
	}
	if !Page(1).IsPage() || Consent("x").IsPage() {
		t.Error("IsPage misclassified a context")
	}
}
