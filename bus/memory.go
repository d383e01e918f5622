// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bureau-foundation/gazeflow/lib/codec"
)

// DefaultInboxSize is used when MemoryConfig.InboxSize is not positive.
const DefaultInboxSize = 256

// Port is what a context uses to talk to the others. *Endpoint
// implements it; tests substitute recording fakes.
type Port interface {
	ID() ContextID
	Send(envelope Envelope) error
	Request(ctx context.Context, envelope Envelope) (Envelope, error)
}

// Handler processes one delivery on the receiving context's event loop.
// It returns true when it has replied or will reply later, false to
// decline. Send deliveries ignore the return value.
type Handler func(delivery *Delivery) bool

// MemoryConfig configures NewMemory.
type MemoryConfig struct {
	InboxSize int
	Logger    *slog.Logger
}

// Memory is an in-process bus. Safe for concurrent use.
type Memory struct {
	inboxSize int
	logger    *slog.Logger

	mu        sync.Mutex
	endpoints map[ContextID]*Endpoint
	closed    bool
}

// NewMemory creates an empty bus.
func NewMemory(config MemoryConfig) *Memory {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	inboxSize := config.InboxSize
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	return &Memory{
		inboxSize: inboxSize,
		logger:    logger.With("component", "bus"),
		endpoints: make(map[ContextID]*Endpoint),
	}
}

// Register creates the context id and starts its event loop. Fails with
// ErrDuplicateContext if id is already registered.
func (m *Memory) Register(id ContextID, handler Handler) (*Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if _, exists := m.endpoints[id]; exists {
		return nil, fmt.Errorf("registering %s: %w", id, ErrDuplicateContext)
	}

	endpoint := &Endpoint{
		id:       id,
		bus:      m,
		handler:  handler,
		inbox:    make(chan inboundMessage, m.inboxSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		promised: make(map[*Delivery]struct{}),
	}
	m.endpoints[id] = endpoint
	go endpoint.loop()

	m.logger.Debug("context registered", "context", id)
	return endpoint, nil
}

// Exists reports whether id is registered.
func (m *Memory) Exists(id ContextID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.endpoints[id]
	return exists
}

// Contexts lists the registered ids in sorted order.
func (m *Memory) Contexts() []ContextID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]ContextID, 0, len(m.endpoints))
	for id := range m.endpoints {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close closes every endpoint. Further Register calls fail.
func (m *Memory) Close() {
	m.mu.Lock()
	m.closed = true
	endpoints := make([]*Endpoint, 0, len(m.endpoints))
	for _, endpoint := range m.endpoints {
		endpoints = append(endpoints, endpoint)
	}
	m.mu.Unlock()

	for _, endpoint := range endpoints {
		endpoint.Close()
	}
}

// recipients resolves who an envelope from sender goes to.
func (m *Memory) recipients(sender ContextID, envelope Envelope) []*Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	if envelope.Target != "" {
		if endpoint, ok := m.endpoints[envelope.Target]; ok {
			return []*Endpoint{endpoint}
		}
		return nil
	}

	var recipients []*Endpoint
	for id, endpoint := range m.endpoints {
		if id == sender || id.IsPage() {
			continue
		}
		recipients = append(recipients, endpoint)
	}
	return recipients
}

func (m *Memory) unregister(endpoint *Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endpoints[endpoint.id] == endpoint {
		delete(m.endpoints, endpoint.id)
	}
}

// inboundMessage is an encoded envelope waiting in a context's inbox.
type inboundMessage struct {
	sender  ContextID
	data    []byte
	request *pendingRequest
}

// Endpoint is one registered context.
type Endpoint struct {
	id      ContextID
	bus     *Memory
	handler Handler

	inbox     chan inboundMessage
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// promised holds request deliveries whose handler returned true
	// and that have not replied yet. Declined on Close.
	mu       sync.Mutex
	promised map[*Delivery]struct{}
}

// ID returns the context id.
func (e *Endpoint) ID() ContextID { return e.id }

// Done is closed when the endpoint closes.
func (e *Endpoint) Done() <-chan struct{} { return e.done }

// Send delivers envelope without waiting for any handler. Returns
// ErrNoReceiver when nothing matched and ErrInboxFull when every
// matching inbox was full.
func (e *Endpoint) Send(envelope Envelope) error {
	if e.isClosed() {
		return ErrClosed
	}
	data, err := codec.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", envelope.Type, err)
	}

	recipients := e.bus.recipients(e.id, envelope)
	if len(recipients) == 0 {
		return fmt.Errorf("sending %s: %w", envelope, ErrNoReceiver)
	}

	accepted := 0
	for _, recipient := range recipients {
		if recipient.enqueue(inboundMessage{sender: e.id, data: data}) {
			accepted++
		}
	}
	if accepted == 0 {
		return fmt.Errorf("sending %s: %w", envelope, ErrInboxFull)
	}
	return nil
}

// Request delivers envelope and waits for the first reply, for every
// candidate to decline (ErrNoResponse), or for ctx to end.
func (e *Endpoint) Request(ctx context.Context, envelope Envelope) (Envelope, error) {
	if e.isClosed() {
		return Envelope{}, ErrClosed
	}
	data, err := codec.Marshal(envelope)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s: %w", envelope.Type, err)
	}

	recipients := e.bus.recipients(e.id, envelope)
	if len(recipients) == 0 {
		return Envelope{}, fmt.Errorf("requesting %s: %w", envelope, ErrNoReceiver)
	}

	request := newPendingRequest(len(recipients))
	for _, recipient := range recipients {
		if !recipient.enqueue(inboundMessage{sender: e.id, data: data, request: request}) {
			request.decline()
		}
	}

	select {
	case reply := <-request.replies:
		return reply, nil
	case <-request.declined:
		// A reply may have raced the final decline.
		select {
		case reply := <-request.replies:
			return reply, nil
		default:
		}
		return Envelope{}, fmt.Errorf("requesting %s: %w", envelope, ErrNoResponse)
	case <-ctx.Done():
		return Envelope{}, fmt.Errorf("requesting %s: %w", envelope, ctx.Err())
	case <-e.done:
		return Envelope{}, ErrClosed
	}
}

// Close unregisters the context, stops its loop, and declines every
// request it promised to answer. Safe to call more than once, including
// from the context's own handler.
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() {
		e.bus.unregister(e)
		close(e.done)

		e.mu.Lock()
		promised := e.promised
		e.promised = make(map[*Delivery]struct{})
		e.mu.Unlock()
		for delivery := range promised {
			delivery.settle()
		}

		e.bus.logger.Debug("context closed", "context", e.id)
	})
}

func (e *Endpoint) isClosed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *Endpoint) enqueue(message inboundMessage) bool {
	if e.isClosed() {
		return false
	}
	select {
	case e.inbox <- message:
		return true
	default:
		e.bus.logger.Warn("inbox full, dropping message", "context", e.id, "sender", message.sender)
		return false
	}
}

func (e *Endpoint) loop() {
	defer close(e.stopped)
	for {
		select {
		case <-e.done:
			e.drain()
			return
		case message := <-e.inbox:
			e.dispatch(message)
		}
	}
}

// drain declines requests still queued when the context closed.
func (e *Endpoint) drain() {
	for {
		select {
		case message := <-e.inbox:
			if message.request != nil {
				message.request.decline()
			}
		default:
			return
		}
	}
}

func (e *Endpoint) dispatch(message inboundMessage) {
	var envelope Envelope
	if err := codec.Unmarshal(message.data, &envelope); err != nil {
		diagnostic, _ := codec.Diagnose(message.data)
		e.bus.logger.Warn("dropping undecodable message",
			"context", e.id,
			"sender", message.sender,
			"error", err,
			"data", diagnostic,
		)
		if message.request != nil {
			message.request.decline()
		}
		return
	}

	delivery := &Delivery{
		Envelope: envelope,
		Sender:   message.sender,
		endpoint: e,
		request:  message.request,
	}
	willReply := e.handler(delivery)

	if delivery.request == nil {
		return
	}
	if !willReply {
		delivery.settle()
		return
	}

	// The handler promised a reply. If it already replied, settle was
	// called; otherwise remember it so Close can decline it.
	e.mu.Lock()
	if !delivery.isSettled() && !e.isClosed() {
		e.promised[delivery] = struct{}{}
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	if e.isClosed() {
		delivery.settle()
	}
}

// Delivery is one envelope handed to a context's handler.
type Delivery struct {
	Envelope Envelope
	Sender   ContextID

	endpoint *Endpoint
	request  *pendingRequest

	mu      sync.Mutex
	settled bool
}

// ExpectsReply reports whether the sender is waiting on Reply.
func (d *Delivery) ExpectsReply() bool { return d.request != nil }

// Reply answers a request. Returns false for Send deliveries, for a
// second reply, and when another context already answered first. Safe
// to call from any goroutine.
func (d *Delivery) Reply(envelope Envelope) bool {
	if d.request == nil {
		return false
	}

	d.mu.Lock()
	if d.settled {
		d.mu.Unlock()
		return false
	}
	d.settled = true
	d.mu.Unlock()

	// Round-trip through the codec so the requester never aliases the
	// replier's payload bytes.
	data, err := codec.Marshal(envelope)
	if err == nil {
		var decoded Envelope
		if err = codec.Unmarshal(data, &decoded); err == nil {
			envelope = decoded
		}
	}
	if err != nil {
		d.endpoint.bus.logger.Warn("dropping unencodable reply", "context", d.endpoint.id, "type", envelope.Type, "error", err)
		d.forget()
		d.request.decline()
		return false
	}

	d.forget()
	return d.request.answer(envelope)
}

// settle declines the request on behalf of this delivery if it has not
// replied.
func (d *Delivery) settle() {
	d.mu.Lock()
	if d.settled {
		d.mu.Unlock()
		return
	}
	d.settled = true
	d.mu.Unlock()
	d.request.decline()
}

func (d *Delivery) isSettled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled
}

func (d *Delivery) forget() {
	d.endpoint.mu.Lock()
	delete(d.endpoint.promised, d)
	d.endpoint.mu.Unlock()
}

// pendingRequest collects the single answer to a Request.
type pendingRequest struct {
	replies  chan Envelope
	declined chan struct{}

	mu          sync.Mutex
	outstanding int
	answered    bool
}

func newPendingRequest(candidates int) *pendingRequest {
	return &pendingRequest{
		replies:     make(chan Envelope, 1),
		declined:    make(chan struct{}),
		outstanding: candidates,
	}
}

func (r *pendingRequest) answer(envelope Envelope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outstanding--
	if r.answered {
		return false
	}
	r.answered = true
	r.replies <- envelope
	return true
}

func (r *pendingRequest) decline() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outstanding--
	if r.outstanding == 0 && !r.answered {
		close(r.declined)
	}
}
