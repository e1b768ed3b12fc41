// Package observer implements the engine's lossy notification fan-out
// (spec §4.7): every resource update and node/pipeline lifecycle
// message is pushed through a bounded, drop-oldest-on-full queue per
// observer. A slow or dead observer never backs up the pipeline
// worker, and is removed once its send budget is exhausted.
package observer

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// DefaultCapacity is the queue depth used when a Hub is constructed
// with capacity <= 0 (spec §4.7 "default capacity 10").
const DefaultCapacity = 10

// DefaultSendTimeout bounds how long an observer's drain loop waits for
// its Sink to accept one message before that observer is evicted from
// the active set. Publish itself never waits on a Sink.
const DefaultSendTimeout = 2 * time.Second

// Sink is anything that can accept one outbound notification. The
// websocket adapter in websocket.go implements this by writing a JSON
// text frame; tests use an in-memory slice sink.
type Sink interface {
	// Send delivers payload. A returned error marks the observer for
	// removal; Send must not block indefinitely.
	Send(payload []byte) error
}

// observer is one subscriber's bounded mailbox, drained by its own
// goroutine so one slow Sink never blocks another's delivery.
type observer struct {
	id       string
	sink     Sink
	mu       sync.Mutex
	queue    [][]byte
	capacity int
	wake     chan struct{}
	done     chan struct{}
}

// Hub fans a single stream of messages out to N bounded per-observer
// queues. Capacity and SendTimeout are fixed for the lifetime of a Hub.
type Hub struct {
	mu          sync.Mutex
	observers   map[string]*observer
	capacity    int
	sendTimeout time.Duration
	logger      *slog.Logger
}

// New returns an empty Hub. capacity <= 0 uses DefaultCapacity;
// sendTimeout <= 0 uses DefaultSendTimeout.
func New(capacity int, sendTimeout time.Duration, logger *slog.Logger) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		observers:   make(map[string]*observer),
		capacity:    capacity,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Subscribe registers sink under id and starts its drain goroutine.
// A later Subscribe under the same id replaces and stops the earlier
// one.
func (h *Hub) Subscribe(id string, sink Sink) {
	h.mu.Lock()
	if old, exists := h.observers[id]; exists {
		close(old.done)
	}
	o := &observer{
		id:       id,
		sink:     sink,
		capacity: h.capacity,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	h.observers[id] = o
	h.mu.Unlock()

	go h.drain(o)
}

// Unsubscribe stops draining and removes id from the active set.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if o, exists := h.observers[id]; exists {
		close(o.done)
		delete(h.observers, id)
	}
}

// Count returns the number of active observers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Publish marshals msg to JSON and enqueues it on every active
// observer's mailbox, evicting that observer's oldest pending message
// if its queue is already at capacity. Marshal failures are logged and
// dropped; they never propagate to the caller (the pipeline worker).
func (h *Hub) Publish(msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("observer: marshal notification failed", "error", err)
		return
	}

	h.mu.Lock()
	targets := make([]*observer, 0, len(h.observers))
	for _, o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.Unlock()

	for _, o := range targets {
		o.enqueue(payload)
	}
}

func (o *observer) enqueue(payload []byte) {
	o.mu.Lock()
	if len(o.queue) >= o.capacity {
		o.queue = o.queue[1:]
	}
	o.queue = append(o.queue, payload)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *observer) pop() ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return nil, false
	}
	next := o.queue[0]
	o.queue = o.queue[1:]
	return next, true
}

// drain delivers one observer's queue until it is unsubscribed or its
// Sink errors, in which case the Hub removes it.
func (h *Hub) drain(o *observer) {
	for {
		select {
		case <-o.done:
			return
		case <-o.wake:
		}

		for {
			payload, ok := o.pop()
			if !ok {
				break
			}
			if err := sendWithTimeout(o.sink, payload, h.sendTimeout); err != nil {
				h.logger.Warn("observer: send failed, removing", "observer", o.id, "error", err)
				h.Unsubscribe(o.id)
				return
			}
		}
	}
}

// sendWithTimeout runs sink.Send on its own goroutine and returns a
// timeout error if it does not complete within timeout. The goroutine
// is abandoned on timeout (the Sink is expected to be evicted anyway).
func sendWithTimeout(sink Sink, payload []byte, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- sink.Send(payload) }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		return errSendTimeout
	}
}

var errSendTimeout = sendTimeoutError{}

type sendTimeoutError struct{}

func (sendTimeoutError) Error() string { return "observer: send timed out" }
