// Package dispatch implements the engine's event dispatcher: named
// subscribe/emit with re-entrancy safety. It is the mechanism by which
// nodes hand off execution to one another without growing the call
// stack, and by which resources announce version changes.
package dispatch

import (
	"log/slog"
	"sync"
)

// Handler receives an emitted payload. A handler that panics is
// recovered and logged; it does not cancel other handlers or pending
// queued events.
type Handler func(payload any)

// pending is one queued emit waiting to be drained.
type pending struct {
	event   string
	payload any
}

// Dispatcher is a named-event pub/sub point with a single important
// property: emit never recurses into itself. A handler that calls Emit
// while already inside an Emit call has its event enqueued; the
// outermost Emit call drains the queue iteratively until it is empty.
// This keeps chains like execute->next->emit->handler->execute from
// ever growing the Go call stack, no matter how many nodes are chained.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	queue    []pending
	emitting bool

	logger *slog.Logger
	debug  bool
}

// New creates a Dispatcher ready for use. A nil logger is replaced with
// slog.Default().
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// SetDebug toggles per-emit logging. Off by default; hot paths must not
// pay for synchronous I/O when this is false, so the check happens
// before any logging call is constructed.
func (d *Dispatcher) SetDebug(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.debug = on
}

// On registers a handler for event. Handlers for one event fire in
// registration order.
func (d *Dispatcher) On(event string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[event] = append(d.handlers[event], h)
}

// Emit delivers payload to every handler currently registered for
// event. If a dispatch is already in progress on this Dispatcher (Emit
// re-entered from inside a handler, or called from another goroutine
// while a drain runs), the event is enqueued and Emit returns
// immediately; the Emit call that started the drain is responsible for
// draining the queue.
func (d *Dispatcher) Emit(event string, payload any) {
	d.mu.Lock()
	if d.debug {
		d.logger.Debug("dispatch emit", "event", event)
	}
	if d.emitting {
		d.queue = append(d.queue, pending{event: event, payload: payload})
		d.mu.Unlock()
		return
	}
	d.emitting = true
	d.queue = append(d.queue, pending{event: event, payload: payload})
	d.mu.Unlock()

	d.drain()
}

// drain runs until the queue is empty, dispatching to handlers outside
// the lock so a handler is free to call Emit/On without deadlocking.
func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.emitting = false
			d.mu.Unlock()
			return
		}
		next := d.queue[0]
		d.queue = d.queue[1:]
		hs := append([]Handler(nil), d.handlers[next.event]...)
		d.mu.Unlock()

		for _, h := range hs {
			d.invoke(next.event, h, next.payload)
		}
	}
}

// invoke calls h, recovering and logging any panic so that one bad
// handler cannot take down the dispatcher or skip subsequent handlers
// and queued events.
func (d *Dispatcher) invoke(event string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch handler panic", "event", event, "panic", r)
		}
	}()
	h(payload)
}
