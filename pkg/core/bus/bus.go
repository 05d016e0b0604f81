// Package bus provides the single process-wide event channel between the
// voice transport adapters and all in-process consumers.
//
// A Bus must be constructed exactly once per process and passed explicitly
// into every component that needs it. There is deliberately no package-level
// instance and no lazy accessor: two halves of the pipeline holding distinct
// bus instances manifests as total silent event loss, so the one New call
// site lives in the binary entrypoint and everything else receives the
// reference by injection.
package bus

import (
	"log/slog"
	"sync"
)

// Handler is a subscriber callback. Handlers for the same event name are
// invoked synchronously, in registration order, on the goroutine that calls
// Emit.
type Handler func(payload any)

// Subscription identifies one registered handler. It is returned by On and
// consumed by Off; releasing it removes exactly that handler.
type Subscription struct {
	event string
	id    uint64
}

// Event returns the event name the subscription was registered under.
func (s Subscription) Event() string { return s.event }

type entry struct {
	id uint64
	fn Handler
}

type topic struct {
	deliverMu sync.Mutex // serializes delivery for one event name
	entries   []entry
}

// Bus is a synchronous publish/subscribe channel. Emit is safe to call from
// any goroutine; delivery to a given event name's subscriber list is
// serialized so consumers never observe interleaved partial notifications.
type Bus struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	topics map[string]*topic
}

// New constructs the bus. Call it once per process.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		topics: make(map[string]*topic),
	}
}

// On registers fn for event and returns its subscription handle.
func (b *Bus) On(event string, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	tp := b.topics[event]
	if tp == nil {
		tp = &topic{}
		b.topics[event] = tp
	}
	tp.entries = append(tp.entries, entry{id: id, fn: fn})

	return Subscription{event: event, id: id}
}

// Off removes the handler identified by sub. Removing an already-removed or
// zero subscription is a no-op; other handlers are unaffected.
func (b *Bus) Off(sub Subscription) {
	if sub.id == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tp := b.topics[sub.event]
	if tp == nil {
		return
	}
	for i, e := range tp.entries {
		if e.id == sub.id {
			tp.entries = append(tp.entries[:i], tp.entries[i+1:]...)
			break
		}
	}
	if len(tp.entries) == 0 {
		delete(b.topics, sub.event)
	}
}

// Emit delivers payload to every handler currently registered for event.
// A panicking handler is recovered and logged; it never prevents delivery to
// the remaining handlers. Emitting an event with no subscribers is a no-op.
// Handlers must not re-emit the event name they are handling.
func (b *Bus) Emit(event string, payload any) {
	b.mu.Lock()
	tp := b.topics[event]
	if tp == nil {
		b.mu.Unlock()
		return
	}
	snapshot := make([]entry, len(tp.entries))
	copy(snapshot, tp.entries)
	b.mu.Unlock()

	tp.deliverMu.Lock()
	defer tp.deliverMu.Unlock()

	for _, e := range snapshot {
		b.deliver(event, e, payload)
	}
}

func (b *Bus) deliver(event string, e entry, payload any) {
	defer func() {
		if v := recover(); v != nil {
			b.logger.Error("subscriber panic",
				"event", event,
				"subscription_id", e.id,
				"panic", v,
			)
		}
	}()
	e.fn(payload)
}

// SubscriberCount returns the number of handlers registered for event.
func (b *Bus) SubscriberCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	tp := b.topics[event]
	if tp == nil {
		return 0
	}
	return len(tp.entries)
}
