// Package eventbus implements the per-session, EventKind-keyed
// publish/subscribe fan-out used to stream observable occurrences to
// external observers (§4.5).
package eventbus

import (
	"log"
	"sync"

	"github.com/dsimlab/distsim/packages/core/event"
)

// Listener receives published events for the kinds it subscribed to.
// Listeners must either be cheap or hand off — delivery is synchronous
// relative to the publisher.
type Listener func(event.Event)

// SubscriptionId identifies a prior Subscribe call so it can later be
// removed with Unsubscribe. Go function values are not comparable, so the
// bus hands back an opaque token rather than requiring the caller to
// re-supply the original listener value.
type SubscriptionId uint64

type subscription struct {
	id       SubscriptionId
	listener Listener
}

// EventBus fans events out to subscribers keyed by event.Kind, in
// subscription order, synchronously relative to the publisher. It is safe
// for concurrent subscribe/unsubscribe/publish.
type EventBus struct {
	mu        sync.RWMutex
	listeners map[event.Kind][]subscription
	allKinds  []subscription // subscribers registered against every kind
	nextId    SubscriptionId
	closed    bool
	logger    *log.Logger
}

// New creates an empty EventBus. A nil logger defaults to log.Default().
func New(logger *log.Logger) *EventBus {
	if logger == nil {
		logger = log.Default()
	}
	return &EventBus{
		listeners: make(map[event.Kind][]subscription),
		logger:    logger,
	}
}

// Subscribe registers listener for a specific event.Kind and returns a
// token for later Unsubscribe.
func (b *EventBus) Subscribe(kind event.Kind, listener Listener) SubscriptionId {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextId++
	id := b.nextId
	b.listeners[kind] = append(b.listeners[kind], subscription{id: id, listener: listener})
	return id
}

// SubscribeAll registers listener for every event.Kind — used by
// SessionController.registerVisualizationListener (§4.9).
func (b *EventBus) SubscribeAll(listener Listener) SubscriptionId {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextId++
	id := b.nextId
	b.allKinds = append(b.allKinds, subscription{id: id, listener: listener})
	return id
}

// Unsubscribe removes a subscription by token, whichever kind (or
// SubscribeAll) it was registered under.
func (b *EventBus) Unsubscribe(id SubscriptionId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for kind, subs := range b.listeners {
		b.listeners[kind] = removeById(subs, id)
	}
	b.allKinds = removeById(b.allKinds, id)
}

func removeById(subs []subscription, id SubscriptionId) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Publish fans event e out to every subscriber of e.Kind plus every
// SubscribeAll listener, in subscription order. A listener panic is
// recovered and logged — never propagated to the publisher (§4.5, §7
// ListenerFailure).
func (b *EventBus) Publish(e event.Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	// Snapshot under the lock so concurrent subscribe/unsubscribe during
	// iteration cannot race with the slice we range over (§5 "subscriber
	// lists tolerate modification during iteration").
	kindSubs := append([]subscription(nil), b.listeners[e.Kind]...)
	allSubs := append([]subscription(nil), b.allKinds...)
	b.mu.RUnlock()

	for _, s := range kindSubs {
		b.dispatch(s.listener, e)
	}
	for _, s := range allSubs {
		b.dispatch(s.listener, e)
	}
}

func (b *EventBus) dispatch(listener Listener, e event.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("eventbus: listener panicked for event kind %s: %v", e.Kind, r)
		}
	}()
	listener(e)
}

// Close releases all subscriptions. Subsequent Publish calls are no-ops.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.listeners = make(map[event.Kind][]subscription)
	b.allKinds = nil
}
