// Package bus implements a single-process publish/subscribe notification
// bus: resources and breakers emit events, subscribers (loggers, metrics
// bridges) observe them synchronously.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the shape of an emitted Event.
type EventKind int

const (
	// EventSuccess fires when a protected call completed without being
	// short-circuited, carrying how long it waited on the bulkhead.
	EventSuccess EventKind = iota
	// EventBusy fires when the bulkhead had no free slot within the
	// caller's deadline.
	EventBusy
	// EventCircuitOpen fires when a breaker rejected a call outright.
	EventCircuitOpen
	// EventStateChange describes a classic breaker's state transition. No
	// component of this module publishes it: the breakers built by
	// config.Build report transitions only through breaker.Config's
	// OnStateChange callback, which Build leaves unset.
	EventStateChange
	// EventModeChange fires when a dual breaker switches its active
	// child.
	EventModeChange
	// EventLRUGC fires after the registry's opportunistic GC sweep runs.
	EventLRUGC
)

func (k EventKind) String() string {
	switch k {
	case EventSuccess:
		return "success"
	case EventBusy:
		return "busy"
	case EventCircuitOpen:
		return "circuit_open"
	case EventStateChange:
		return "state_change"
	case EventModeChange:
		return "mode_change"
	case EventLRUGC:
		return "lru_gc"
	default:
		return "unknown"
	}
}

// Event is a single notification published to the bus. Fields not relevant
// to Kind are left zero.
type Event struct {
	Kind     EventKind
	Resource string
	At       time.Time

	// EventSuccess
	WaitTime time.Duration

	// EventStateChange
	FromState string
	ToState   string

	// EventModeChange
	OldKind string
	NewKind string

	// EventLRUGC
	Size     int
	Examined int
	Cleared  int
	Elapsed  time.Duration
}

// Token identifies a subscription for later Unsubscribe.
type Token string

// Handler receives published events. Handlers must be non-blocking and
// side-effect-safe: delivery is synchronous on the publisher's goroutine,
// so a slow handler slows every publisher.
type Handler func(Event)

// Bus is a synchronous, in-order publish/subscribe fan-out.
//
// Not a singleton: each Engine owns its own Bus.
type Bus struct {
	mu   sync.Mutex
	subs []subscriber
}

type subscriber struct {
	token   Token
	name    string
	handler Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers handler under the given logical name (used only for
// diagnostics) and returns a Token for Unsubscribe.
func (b *Bus) Subscribe(name string, handler Handler) Token {
	token := Token(uuid.New().String())

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscriber{token: token, name: name, handler: handler})
	return token
}

// Unsubscribe removes a subscription. Unsubscribing an unknown or
// already-removed token is a no-op.
func (b *Bus) Unsubscribe(token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.token == token {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Notify delivers event to every current subscriber, synchronously, in
// registration order, on the caller's goroutine.
func (b *Bus) Notify(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.Lock()
	handlers := make([]Handler, len(b.subs))
	for i, s := range b.subs {
		handlers[i] = s.handler
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

// SubscriberCount reports the current number of subscriptions, for tests
// and diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
