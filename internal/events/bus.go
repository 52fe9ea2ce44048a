// Package events provides the in-process typed event bus used to fan
// notification lifecycle events out to interested components (the websocket
// gateway, metrics hooks) without stringly-keyed handler maps.
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/pkg/logger"
)

// Event is a notification lifecycle event.
type Event struct {
	// Kind distinguishes lifecycle moments.
	Kind Kind

	// Notification is the subject. Never nil.
	Notification *core.Notification

	// Channel is set for delivery-scoped events.
	Channel core.Channel

	// At is when the event was published.
	At time.Time
}

// Kind is the closed set of bus event kinds.
type Kind string

const (
	KindCreated   Kind = "notification.created"
	KindDelivered Kind = "notification.delivered"
	KindFailed    Kind = "notification.failed"
	KindRead      Kind = "notification.read"
)

// Handler consumes a published event. Handlers run on the publisher's
// goroutine and must not block.
type Handler func(ctx context.Context, ev Event)

// Predicate filters which events a subscription receives.
type Predicate func(ev Event) bool

// Bus routes events to subscribers whose predicate accepts them. Handler
// panics are recovered and logged so one subscriber cannot take down the
// delivery path.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription
}

type subscription struct {
	pred    Predicate
	handler Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for every event accepted by pred. A nil pred
// receives everything.
func (b *Bus) Subscribe(pred Predicate, handler Handler) {
	if handler == nil {
		return
	}
	if pred == nil {
		pred = func(Event) bool { return true }
	}
	b.mu.Lock()
	b.subs = append(b.subs, subscription{pred: pred, handler: handler})
	b.mu.Unlock()
}

// KindIs returns a predicate matching a single event kind.
func KindIs(kind Kind) Predicate {
	return func(ev Event) bool { return ev.Kind == kind }
}

// ForUser returns a predicate matching events for one user's notifications.
func ForUser(userID string) Predicate {
	return func(ev Event) bool {
		return ev.Notification != nil && ev.Notification.UserID == userID
	}
}

// Publish delivers ev to every matching subscriber. Best effort: subscriber
// failures never propagate to the publisher.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.pred(ev) {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event subscriber panicked",
						zap.String("kind", string(ev.Kind)),
						zap.Any("panic", r),
					)
				}
			}()
			s.handler(ctx, ev)
		}()
	}
}
