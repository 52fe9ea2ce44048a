package events

import (
	"context"
	"testing"

	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func TestBusPredicateRouting(t *testing.T) {
	bus := NewBus()

	var created, other int
	bus.Subscribe(KindIs(KindCreated), func(ctx context.Context, ev Event) { created++ })
	bus.Subscribe(KindIs(KindDelivered), func(ctx context.Context, ev Event) { other++ })

	n := &core.Notification{ID: "n1", UserID: "u1"}
	bus.Publish(context.Background(), Event{Kind: KindCreated, Notification: n})
	bus.Publish(context.Background(), Event{Kind: KindCreated, Notification: n})
	bus.Publish(context.Background(), Event{Kind: KindRead, Notification: n})

	if created != 2 {
		t.Errorf("created handler ran %d times, want 2", created)
	}
	if other != 0 {
		t.Errorf("delivered handler ran %d times, want 0", other)
	}
}

func TestBusForUser(t *testing.T) {
	bus := NewBus()

	var hits int
	bus.Subscribe(ForUser("u1"), func(ctx context.Context, ev Event) { hits++ })

	bus.Publish(context.Background(), Event{Kind: KindCreated, Notification: &core.Notification{UserID: "u1"}})
	bus.Publish(context.Background(), Event{Kind: KindCreated, Notification: &core.Notification{UserID: "u2"}})

	if hits != 1 {
		t.Errorf("user predicate matched %d events, want 1", hits)
	}
}

func TestBusRecoversSubscriberPanic(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(nil, func(ctx context.Context, ev Event) { panic("boom") })

	var after bool
	bus.Subscribe(nil, func(ctx context.Context, ev Event) { after = true })

	bus.Publish(context.Background(), Event{Kind: KindCreated, Notification: &core.Notification{}})

	if !after {
		t.Error("panic in one subscriber must not stop later subscribers")
	}
}
