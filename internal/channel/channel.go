// Package channel implements the delivery adapters. Every adapter takes a
// fully rendered notification plus the recipient's preferences and either
// lands it or returns an error; the shared retry policy wraps the transient
// ones.
package channel

import (
	"context"

	"fileops.io/notifyd/internal/core"
)

// Adapter delivers a notification over one channel.
type Adapter interface {
	Channel() core.Channel
	Deliver(ctx context.Context, n *core.Notification, prefs *core.Preferences) error
}

type deliveryIDKey struct{}

// WithDeliveryID tags ctx with the delivery record ID for the attempt in
// flight. The webhook adapter echoes it in the X-Delivery-Id header.
func WithDeliveryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deliveryIDKey{}, id)
}

// DeliveryIDFrom returns the delivery ID set by WithDeliveryID, if any.
func DeliveryIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(deliveryIDKey{}).(string); ok {
		return v
	}
	return ""
}

// Registry maps channels to their adapters.
type Registry map[core.Channel]Adapter

// NewRegistry builds a registry from the given adapters, keyed by channel.
func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Channel()] = a
	}
	return r
}
