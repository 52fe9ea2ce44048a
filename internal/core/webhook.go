package core

import "time"

// WebhookDisableThreshold is the consecutive-failure count at which a
// registration is forced inactive. Any success resets the counter.
const WebhookDisableThreshold = 10

// Webhook is one user-registered callback endpoint.
type Webhook struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"userId"`
	TenantID           string            `json:"tenantId,omitempty"`
	URL                string            `json:"url"`
	Secret             string            `json:"-"`
	Events             []Type            `json:"events"`
	Active             bool              `json:"active"`
	Headers            map[string]string `json:"headers,omitempty"`
	FailureCount       int               `json:"failureCount"`
	LastDeliveryAt     *time.Time        `json:"lastDeliveryAt,omitempty"`
	LastDeliveryStatus string            `json:"lastDeliveryStatus,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// SubscribedTo reports whether the registration listens for t. An empty event
// list subscribes to nothing.
func (w *Webhook) SubscribedTo(t Type) bool {
	for _, e := range w.Events {
		if e == t {
			return true
		}
	}
	return false
}

// Matches reports whether the webhook belongs to the notification's user or
// tenant and is subscribed to its type.
func (w *Webhook) Matches(n *Notification) bool {
	if !w.SubscribedTo(n.Type) {
		return false
	}
	if w.UserID == n.UserID {
		return true
	}
	return w.TenantID != "" && w.TenantID == n.TenantID
}
