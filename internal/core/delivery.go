package core

import "time"

// DeliveryStatus is the per-channel delivery state machine.
//
//	pending → delivered   (terminal success)
//	pending → failed      (terminal after retries exhaust)
//	failed  → pending     (manual retry only, attempts < max)
//
// StatusSent exists in the enum for wire compatibility with the platform but
// no transition produces it.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Delivery is one (notification, channel) attempt lineage. Attempts only ever
// increases; the owning adapter updates the record on every attempt, including
// transient failures.
type Delivery struct {
	ID               string                 `json:"id"`
	NotificationID   string                 `json:"notificationId"`
	Channel          Channel                `json:"channel"`
	Status           DeliveryStatus         `json:"status"`
	RecipientAddress string                 `json:"recipientAddress,omitempty"`
	Attempts         int                    `json:"attempts"`
	LastAttemptAt    *time.Time             `json:"lastAttemptAt,omitempty"`
	DeliveredAt      *time.Time             `json:"deliveredAt,omitempty"`
	FailedAt         *time.Time             `json:"failedAt,omitempty"`
	ErrorMessage     string                 `json:"errorMessage,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// ChannelResult is the per-channel outcome returned by a send call.
type ChannelResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
