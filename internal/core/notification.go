// Package core defines the domain types of the notification engine:
// notifications, per-channel deliveries, audit records, user preferences and
// webhook registrations.
package core

import "time"

// Channel identifies a delivery transport.
type Channel string

const (
	ChannelInApp   Channel = "in_app"
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelWebhook:
		return true
	}
	return false
}

// Type is the closed set of notification types emitted by the platform.
type Type string

const (
	TypeFileUploaded       Type = "file_uploaded"
	TypeFileShared         Type = "file_shared"
	TypeProcessingComplete Type = "processing_complete"
	TypeProcessingFailed   Type = "processing_failed"
	TypeStorageQuota       Type = "storage_quota"
	TypeSecurityAlert      Type = "security_alert"
	TypeSystemAlert        Type = "system_alert"
)

// Valid reports whether t is a known notification type.
func (t Type) Valid() bool {
	switch t {
	case TypeFileUploaded, TypeFileShared, TypeProcessingComplete,
		TypeProcessingFailed, TypeStorageQuota, TypeSecurityAlert, TypeSystemAlert:
		return true
	}
	return false
}

// Priority orders notification urgency. Urgent notifications bypass
// quiet-hours suppression.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// priorityRank supports minimum-priority filtering in type preferences.
var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

// AtLeast reports whether p ranks at or above min. Unknown priorities rank
// as medium.
func (p Priority) AtLeast(min Priority) bool {
	return rank(p) >= rank(min)
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

func rank(p Priority) int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return priorityRank[PriorityMedium]
}

// Notification is the immutable record that something happened. Only the
// read flag and ReadAt mutate after creation; the channel set is a snapshot
// taken when the notification was created and later preference changes do not
// rewrite it.
type Notification struct {
	ID         string                 `json:"id"`
	UserID     string                 `json:"userId"`
	TenantID   string                 `json:"tenantId,omitempty"`
	Type       Type                   `json:"type"`
	Title      string                 `json:"title"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Priority   Priority               `json:"priority"`
	Channels   []Channel              `json:"channels"`
	TemplateID string                 `json:"templateId,omitempty"`
	Read       bool                   `json:"read"`
	ReadAt     *time.Time             `json:"readAt,omitempty"`
	ExpiresAt  *time.Time             `json:"expiresAt,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// Expired reports whether the notification has an expiry in the past.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// HasChannel reports whether ch is in the resolved channel snapshot.
func (n *Notification) HasChannel(ch Channel) bool {
	for _, c := range n.Channels {
		if c == ch {
			return true
		}
	}
	return false
}
