package core

import "time"

// AuditAction is the closed set of audited notification actions.
type AuditAction string

const (
	AuditCreated   AuditAction = "created"
	AuditSent      AuditAction = "sent"
	AuditDelivered AuditAction = "delivered"
	AuditRead      AuditAction = "read"
	AuditFailed    AuditAction = "failed"
	AuditRetried   AuditAction = "retried"
	AuditDeleted   AuditAction = "deleted"
)

// Audit is an append-only log entry describing an action taken on a
// notification. Audit rows are never mutated; retention cleanup is the only
// deletion path.
type Audit struct {
	ID             string                 `json:"id"`
	NotificationID string                 `json:"notificationId"`
	Action         AuditAction            `json:"action"`
	Channel        Channel                `json:"channel,omitempty"`
	UserID         string                 `json:"userId"`
	TenantID       string                 `json:"tenantId,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
	IPAddress      string                 `json:"ipAddress,omitempty"`
	UserAgent      string                 `json:"userAgent,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}
