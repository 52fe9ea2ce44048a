package errors

// Error code constants. Errors carry code + message; clients key off the code.

// Notification error codes.
const (
	CodeNotificationNotFound  = "NOTIFICATION_NOT_FOUND"
	CodeNotificationsDisabled = "NOTIFICATIONS_DISABLED"
	CodeNotificationExpired   = "NOTIFICATION_EXPIRED"
	CodeTemplateNotFound      = "TEMPLATE_NOT_FOUND"
)

// Preference error codes.
const (
	CodeInvalidChannel    = "INVALID_CHANNEL"
	CodeInvalidQuietHours = "INVALID_QUIET_HOURS"
)

// Webhook error codes.
const (
	CodeWebhookNotFound     = "WEBHOOK_NOT_FOUND"
	CodeWebhookDisabled     = "WEBHOOK_DISABLED"
	CodeWebhookInvalid      = "WEBHOOK_INVALID_URL"
	CodeWebhookLimitReached = "WEBHOOK_LIMIT_REACHED"
)

// Auth error codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeForbidden    = "FORBIDDEN"
)

// Validation error codes.
const (
	CodeInvalidRequestField = "INVALID_REQUEST_FIELD"
	CodeMissingField        = "MISSING_REQUIRED_FIELD"
)

// Generic codes.
const (
	CodeInternal = "INTERNAL_ERROR"
)
