// Package webhook manages user-registered callback endpoints: registration
// CRUD, payload signing and the consecutive-failure circuit breaker.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the payload signature on outbound deliveries.
const SignatureHeader = "X-Webhook-Signature"

// Sign returns the signature header value for payload: "sha256=" followed by
// the hex HMAC-SHA256 of the payload under the registration secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload under secret. Comparison
// is constant time.
func Verify(secret string, payload []byte, signature string) bool {
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
