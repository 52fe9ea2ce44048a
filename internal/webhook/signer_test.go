package webhook

import (
	"strings"
	"testing"
)

func TestSignFormat(t *testing.T) {
	sig := Sign("secret", []byte(`{"event":"file_uploaded"}`))
	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("signature %q missing sha256= prefix", sig)
	}
	if len(sig) != len("sha256=")+64 {
		t.Fatalf("signature %q is not a 64-char hex digest", sig)
	}
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"event":"file_shared","id":"n-1"}`)
	sig := Sign("topsecret", payload)

	if !Verify("topsecret", payload, sig) {
		t.Fatal("valid signature rejected")
	}
	if Verify("wrongsecret", payload, sig) {
		t.Fatal("signature accepted under wrong secret")
	}
	if Verify("topsecret", []byte(`tampered`), sig) {
		t.Fatal("signature accepted for tampered payload")
	}
	if Verify("topsecret", payload, "sha256=deadbeef") {
		t.Fatal("truncated signature accepted")
	}
}

func TestSignDeterministic(t *testing.T) {
	payload := []byte("same bytes")
	if Sign("k", payload) != Sign("k", payload) {
		t.Fatal("signature is not deterministic")
	}
}
