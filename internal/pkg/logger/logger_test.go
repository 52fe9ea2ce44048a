package logger

import "testing"

func TestInitAndLevel(t *testing.T) {
	if err := Init("debug", "json"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	// Init is once-only; a second call must not error or reconfigure.
	if err := Init("bogus-level", "console"); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}

	if L() == nil {
		t.Fatal("L() returned nil after Init")
	}

	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if err := SetLevel("nonsense"); err == nil {
		t.Error("SetLevel() accepted an invalid level")
	}
}
