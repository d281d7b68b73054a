package secret

import (
	"encoding/hex"
	"testing"
)

func TestNewLength(t *testing.T) {
	value, err := New(32)
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	if len(value) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(value))
	}
	if _, err := hex.DecodeString(value); err != nil {
		t.Fatalf("expected hex encoding: %v", err)
	}
}

func TestNewRejectsNonPositiveEntropy(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero entropy")
	}
	if _, err := New(-8); err == nil {
		t.Fatal("expected error for negative entropy")
	}
}

func TestNewUnique(t *testing.T) {
	a, err := New(16)
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	b, err := New(16)
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct secrets")
	}
}
