package core

import (
	"testing"
)

func TestNewID_Unique(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Fatal("NewID returned an empty ID")
		}
		if seen[id] {
			t.Fatalf("Duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestParseRunID(t *testing.T) {
	if _, err := ParseRunID(""); err == nil {
		t.Error("Expected error for empty run ID")
	}
	if _, err := ParseRunID("   "); err == nil {
		t.Error("Expected error for blank run ID")
	}

	id, err := ParseRunID("run-123")
	if err != nil {
		t.Fatalf("ParseRunID failed: %v", err)
	}
	if id.String() != "run-123" {
		t.Errorf("RunID = %s, want run-123", id)
	}
}

func TestHash(t *testing.T) {
	a := NewHash([]byte("alpha"))
	b := NewHash([]byte("alpha"))
	c := NewHash([]byte("beta"))

	if a != b {
		t.Error("Identical data hashed differently")
	}
	if a == c {
		t.Error("Different data hashed identically")
	}
	if len(a.String()) != 64 {
		t.Errorf("Hash length = %d, want 64 hex characters", len(a.String()))
	}
	if Hash("").IsEmpty() != true || a.IsEmpty() {
		t.Error("IsEmpty misreports")
	}
}
