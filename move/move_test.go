package move

import (
	"testing"
	"time"
)

func TestBuildAndValidate(t *testing.T) {
	b, err := NewBuilder([]byte("alice-seed"))
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	m, err := b.BuildSay("hello world", time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("BuildSay: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("expected valid move, got %v", err)
	}
	if m.User != b.Address() {
		t.Fatalf("expected move.User to equal builder address")
	}
}

func TestValidateRejectsTamperedDetails(t *testing.T) {
	b, _ := NewBuilder([]byte("bob-seed"))
	m, err := b.BuildSay("original", time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("BuildSay: %v", err)
	}
	m.Details["content"] = "tampered"
	if err := m.Validate(); err == nil {
		t.Fatalf("expected validation to fail after tampering with details")
	}
}

func TestBuildRejectsUnknownName(t *testing.T) {
	b, _ := NewBuilder([]byte("carol-seed"))
	if _, err := b.Build(Name("fly"), map[string]string{}, 0, time.Unix(1700000000, 0)); err == nil {
		t.Fatalf("expected unknown move name to be rejected at build time")
	}
}

func TestIDIsDeterministic(t *testing.T) {
	b, _ := NewBuilder([]byte("dave-seed"))
	now := time.Unix(1700000000, 0)
	m1, _ := b.BuildSleep(now)
	m2, _ := b.BuildSleep(now)
	if m1.ID != m2.ID {
		t.Fatalf("expected identical moves (same seed, same timestamp) to hash identically")
	}
}

func TestSortedIDs(t *testing.T) {
	ms := []*Move{{ID: "b"}, {ID: "a"}, {ID: "c"}}
	ids := SortedIDs(ms)
	if ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("expected sorted ids, got %v", ids)
	}
}
