package eventlog

import (
	"testing"

	"github.com/memfault/diagsdk/internal/sdkerr"
)

func TestAppendAndDrainFIFOOrder(t *testing.T) {
	s := New(128)
	if err := s.Append(1, []byte("first")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(2, []byte("second")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	kind, payload, ok := s.Peek()
	if !ok || kind != 1 || string(payload) != "first" {
		t.Fatalf("first Peek = kind=%d payload=%q ok=%v, want 1 first true", kind, payload, ok)
	}
	if err := s.MarkSent(); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	kind, payload, ok = s.Peek()
	if !ok || kind != 2 || string(payload) != "second" {
		t.Fatalf("second Peek = kind=%d payload=%q ok=%v, want 2 second true", kind, payload, ok)
	}
	if err := s.MarkSent(); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	if s.HasMore() {
		t.Error("expected store to be empty after draining both records")
	}
}

func TestAppendRejectsWhenFullWithoutEviction(t *testing.T) {
	s := New(16) // room for roughly one small record
	if err := s.Append(1, []byte("0123456789")); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	err := s.Append(1, []byte("0123456789"))
	if !sdkerr.Is(err, sdkerr.CodeNoMoreData) {
		t.Fatalf("second Append error = %v, want CodeNoMoreData", err)
	}
	if s.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", s.Dropped())
	}

	// The first record must still be intact — nothing was evicted.
	kind, payload, ok := s.Peek()
	if !ok || kind != 1 || string(payload) != "0123456789" {
		t.Errorf("first record damaged after rejected append: kind=%d payload=%q ok=%v", kind, payload, ok)
	}
}

func TestCompactReclaimsSpaceAfterDrain(t *testing.T) {
	s := New(20)
	if err := s.Append(1, []byte("abcde")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.MarkSent(); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	// Without compaction this append would fail: tail is still near the
	// end of the buffer even though head has caught up.
	if err := s.Append(2, []byte("fghijklmno")); err != nil {
		t.Fatalf("Append after drain should succeed via compaction: %v", err)
	}
}

func TestMarkSentWithNothingPendingErrors(t *testing.T) {
	s := New(32)
	if err := s.MarkSent(); err == nil {
		t.Error("expected MarkSent on an empty store to error")
	}
}
