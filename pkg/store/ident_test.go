package store

import (
	"errors"
	"strings"
	"testing"
)

func TestAllocatePrefixesAndUniqueness(t *testing.T) {
	ix := newIdentIndex()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := ix.allocate(kindMsg)
		if !strings.HasPrefix(id, "msg_") {
			t.Fatalf("bad prefix: %s", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id: %s", id)
		}
		seen[id] = true
	}
}

func TestReserveReleaseHolder(t *testing.T) {
	ix := newIdentIndex()

	if err := ix.reserve("alice", "user_1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// re-reserving for the same holder is idempotent
	if err := ix.reserve("alice", "user_1"); err != nil {
		t.Fatalf("re-reserve same holder: %v", err)
	}
	if err := ix.reserve("alice", "user_2"); !errors.Is(err, ErrConstraintViolation) {
		t.Fatalf("reserve taken name: want ErrConstraintViolation, got %v", err)
	}

	id, ok := ix.holder("alice")
	if !ok || id != "user_1" {
		t.Fatalf("holder: %v %v", id, ok)
	}

	ix.release("alice")
	if _, ok := ix.holder("alice"); ok {
		t.Fatalf("holder after release")
	}
	if err := ix.reserve("alice", "user_2"); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}

	// names are matched exactly and case-sensitively
	if err := ix.reserve("Alice", "user_3"); err != nil {
		t.Fatalf("case-sensitive reserve: %v", err)
	}

	if err := ix.reserve("", "user_4"); err == nil {
		t.Fatalf("empty name accepted")
	}
}
