package store

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// identIndex assigns opaque record identifiers and enforces the
// exclusive user-name constraint. Name reservations are serialized on a
// single mutex so two concurrent reservations of the same name can
// never both succeed.
type identIndex struct {
	mu    sync.Mutex
	names map[string]string // live name -> owning user id
}

func newIdentIndex() *identIndex {
	return &identIndex{names: make(map[string]string)}
}

// allocate returns a fresh identifier, never previously issued by this
// process. The kind prefix keeps ids recognizable in the keyspace.
func (ix *identIndex) allocate(kind string) string {
	return kind + "_" + uuid.NewString()
}

// reserve claims name for the given user id. Names are matched exactly
// and case-sensitively.
func (ix *identIndex) reserve(name, id string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if cur, ok := ix.names[name]; ok && cur != id {
		return fmt.Errorf("user name %q already taken: %w", name, ErrConstraintViolation)
	}
	ix.names[name] = id
	return nil
}

// release makes a name available again. Called on user delete and on
// the old name during a rename.
func (ix *identIndex) release(name string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.names, name)
}

// holder reports which user id currently holds the name.
func (ix *identIndex) holder(name string) (string, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	id, ok := ix.names[name]
	return id, ok
}
