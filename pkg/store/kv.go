package store

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"chatdb/pkg/logger"
)

// KV is the narrow durable interface the store requires from its
// persistence collaborator. Apply commits a mixed set of writes and
// deletes atomically so multi-key operations never partially land.
type KV interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, bool, error)
	Delete(key string) error
	Apply(puts map[string][]byte, deletes []string) error
	Scan(prefix string, fn func(key string, value []byte) error) error
	Close() error
}

// Pebble is the default KV engine, backed by a cockroachdb/pebble
// database on disk. All writes are synced.
type Pebble struct {
	db   *pebble.DB
	path string
}

// OpenPebble opens (or creates) a Pebble database at the given path.
func OpenPebble(path string) (*Pebble, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &Pebble{db: db, path: path}, nil
}

func (p *Pebble) Put(key string, value []byte) error {
	return p.db.Set([]byte(key), value, pebble.Sync)
}

func (p *Pebble) Get(key string) ([]byte, bool, error) {
	v, closer, err := p.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, true, nil
}

func (p *Pebble) Delete(key string) error {
	return p.db.Delete([]byte(key), pebble.Sync)
}

// Apply commits puts and deletes in a single pebble batch.
func (p *Pebble) Apply(puts map[string][]byte, deletes []string) error {
	b := p.db.NewBatch()
	defer func() { _ = b.Close() }()
	for k, v := range puts {
		if err := b.Set([]byte(k), v, nil); err != nil {
			return fmt.Errorf("batch set %s: %w", k, err)
		}
	}
	for _, k := range deletes {
		if err := b.Delete([]byte(k), nil); err != nil {
			return fmt.Errorf("batch delete %s: %w", k, err)
		}
	}
	return b.Commit(pebble.Sync)
}

// Scan visits every key starting with prefix in lexicographic order.
func (p *Pebble) Scan(prefix string, fn func(key string, value []byte) error) error {
	pfx := []byte(prefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		k := string(iter.Key())
		v := append([]byte(nil), iter.Value()...)
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	logger.Info("pebble_closed", "path", p.path)
	return err
}
