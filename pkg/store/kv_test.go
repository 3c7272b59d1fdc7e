package store

import (
	"testing"
)

func TestPebbleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	kv, err := OpenPebble(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := kv.Put("user:1", []byte(`{"id":"1"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, ok, err := kv.Get("user:1")
	if err != nil || !ok || string(v) != `{"id":"1"}` {
		t.Fatalf("get: %s %v %v", v, ok, err)
	}

	if _, ok, err := kv.Get("user:2"); err != nil || ok {
		t.Fatalf("get miss: %v %v", ok, err)
	}

	if err := kv.Delete("user:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := kv.Get("user:1"); ok {
		t.Fatalf("deleted key still present")
	}

	// values survive close and reopen
	_ = kv.Put("chat:1", []byte("x"))
	if err := kv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	kv2, err := OpenPebble(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv2.Close()
	if _, ok, _ := kv2.Get("chat:1"); !ok {
		t.Fatalf("value lost across reopen")
	}
}

func TestPebbleScanPrefix(t *testing.T) {
	kv, err := OpenPebble(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer kv.Close()

	_ = kv.Put("msg:a", []byte("1"))
	_ = kv.Put("msg:b", []byte("2"))
	_ = kv.Put("user:a", []byte("3"))

	var keys []string
	err = kv.Scan("msg:", func(k string, v []byte) error {
		keys = append(keys, k)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(keys) != 2 || keys[0] != "msg:a" || keys[1] != "msg:b" {
		t.Fatalf("scan keys: %v", keys)
	}
}

func TestPebbleApplyBatch(t *testing.T) {
	kv, err := OpenPebble(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer kv.Close()

	_ = kv.Put("chat:1", []byte("old"))
	_ = kv.Put("msg:1", []byte("doomed"))

	err = kv.Apply(map[string][]byte{"chat:1": []byte("new")}, []string{"msg:1"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	v, ok, _ := kv.Get("chat:1")
	if !ok || string(v) != "new" {
		t.Fatalf("put in batch: %s %v", v, ok)
	}
	if _, ok, _ := kv.Get("msg:1"); ok {
		t.Fatalf("delete in batch did not land")
	}
}
