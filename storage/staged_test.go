package storage

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestStagedReadsThroughToBase(t *testing.T) {
	base := NewMemDB()
	if err := base.Put([]byte("a"), []byte("base")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	staged := NewStaged(base)
	value, err := staged.Get([]byte("a"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(value, []byte("base")) {
		t.Fatalf("expected base value, got %q", value)
	}
	if err := staged.Put([]byte("a"), []byte("overlay")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err = staged.Get([]byte("a"))
	if err != nil {
		t.Fatalf("get overlay: %v", err)
	}
	if !bytes.Equal(value, []byte("overlay")) {
		t.Fatalf("expected overlay value, got %q", value)
	}
	// The base stays untouched until Commit.
	value, err = base.Get([]byte("a"))
	if err != nil || !bytes.Equal(value, []byte("base")) {
		t.Fatalf("base mutated before commit: %q err=%v", value, err)
	}
}

func TestStagedDiscardLeavesBaseUntouched(t *testing.T) {
	base := NewMemDB()
	if err := base.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before := base.Snapshot()
	staged := NewStaged(base)
	if err := staged.Put([]byte("k"), []byte("changed")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := staged.Put([]byte("new"), []byte("entry")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := staged.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !reflect.DeepEqual(before, base.Snapshot()) {
		t.Fatalf("discard mutated the base store")
	}
}

func TestStagedCommitFlushesInOrder(t *testing.T) {
	base := NewMemDB()
	staged := NewStaged(base)
	if err := staged.Put([]byte("x"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := staged.Put([]byte("y"), []byte("2")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := staged.Put([]byte("x"), []byte("3")); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := staged.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	value, err := base.Get([]byte("x"))
	if err != nil || !bytes.Equal(value, []byte("3")) {
		t.Fatalf("expected last write to win, got %q err=%v", value, err)
	}
	if ok, err := base.Has([]byte("y")); err != nil || !ok {
		t.Fatalf("expected y flushed, ok=%v err=%v", ok, err)
	}
	// Commit is single-shot; a second call is a no-op.
	if err := staged.Commit(); err != nil {
		t.Fatalf("second commit: %v", err)
	}
}

func TestStagedHasChecksOverlayFirst(t *testing.T) {
	base := NewMemDB()
	staged := NewStaged(base)
	if ok, err := staged.Has([]byte("missing")); err != nil || ok {
		t.Fatalf("expected absent, ok=%v err=%v", ok, err)
	}
	if err := staged.Put([]byte("present"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, err := staged.Has([]byte("present")); err != nil || !ok {
		t.Fatalf("expected staged key visible, ok=%v err=%v", ok, err)
	}
}

func TestKVRoundTripAndLists(t *testing.T) {
	kv := NewKV(NewMemDB())
	type record struct {
		Name  string
		Value uint64
	}
	if err := kv.KVPut([]byte("rec"), record{Name: "a", Value: 7}); err != nil {
		t.Fatalf("put: %v", err)
	}
	var out record
	ok, err := kv.KVGet([]byte("rec"), &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.Name != "a" || out.Value != 7 {
		t.Fatalf("unexpected record: %+v", out)
	}
	ok, err = kv.KVGet([]byte("absent"), &out)
	if err != nil || ok {
		t.Fatalf("missing key must be (false, nil), got ok=%v err=%v", ok, err)
	}
	if err := kv.KVAppend([]byte("list"), []byte("one")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := kv.KVAppend([]byte("list"), []byte("two")); err != nil {
		t.Fatalf("append: %v", err)
	}
	var list [][]byte
	if err := kv.KVGetList([]byte("list"), &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(list) != 2 || !bytes.Equal(list[0], []byte("one")) || !bytes.Equal(list[1], []byte("two")) {
		t.Fatalf("unexpected list: %v", list)
	}
	var empty [][]byte
	if err := kv.KVGetList([]byte("no-list"), &empty); err != nil {
		t.Fatalf("empty list: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty list, got %v", empty)
	}
}

func TestMemDBNotFound(t *testing.T) {
	db := NewMemDB()
	if _, err := db.Get([]byte("nope")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
