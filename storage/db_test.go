package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err := db.Has([]byte("a"))
	if err != nil || !ok {
		t.Fatalf("expected key a to exist: ok=%v err=%v", ok, err)
	}

	batch := db.NewBatch()
	batch.Put([]byte("b"), []byte("2"))
	batch.Put([]byte("c"), []byte("3"))
	batch.Delete([]byte("a"))
	if batch.Len() != 3 {
		t.Fatalf("expected 3 buffered ops, got %d", batch.Len())
	}
	if _, err := db.Get([]byte("b")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("batch writes must not be visible before Write, got %v", err)
	}
	if err := batch.Write(); err != nil {
		t.Fatalf("write: %v", err)
	}

	value, err := db.Get([]byte("c"))
	if err != nil || string(value) != "3" {
		t.Fatalf("unexpected value for c: %q err=%v", value, err)
	}
	if ok, _ := db.Has([]byte("a")); ok {
		t.Fatalf("expected a to be deleted by batch")
	}
	if err := db.Delete([]byte("b")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("b")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected b removed, got %v", err)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	buf := []byte("x")
	if err := db.Put([]byte("k"), buf); err != nil {
		t.Fatalf("put: %v", err)
	}
	buf[0] = 'y'
	got, _ := db.Get([]byte("k"))
	if string(got) != "x" {
		t.Fatalf("stored value aliased caller buffer: %q", got)
	}
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "exchange"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
}
