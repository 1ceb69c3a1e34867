package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestFileStoreSetGetRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fs, err := OpenFileStore(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}

	if err := fs.Set("pair/7", []byte("key-bytes")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := fs.Get("pair/7")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "key-bytes" {
		t.Fatalf("Get returned %q, want %q", got, "key-bytes")
	}
}

func TestFileStoreMissingKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fs, err := OpenFileStore(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}

	if _, err := fs.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	fs1, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	if err := fs1.Set("rplay/3", []byte{0, 0, 0, 42}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	fs2, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore (reopen): %v", err)
	}
	got, err := fs2.Get("rplay/3")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if len(got) != 4 || got[3] != 42 {
		t.Fatalf("Get after reopen = %v, want [0 0 0 42]", got)
	}
}

func TestFileStoreDeleteAndKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fs, err := OpenFileStore(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}

	for _, k := range []string{"pair/1", "pair/2", "rplay/1"} {
		if err := fs.Set(k, []byte("v")); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}

	keys, err := fs.Keys("pair/")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Keys(pair/) = %v, want 2 entries", keys)
	}

	if err := fs.Delete("pair/1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := fs.Get("pair/1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	m := NewMemoryStore()
	if err := m.Set("pair/9", []byte("abc")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := m.Get("pair/9")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("Get = %q, want %q", got, "abc")
	}
	if err := m.Delete("pair/9"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get("pair/9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete error = %v, want ErrNotFound", err)
	}
}
