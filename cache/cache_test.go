package cache

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "sub", "programs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheMissThenHit(t *testing.T) {
	c := openTemp(t)
	src := "5 3 + putd"
	program := []byte{16, 0, 0, 0, 0, 0, 0, 0, 17, 0, 0, 0, 0, 0, 0, 0, 0xFF}

	if _, _, ok, err := c.Get(src); err != nil || ok {
		t.Fatalf("Get before Put = ok %v, err %v; want miss", ok, err)
	}

	id, err := c.Put(src, program)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("build id %q is not a UUID: %v", id, err)
	}

	got, gotID, ok, err := c.Get(src)
	if err != nil || !ok {
		t.Fatalf("Get after Put = ok %v, err %v", ok, err)
	}
	if !bytes.Equal(got, program) {
		t.Errorf("program = % x, want % x", got, program)
	}
	if gotID != id {
		t.Errorf("build id = %q, want %q", gotID, id)
	}

	if _, _, ok, _ := c.Get(src + " "); ok {
		t.Error("different source should miss")
	}
}

func TestCachePutReplaces(t *testing.T) {
	c := openTemp(t)
	first, _ := c.Put("src", []byte{1})
	second, _ := c.Put("src", []byte{2})
	if first == second {
		t.Error("each Put should get a new build id")
	}

	got, id, ok, err := c.Get("src")
	if err != nil || !ok {
		t.Fatalf("Get: ok %v, err %v", ok, err)
	}
	if !bytes.Equal(got, []byte{2}) || id != second {
		t.Errorf("Get = % x, %q; want 02, %q", got, id, second)
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	c := openTemp(t)
	c.Put("a", []byte{1, 2, 3})
	c.Put("b", []byte{4})
	c.Get("a")
	c.Get("a")
	c.Get("b")

	s, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.Entries != 2 || s.Hits != 3 || s.Bytes != 4 {
		t.Errorf("Stats = %+v, want 2 entries, 3 hits, 4 bytes", s)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	s, _ = c.Stats()
	if s.Entries != 0 || s.Hits != 0 {
		t.Errorf("Stats after Clear = %+v", s)
	}
}

func TestCachePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "programs.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := c.Put("src", []byte{9})
	c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, got, ok, _ := c.Get("src"); !ok || got != id {
		t.Errorf("reopened cache: ok %v, id %q, want %q", ok, got, id)
	}
}

func TestKey(t *testing.T) {
	if Key("a") == Key("b") {
		t.Error("different sources share a key")
	}
	if Key("a") != Key("a") {
		t.Error("Key is not deterministic")
	}
	if len(Key("")) != 64 {
		t.Errorf("Key length = %d, want 64 hex digits", len(Key("")))
	}
}
