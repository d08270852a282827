package versionlist

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestCreateChangeRenameDelete(t *testing.T) {
	l := New(nil)

	if _, err := l.Create("a.txt", false, 100); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := l.Change("a.txt", "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", 5, 200); err != nil {
		t.Fatalf("Change: %v", err)
	}

	if err := l.Rename("a.txt", "b.txt", "", 0, 300); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	h, err := l.ByName("b.txt")
	if err != nil {
		t.Fatalf("ByName(b.txt): %v", err)
	}

	if _, err := l.ByName("a.txt"); !errors.Is(err, ErrNoAliveHistory) {
		t.Fatalf("ByName(a.txt) err = %v, want ErrNoAliveHistory", err)
	}

	if err := l.Delete("b.txt", 400); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if h.Alive() {
		t.Fatalf("history still alive after Delete")
	}

	if _, err := l.ByName("b.txt"); !errors.Is(err, ErrNoAliveHistory) {
		t.Fatalf("ByName(b.txt) after delete err = %v, want ErrNoAliveHistory", err)
	}
}

func TestRenameHashesWhenDigestDiffers(t *testing.T) {
	l := New(nil)
	l.Create("a.txt", false, 100) //nolint:errcheck

	if err := l.Rename("a.txt", "b.txt", "deadbeef", 3, 200); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	h, err := l.ByName("b.txt")
	if err != nil {
		t.Fatalf("ByName: %v", err)
	}

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (create+rename+change)", h.Len())
	}

	last, _ := h.Last()
	if last.SHA1 != "deadbeef" {
		t.Fatalf("sha1 = %q, want deadbeef", last.SHA1)
	}
}

func TestFlushAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "VersionList.txt")

	l := New(nil)
	l.Create("a.txt", false, 100)           //nolint:errcheck
	l.Change("a.txt", "deadbeef", 4, 200)   //nolint:errcheck

	if err := l.Flush(path); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", loaded.Len())
	}

	h, err := loaded.ByName("a.txt")
	if err != nil {
		t.Fatalf("ByName: %v", err)
	}

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
}

func TestLoadMissingFileIsEmptyNotError(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "missing.txt"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if l.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", l.Len())
	}
}

func TestByNameIsOneToOne(t *testing.T) {
	l := New(nil)
	l.Create("a.txt", false, 100) //nolint:errcheck
	l.Create("b.txt", false, 200) //nolint:errcheck

	ha, _ := l.ByName("a.txt")
	hb, _ := l.ByName("b.txt")

	if ha.ID() == hb.ID() {
		t.Fatalf("distinct names mapped to the same history")
	}
}
