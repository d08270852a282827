package controller

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/distribox/distribox/internal/blobpool"
	"github.com/distribox/distribox/internal/detector"
	"github.com/distribox/distribox/internal/versionlist"
)

func TestApplyCreateChangeRenameDelete(t *testing.T) {
	dir := t.TempDir()
	pool, err := blobpool.Open(filepath.Join(dir, "data"), nil)
	if err != nil {
		t.Fatalf("blobpool.Open: %v", err)
	}

	list := versionlist.New(nil)
	idx := NewPathIndex(list)

	det := detector.New(detector.Config{Root: dir, MetadataDirName: ".Distribox", PollInterval: time.Second}, pool, idx, detector.NewMute(), nil)

	c := New(list, det, filepath.Join(dir, ".Distribox", "VersionList.txt"), &sync.Mutex{}, nil)

	c.apply(dNotif(detector.Created, "a.txt", "", false, "", 0, 100))
	c.apply(dNotif(detector.Changed, "a.txt", "", false, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", 5, 200))
	c.apply(dNotif(detector.Renamed, "b.txt", "a.txt", false, "", 0, 300))
	c.apply(dNotif(detector.Deleted, "b.txt", "", false, "", 0, 400))

	if _, err := list.ByName("b.txt"); err == nil {
		t.Fatalf("ByName(b.txt) succeeded after delete, want error")
	}

	if list.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", list.Len())
	}
}

func TestFlushWritesVersionList(t *testing.T) {
	dir := t.TempDir()
	pool, _ := blobpool.Open(filepath.Join(dir, "data"), nil)
	list := versionlist.New(nil)
	idx := NewPathIndex(list)
	det := detector.New(detector.Config{Root: dir, MetadataDirName: ".Distribox", PollInterval: time.Second}, pool, idx, detector.NewMute(), nil)

	path := filepath.Join(dir, ".Distribox", "VersionList.txt")
	c := New(list, det, path, &sync.Mutex{}, nil)

	c.apply(dNotif(detector.Created, "a.txt", "", false, "", 0, 100))

	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	loaded, err := versionlist.Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Len() != 1 {
		t.Fatalf("loaded Len() = %d, want 1", loaded.Len())
	}
}

func TestOnNotifyFiresForEveryNotificationIncludingIdle(t *testing.T) {
	dir := t.TempDir()
	pool, _ := blobpool.Open(filepath.Join(dir, "data"), nil)
	list := versionlist.New(nil)
	idx := NewPathIndex(list)
	det := detector.New(detector.Config{Root: dir, MetadataDirName: ".Distribox", PollInterval: time.Second}, pool, idx, detector.NewMute(), nil)

	c := New(list, det, filepath.Join(dir, ".Distribox", "VersionList.txt"), &sync.Mutex{}, nil)

	var seen []detector.NotificationType
	c.OnNotify(func(n detector.Notification) { seen = append(seen, n.Type) })

	c.apply(dNotif(detector.Created, "a.txt", "", false, "", 0, 100))
	c.apply(dNotif(detector.Idle, "", "", false, "", 0, 200))

	if len(seen) != 2 || seen[0] != detector.Created || seen[1] != detector.Idle {
		t.Fatalf("seen = %v, want [created idle]", seen)
	}
}

func dNotif(typ detector.NotificationType, name, oldName string, isDir bool, sha1 string, size, when int64) detector.Notification {
	return detector.Notification{
		Type: typ, Name: name, OldName: oldName, IsDirectory: isDir, SHA1: sha1, Size: size, When: when,
	}
}
