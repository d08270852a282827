package bundle

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/distribox/distribox/internal/blobpool"
	"github.com/distribox/distribox/internal/detector"
	"github.com/distribox/distribox/internal/history"
	"github.com/distribox/distribox/internal/versionlist"
)

// side holds one peer's pool, root, version list, and acceptor wiring; newSide
// sets one up under its own temp directory.
type side struct {
	root string
	pool *blobpool.Pool
	list *versionlist.List
	vlp  string
	acc  *Acceptor
}

func newSide(t *testing.T) *side {
	t.Helper()

	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir root: %v", err)
	}

	pool, err := blobpool.Open(filepath.Join(dir, "data"), nil)
	if err != nil {
		t.Fatalf("blobpool.Open: %v", err)
	}

	list := versionlist.New(nil)
	vlp := filepath.Join(dir, "VersionList.txt")

	acc := NewAcceptor(list, pool, root, vlp, filepath.Join(dir, "tmp"), NewZipArchiver(), detector.NewMute(), nil, &sync.Mutex{}, nil)

	return &side{root: root, pool: pool, list: list, vlp: vlp, acc: acc}
}

func TestBuildThenAcceptCreatesFile(t *testing.T) {
	src := newSide(t)
	dst := newSide(t)

	h, err := src.list.Create("hello.txt", false, 100)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	digest, err := src.pool.Put([]byte("hello world"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := src.list.Change("hello.txt", digest, 11, 200); err != nil {
		t.Fatalf("Change: %v", err)
	}

	builder := NewBuilder(src.pool, filepath.Join(src.root, "..", "tmp"), NewZipArchiver())

	archivePath, err := builder.Build([]*history.History{h})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer os.Remove(archivePath)

	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}

	if err := dst.acc.Accept("bundle-digest-1", data); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst.root, "hello.txt"))
	if err != nil {
		t.Fatalf("reading replayed file: %v", err)
	}

	if string(got) != "hello world" {
		t.Fatalf("replayed content = %q, want %q", got, "hello world")
	}

	dh := dst.list.ByID(h.ID())
	if dh == nil {
		t.Fatalf("destination list missing adopted history %s", h.ID())
	}

	if dh.CurrentName() != "hello.txt" {
		t.Fatalf("CurrentName() = %q, want hello.txt", dh.CurrentName())
	}
}

type fakeLedger struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeLedger() *fakeLedger { return &fakeLedger{seen: map[string]bool{}} }

func (l *fakeLedger) Seen(digest string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.seen[digest], nil
}

func (l *fakeLedger) Record(digest string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seen[digest] = true

	return nil
}

func TestAcceptIsIdempotentViaLedger(t *testing.T) {
	src := newSide(t)
	dst := newSide(t)

	ledger := newFakeLedger()
	dst.acc = NewAcceptor(dst.list, dst.pool, dst.root, dst.vlp, filepath.Join(dst.root, "..", "tmp"), NewZipArchiver(), detector.NewMute(), ledger, &sync.Mutex{}, nil)

	h, err := src.list.Create("a.txt", false, 100)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	digest, err := src.pool.Put([]byte("content"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := src.list.Change("a.txt", digest, 7, 200); err != nil {
		t.Fatalf("Change: %v", err)
	}

	builder := NewBuilder(src.pool, filepath.Join(src.root, "..", "tmp"), NewZipArchiver())

	archivePath, err := builder.Build([]*history.History{h})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer os.Remove(archivePath)

	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}

	if err := dst.acc.Accept("dup-digest", data); err != nil {
		t.Fatalf("first Accept: %v", err)
	}

	if err := os.Remove(filepath.Join(dst.root, "a.txt")); err != nil {
		t.Fatalf("removing replayed file to detect a re-replay: %v", err)
	}

	if err := dst.acc.Accept("dup-digest", data); err != nil {
		t.Fatalf("second Accept: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dst.root, "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("second Accept replayed despite ledger marking digest seen")
	}
}

func TestAcceptRejectsTamperedBlob(t *testing.T) {
	src := newSide(t)
	dst := newSide(t)

	h, err := src.list.Create("b.txt", false, 100)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	digest, err := src.pool.Put([]byte("original"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := src.list.Change("b.txt", digest, 8, 200); err != nil {
		t.Fatalf("Change: %v", err)
	}

	builder := NewBuilder(src.pool, filepath.Join(src.root, "..", "tmp"), NewZipArchiver())

	workDir, err := builder.newScratchDir()
	if err != nil {
		t.Fatalf("newScratchDir: %v", err)
	}
	defer os.RemoveAll(workDir)

	if err := builder.writeDelta(workDir, []*history.History{h}); err != nil {
		t.Fatalf("writeDelta: %v", err)
	}

	if err := os.WriteFile(filepath.Join(workDir, digest), []byte("tampered"), 0o644); err != nil {
		t.Fatalf("writing tampered blob: %v", err)
	}

	archivePath := workDir + ".zip"
	if err := NewZipArchiver().Pack(workDir, archivePath); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	defer os.Remove(archivePath)

	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}

	if err := dst.acc.Accept("tampered-digest", data); err == nil {
		t.Fatalf("Accept succeeded on a tampered blob, want ErrIntegrity")
	}
}
