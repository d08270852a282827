package bundle

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/distribox/distribox/internal/blobpool"
	"github.com/distribox/distribox/internal/history"
)

// deltaFileName is the fixed entry name for the serialized history subset
// inside a bundle archive (§6).
const deltaFileName = "Delta.txt"

// Builder packages a subset of histories plus the blobs they reference
// into a transport archive, per §4.C7 "Build".
type Builder struct {
	pool     *blobpool.Pool
	tmpRoot  string
	archiver Archiver
}

// NewBuilder constructs a Builder. tmpRoot is the scratch directory (§6
// `.Distribox/tmp/`) where build/accept work happens.
func NewBuilder(pool *blobpool.Pool, tmpRoot string, archiver Archiver) *Builder {
	return &Builder{pool: pool, tmpRoot: tmpRoot, archiver: archiver}
}

// Build serializes histories to Delta.txt, copies every blob any of their
// events reference into the same temp directory (deduplicated but not
// diffed against the target peer — §9 open question, redundancy preserved
// deliberately for simplicity), archives it, and returns the archive path.
// The caller owns deleting the returned path once it has been sent.
func (b *Builder) Build(histories []*history.History) (string, error) {
	workDir, err := b.newScratchDir()
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(workDir)

	if err := b.writeDelta(workDir, histories); err != nil {
		return "", err
	}

	if err := b.copyReferencedBlobs(workDir, histories); err != nil {
		return "", err
	}

	archivePath := workDir + ".zip"
	if err := b.archiver.Pack(workDir, archivePath); err != nil {
		return "", fmt.Errorf("bundle: packing archive: %w", err)
	}

	return archivePath, nil
}

func (b *Builder) newScratchDir() (string, error) {
	if err := os.MkdirAll(b.tmpRoot, dirPerms); err != nil {
		return "", fmt.Errorf("bundle: creating scratch root %s: %w", b.tmpRoot, err)
	}

	name, err := randomHash()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(b.tmpRoot, name)
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return "", fmt.Errorf("bundle: creating scratch dir %s: %w", dir, err)
	}

	return dir, nil
}

func (b *Builder) writeDelta(workDir string, histories []*history.History) error {
	data, err := json.MarshalIndent(toDeltaDocument(histories), "", "  ")
	if err != nil {
		return fmt.Errorf("bundle: marshaling delta: %w", err)
	}

	if err := os.WriteFile(filepath.Join(workDir, deltaFileName), data, filePerms); err != nil {
		return fmt.Errorf("bundle: writing %s: %w", deltaFileName, err)
	}

	return nil
}

// copyReferencedBlobs copies every distinct non-empty digest referenced by
// any event of any history into workDir, bounded to a modest concurrency
// so a large bundle doesn't open hundreds of file descriptors at once.
func (b *Builder) copyReferencedBlobs(workDir string, histories []*history.History) error {
	digests := map[string]bool{}

	for _, h := range histories {
		for _, ev := range h.Events() {
			if ev.SHA1 != "" {
				digests[ev.SHA1] = true
			}
		}
	}

	const maxParallelCopies = 8

	g := new(errgroup.Group)
	g.SetLimit(maxParallelCopies)

	for digest := range digests {
		digest := digest

		g.Go(func() error {
			data, err := b.pool.Get(digest)
			if err != nil {
				return fmt.Errorf("bundle: reading blob %s for bundle: %w", digest, err)
			}

			if err := os.WriteFile(filepath.Join(workDir, digest), data, filePerms); err != nil {
				return fmt.Errorf("bundle: writing blob %s into bundle: %w", digest, err)
			}

			return nil
		})
	}

	return g.Wait()
}

func randomHash() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("bundle: generating random scratch name: %w", err)
	}

	return hex.EncodeToString(b), nil
}
