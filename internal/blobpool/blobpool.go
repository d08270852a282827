// Package blobpool implements the content-addressed blob store (§4.C1): a
// flat directory of immutable files named by the lowercase hex SHA-1 digest
// of their content. Writes are atomic with respect to crashes and idempotent
// for identical content, grounded on the teacher's SessionStore.Save
// temp-file-then-os.Rename pattern (internal/driveops/session_store.go).
package blobpool

import (
	"crypto/sha1" //nolint:gosec // digest choice is a spec invariant, not a security boundary
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Get when no blob exists for the given digest.
var ErrNotFound = errors.New("blobpool: digest not found")

// dirPerms matches the metadata directory permissions used throughout the
// repository.
const dirPerms = 0o755

// filePerms restricts blob files to owner-writable, world-readable — blobs
// carry no secrets but should not be casually overwritten.
const filePerms = 0o644

// Pool is a content-addressed store rooted at a directory (conventionally
// `.Distribox/data`). The zero value is not usable; construct with Open.
type Pool struct {
	dir    string
	logger *slog.Logger
}

// Open creates the pool directory if absent and returns a Pool rooted there.
func Open(dir string, logger *slog.Logger) (*Pool, error) {
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return nil, fmt.Errorf("blobpool: creating pool dir %s: %w", dir, err)
	}

	return &Pool{dir: dir, logger: logger}, nil
}

// Dir returns the pool's root directory.
func (p *Pool) Dir() string { return p.dir }

// Size returns the number of blobs in the pool and their total size in
// bytes, by walking the pool directory. Intended for status reporting, not
// the hot path.
func (p *Pool) Size() (count int, totalBytes int64, err error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return 0, 0, fmt.Errorf("blobpool: reading pool dir %s: %w", p.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return 0, 0, fmt.Errorf("blobpool: statting %s: %w", entry.Name(), err)
		}

		count++
		totalBytes += info.Size()
	}

	return count, totalBytes, nil
}

// digestPath returns the path a digest is (or would be) stored at.
func (p *Pool) digestPath(digest string) string {
	return filepath.Join(p.dir, digest)
}

// Exists reports whether the pool already holds a blob for digest.
func (p *Pool) Exists(digest string) bool {
	_, err := os.Stat(p.digestPath(digest))
	return err == nil
}

// Put computes the SHA-1 of data and stores it if absent, returning the
// digest. Put is idempotent: storing the same content twice is a no-op on
// the second call and always returns the same digest.
func (p *Pool) Put(data []byte) (string, error) {
	sum := sha1.Sum(data) //nolint:gosec // see package doc
	digest := hex.EncodeToString(sum[:])

	if p.Exists(digest) {
		return digest, nil
	}

	if err := p.writeAtomic(digest, data); err != nil {
		return "", err
	}

	return digest, nil
}

// PutPath streams the file at path into the pool, computing its SHA-1 along
// the way without loading the whole file into memory.
func (p *Pool) PutPath(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("blobpool: opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha1.New() //nolint:gosec // see package doc

	tmp, err := os.CreateTemp(p.dir, "put-*.tmp")
	if err != nil {
		return "", fmt.Errorf("blobpool: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, io.TeeReader(f, h)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return "", fmt.Errorf("blobpool: streaming %s into pool: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("blobpool: closing temp file: %w", err)
	}

	digest := hex.EncodeToString(h.Sum(nil))

	if p.Exists(digest) {
		os.Remove(tmpPath)
		return digest, nil
	}

	if err := os.Chmod(tmpPath, filePerms); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("blobpool: setting permissions on %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, p.digestPath(digest)); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("blobpool: renaming temp file into pool: %w", err)
	}

	return digest, nil
}

// Get returns the bytes stored under digest, or ErrNotFound.
func (p *Pool) Get(digest string) ([]byte, error) {
	data, err := os.ReadFile(p.digestPath(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
		}

		return nil, fmt.Errorf("blobpool: reading %s: %w", digest, err)
	}

	return data, nil
}

// CopyTo copies the blob under digest to destPath on the local filesystem,
// creating parent directories as needed. Used by merge replay (§4.C3) to
// materialize a foreign event's content.
func (p *Pool) CopyTo(digest, destPath string) error {
	src, err := os.Open(p.digestPath(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, digest)
		}

		return fmt.Errorf("blobpool: opening blob %s: %w", digest, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), dirPerms); err != nil {
		return fmt.Errorf("blobpool: creating parent dir for %s: %w", destPath, err)
	}

	dst, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerms)
	if err != nil {
		return fmt.Errorf("blobpool: opening destination %s: %w", destPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("blobpool: copying blob %s to %s: %w", digest, destPath, err)
	}

	return nil
}

// writeAtomic writes data to a temp file in the pool directory, then renames
// it into place under its digest. A partially written blob is never
// observable under its final name because the rename is the only way the
// final name comes into existence.
func (p *Pool) writeAtomic(digest string, data []byte) error {
	tmp, err := os.CreateTemp(p.dir, "put-*.tmp")
	if err != nil {
		return fmt.Errorf("blobpool: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("blobpool: writing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("blobpool: closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, filePerms); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("blobpool: setting permissions on %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, p.digestPath(digest)); err != nil {
		os.Remove(tmpPath) // best-effort cleanup
		return fmt.Errorf("blobpool: renaming temp file into pool: %w", err)
	}

	if p.logger != nil {
		p.logger.Debug("blob stored", slog.String("digest", digest), slog.Int("bytes", len(data)))
	}

	return nil
}
