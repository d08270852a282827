package bundle

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/distribox/distribox/internal/blobpool"
	"github.com/distribox/distribox/internal/detector"
	"github.com/distribox/distribox/internal/history"
	"github.com/distribox/distribox/internal/versionlist"
)

// Ledger records which bundle digests have already been accepted, letting
// Accept short-circuit a redelivered bundle instead of replaying it (§9:
// bundle transfer is not assumed exactly-once). Concretely implemented by
// internal/ledger against a SQLite table; nil is valid and disables the
// fast path (every bundle is replayed, which is harmless since Merge is
// itself idempotent per event).
type Ledger interface {
	Seen(digest string) (bool, error)
	Record(digest string) error
}

// Acceptor extracts a received bundle archive and merges its histories into
// the local Version List, per §4.C7 "Accept". Exactly one of Acceptor.Accept
// and the Controller's notification loop may run at a time against the same
// Version List (§5); callers must share the same *sync.Mutex between the two
// to enforce this.
type Acceptor struct {
	list            *versionlist.List
	pool            *blobpool.Pool
	root            string
	versionListPath string
	tmpRoot         string
	archiver        Archiver
	mute            *detector.Mute
	ledger          Ledger
	mu              *sync.Mutex
	logger          *slog.Logger
}

// NewAcceptor constructs an Acceptor. root is the synced working tree;
// versionListPath is where the Version List is persisted after a successful
// merge; mu is the mutual-exclusion lock shared with the live Controller;
// ledger may be nil to disable idempotence short-circuiting.
func NewAcceptor(
	list *versionlist.List,
	pool *blobpool.Pool,
	root, versionListPath, tmpRoot string,
	archiver Archiver,
	mute *detector.Mute,
	ledger Ledger,
	mu *sync.Mutex,
	logger *slog.Logger,
) *Acceptor {
	return &Acceptor{
		list:            list,
		pool:            pool,
		root:            root,
		versionListPath: versionListPath,
		tmpRoot:         tmpRoot,
		archiver:        archiver,
		mute:            mute,
		ledger:          ledger,
		mu:              mu,
		logger:          logger,
	}
}

// Accept unarchives data, verifies and ingests every blob it carries that
// the pool does not already hold,
// deserializes Delta.txt, and merges each foreign history into the local
// Version List, replaying each resulting mutation onto the working tree.
// Accept holds the shared mutex for its whole duration — it must never run
// concurrently with the Controller's own notification-apply loop.
func (a *Acceptor) Accept(digest string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ledger != nil {
		seen, err := a.ledger.Seen(digest)
		if err != nil {
			return fmt.Errorf("bundle: checking ledger for %s: %w", digest, err)
		}

		if seen {
			if a.logger != nil {
				a.logger.Debug("skipping already-accepted bundle", slog.String("digest", digest))
			}

			return nil
		}
	}

	workDir, archivePath, err := a.stageArchive(data)
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)
	defer os.Remove(archivePath)

	extractDir := workDir + "-extracted"
	if err := a.archiver.Unpack(archivePath, extractDir); err != nil {
		return fmt.Errorf("bundle: unpacking bundle: %w", err)
	}
	defer os.RemoveAll(extractDir)

	doc, err := a.ingestBlobs(extractDir)
	if err != nil {
		return err
	}

	if err := a.mergeHistories(doc); err != nil {
		return err
	}

	if err := a.list.Flush(a.versionListPath); err != nil {
		return fmt.Errorf("bundle: flushing version list after accept: %w", err)
	}

	if a.ledger != nil {
		if err := a.ledger.Record(digest); err != nil {
			return fmt.Errorf("bundle: recording %s in ledger: %w", digest, err)
		}
	}

	return nil
}

// stageArchive writes the received bytes to a scratch file under tmpRoot so
// the Archiver (which operates on paths, not byte slices) can unpack it.
func (a *Acceptor) stageArchive(data []byte) (workDir, archivePath string, err error) {
	if err := os.MkdirAll(a.tmpRoot, dirPerms); err != nil {
		return "", "", fmt.Errorf("bundle: creating scratch root %s: %w", a.tmpRoot, err)
	}

	name, err := randomHash()
	if err != nil {
		return "", "", err
	}

	workDir = filepath.Join(a.tmpRoot, name)
	archivePath = workDir + ".zip"

	if err := os.WriteFile(archivePath, data, filePerms); err != nil {
		return "", "", fmt.Errorf("bundle: staging received archive: %w", err)
	}

	return workDir, archivePath, nil
}

// ingestBlobs copies every non-delta file out of the extracted bundle into
// the pool, verifying that its extracted name matches the digest of its own
// content, and returns the parsed Delta.txt document. A file whose name the
// pool already holds is skipped without being read or re-hashed.
func (a *Acceptor) ingestBlobs(extractDir string) (deltaDocument, error) {
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return deltaDocument{}, fmt.Errorf("bundle: reading extracted bundle: %w", err)
	}

	var doc deltaDocument
	sawDelta := false

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(extractDir, entry.Name())

		if entry.Name() == deltaFileName {
			raw, err := os.ReadFile(path)
			if err != nil {
				return deltaDocument{}, fmt.Errorf("%w: reading %s: %v", ErrProtocol, deltaFileName, err)
			}

			if err := json.Unmarshal(raw, &doc); err != nil {
				return deltaDocument{}, fmt.Errorf("%w: parsing %s: %v", ErrProtocol, deltaFileName, err)
			}

			sawDelta = true

			continue
		}

		if a.pool.Exists(entry.Name()) {
			continue
		}

		digest, err := a.pool.PutPath(path)
		if err != nil {
			return deltaDocument{}, fmt.Errorf("bundle: ingesting blob %s: %w", entry.Name(), err)
		}

		if digest != entry.Name() {
			return deltaDocument{}, fmt.Errorf("%w: blob entry %q hashes to %s", ErrIntegrity, entry.Name(), digest)
		}
	}

	if !sawDelta {
		return deltaDocument{}, fmt.Errorf("%w: bundle missing %s", ErrProtocol, deltaFileName)
	}

	return doc, nil
}

// mergeHistories applies every foreign history's events, in order, to the
// matching local history (creating and adopting one if this FileID is new),
// replaying each resulting mutation onto the working tree and keeping the
// by-name index current as names change mid-merge.
func (a *Acceptor) mergeHistories(doc deltaDocument) error {
	for _, fh := range doc.Histories {
		h := a.list.ByID(fh.FileID)

		if h == nil {
			h = history.NewWithID(fh.FileID)
			a.list.AdoptForeign(h)
		}

		for _, ev := range fh.Events {
			previousName := h.CurrentName()

			action, err := h.Merge(ev)
			if err != nil {
				return fmt.Errorf("%w: file %s: %v", ErrProtocol, fh.FileID, err)
			}

			if err := replayToWorkingTree(a.root, a.pool, a.mute, action); err != nil {
				return fmt.Errorf("bundle: replaying merge for file %s: %w", fh.FileID, err)
			}

			a.list.ReindexName(h, previousName)
		}
	}

	return nil
}
