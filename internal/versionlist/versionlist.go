// Package versionlist implements the Version List (§4.C4): the set of all
// File Histories plus a secondary by-current-name index, persisted as a
// single JSON document. Grounded on the teacher's BaselineManager being
// "the sole writer" of sync state (internal/sync/baseline.go), generalized
// from a SQLite baseline table to a JSON document per §3/§6.
package versionlist

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/distribox/distribox/internal/history"
)

// ErrNoAliveHistory is returned by lookups when no alive history currently
// owns the given name — the caller asked for a file that either never
// existed or was deleted and not yet recreated.
var ErrNoAliveHistory = errors.New("versionlist: no alive history for name")

// List is the in-memory Version List: the primary FileID index plus the
// derived by-current-name secondary index (§3 "Version List"). The
// secondary index is rebuilt on Load and maintained incrementally here;
// it is never itself persisted.
type List struct {
	mu     sync.Mutex
	logger *slog.Logger

	byID   map[uuid.UUID]*history.History
	byName map[string]*history.History
}

// New constructs an empty Version List.
func New(logger *slog.Logger) *List {
	return &List{
		logger: logger,
		byID:   make(map[uuid.UUID]*history.History),
		byName: make(map[string]*history.History),
	}
}

// Histories returns every history in the list, alive or not. The returned
// slice is a snapshot; callers must not mutate the underlying histories
// concurrently with other List operations.
func (l *List) Histories() []*history.History {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*history.History, 0, len(l.byID))
	for _, h := range l.byID {
		out = append(out, h)
	}

	return out
}

// ByID returns the history for a FileID, or nil if unknown.
func (l *List) ByID(id uuid.UUID) *history.History {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.byID[id]
}

// ByName returns the unique alive history currently at name, or
// ErrNoAliveHistory. A Deleted history that most recently held the name is
// ignored per §4.C4 ("if none is alive ... it is ignored").
func (l *List) ByName(name string) (*history.History, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAliveHistory, name)
	}

	return h, nil
}

// Len returns the total number of tracked histories (alive or tombstoned).
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.byID)
}

// Create allocates a new FileID, builds its history, and indexes it.
func (l *List) Create(name string, isDirectory bool, when int64) (*history.History, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := history.New()
	h.Create(name, isDirectory, when)

	l.byID[h.ID()] = h
	l.byName[name] = h

	return h, nil
}

// Change looks up the alive history currently at name and appends a
// Changed event to it.
func (l *List) Change(name string, sha1 string, size int64, when int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoAliveHistory, name)
	}

	_, err := h.Change(sha1, size, when)
	return err
}

// Rename looks up the alive history at oldName, renames it to newName, and
// updates the secondary index under the same mutation — per §9 ("the index
// must be updated under the same mutation that renames"). If sha1 is
// non-empty and differs from the history's current digest, an additional
// Change is appended: some platforms report content edits as renames, so
// the detector hashes unconditionally on rename (§4.C4).
func (l *List) Rename(oldName, newName string, sha1 string, size int64, when int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.byName[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoAliveHistory, oldName)
	}

	last, _ := h.Last()
	priorSHA1 := last.SHA1

	if _, err := h.Rename(newName, when); err != nil {
		return err
	}

	delete(l.byName, oldName)
	l.byName[newName] = h

	if sha1 != "" && sha1 != priorSHA1 {
		if _, err := h.Change(sha1, size, when); err != nil {
			return err
		}
	}

	return nil
}

// Delete looks up the alive history at name, appends a Deleted tombstone,
// and drops it from the secondary index (the history itself is retained
// forever per §3 "Lifecycle").
func (l *List) Delete(name string, when int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoAliveHistory, name)
	}

	if _, err := h.Delete(when); err != nil {
		return err
	}

	delete(l.byName, name)

	return nil
}

// AdoptForeign registers a history under its own FileID (used by bundle
// Accept when a foreign history is new to this peer, §4.C7 step 5) and
// indexes it by current name if alive. Safe to call for a FileID already
// known — it is a no-op refresh of the name index in that case.
func (l *List) AdoptForeign(h *history.History) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.byID[h.ID()] = h

	if h.Alive() {
		l.byName[h.CurrentName()] = h
	}
}

// ReindexName refreshes the secondary index entry for a single history
// after its current name may have changed as a result of merge replay.
// Safe to call liberally; it is idempotent.
func (l *List) ReindexName(h *history.History, previousName string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if previousName != "" {
		if existing, ok := l.byName[previousName]; ok && existing.ID() == h.ID() {
			delete(l.byName, previousName)
		}
	}

	if h.Alive() {
		l.byName[h.CurrentName()] = h
	} else {
		delete(l.byName, h.CurrentName())
	}
}
