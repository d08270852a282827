package history

import (
	"fmt"

	"github.com/google/uuid"
)

// ReplayKind is the filesystem action implied by a merged event becoming
// the new head of a history (§4.C3 replay table).
type ReplayKind int

// Replay kinds. ReplayNone means the merged event was historical (not the
// new head) and nothing should be written to the working tree.
const (
	ReplayNone ReplayKind = iota
	ReplayMkdir
	ReplayWriteEmpty
	ReplayCopyBlob
	ReplayMove
	ReplayRmdir
	ReplayUnlink
)

// ReplayAction tells the caller what single filesystem mutation (if any)
// must be performed to bring the working tree into line with a just-merged
// event. History itself never touches the filesystem — this keeps it
// trivially unit-testable, mirroring the separation between a reconciler
// producing actions and an executor performing them.
type ReplayAction struct {
	Kind     ReplayKind
	Path     string // destination path for mkdir/write/copy/rmdir/unlink
	FromPath string // source path for ReplayMove
	SHA1     string // blob digest for ReplayCopyBlob
}

// Merge appends a foreign event and reports the replay action implied by
// it, per §4.C3. Merge distinguishes the first-event path (history was
// empty) from the subsequent-event path (history already has a head). An
// event whose EventID is already present is a redelivery — §3 "event_id:
// unique globally" — and is dropped without a second append, which is what
// makes re-merging the same bundle (or an overlapping one) idempotent.
func (h *History) Merge(ev Event) (ReplayAction, error) {
	if h.hasEvent(ev.EventID) {
		return ReplayAction{Kind: ReplayNone}, nil
	}

	if len(h.events) == 0 {
		return h.mergeFirst(ev)
	}

	return h.mergeSubsequent(ev)
}

// hasEvent reports whether an event with this EventID has already been
// appended to the history.
func (h *History) hasEvent(id uuid.UUID) bool {
	for _, existing := range h.events {
		if existing.EventID == id {
			return true
		}
	}

	return false
}

// mergeFirst handles merging into an empty history: the incoming event
// must be Created, and replay always happens (there is no "historical"
// concept yet).
func (h *History) mergeFirst(ev Event) (ReplayAction, error) {
	if ev.Type != Created {
		return ReplayAction{}, fmt.Errorf("%w: got %s", ErrEmptyHistoryNeedsCreate, ev.Type)
	}

	h.id = ev.FileID
	h.append(ev)

	if ev.IsDirectory {
		return ReplayAction{Kind: ReplayMkdir, Path: ev.Name}, nil
	}

	if ev.SHA1 == "" {
		return ReplayAction{Kind: ReplayWriteEmpty, Path: ev.Name}, nil
	}

	return ReplayAction{Kind: ReplayCopyBlob, Path: ev.Name, SHA1: ev.SHA1}, nil
}

// mergeSubsequent handles merging into a non-empty history. The event is
// replayed only if it becomes the new head (its `when` exceeds the
// previous head's `when`); otherwise it is historical and nothing is
// written to the working tree.
func (h *History) mergeSubsequent(ev Event) (ReplayAction, error) {
	last, _ := h.Last()

	if ev.IsDirectory != last.IsDirectory {
		return ReplayAction{}, fmt.Errorf("%w: history=%v event=%v", ErrDirectoryMismatch, last.IsDirectory, ev.IsDirectory)
	}

	h.append(ev)

	if ev.When <= last.When {
		return ReplayAction{Kind: ReplayNone}, nil
	}

	return replayFor(ev, last)
}

// replayFor builds the replay action for an event known to be the new head,
// per the §4.C3 replay table.
func replayFor(ev, last Event) (ReplayAction, error) {
	switch ev.Type {
	case Created, Changed:
		return replayWrite(ev), nil
	case Renamed:
		return ReplayAction{Kind: ReplayMove, FromPath: last.Name, Path: ev.Name}, nil
	case Deleted:
		if ev.IsDirectory {
			return ReplayAction{Kind: ReplayRmdir, Path: ev.Name}, nil
		}

		return ReplayAction{Kind: ReplayUnlink, Path: ev.Name}, nil
	default:
		return ReplayAction{}, fmt.Errorf("history: unknown event type %q", ev.Type)
	}
}

// replayWrite builds the write-empty-or-copy-blob action shared by Created
// and Changed (directories never carry sha1, so IsDirectory events fall
// through to an empty mkdir-equivalent handled by the caller for Created;
// a Changed event on a directory never happens per the invariant that
// sha1 is always null for directories).
func replayWrite(ev Event) ReplayAction {
	if ev.IsDirectory {
		return ReplayAction{Kind: ReplayMkdir, Path: ev.Name}
	}

	if ev.SHA1 == "" {
		return ReplayAction{Kind: ReplayWriteEmpty, Path: ev.Name}
	}

	return ReplayAction{Kind: ReplayCopyBlob, Path: ev.Name, SHA1: ev.SHA1}
}
