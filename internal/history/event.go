// Package history implements the per-file event log (data-model.md section 3
// of the teacher spec: file events and file histories). A History is an
// append-only, totally ordered log of Events for one stable FileID; it never
// forgets anything and never edits a prior entry — deletion is a tombstone
// event, not a removal.
package history

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// EventType is the kind of change a single Event records.
type EventType string

// Event types, in the order the spec enumerates them.
const (
	Created EventType = "created"
	Changed EventType = "changed"
	Renamed EventType = "renamed"
	Deleted EventType = "deleted"
)

// ErrEmptyHistoryNeedsCreate is returned by Merge when the first event ever
// appended to a history is not a Created event — a fatal protocol violation
// per the foreign-merge contract.
var ErrEmptyHistoryNeedsCreate = errors.New("history: first event of a history must be Created")

// ErrDirectoryMismatch is returned by Merge when a foreign event's IsDirectory
// disagrees with the history it is being merged into.
var ErrDirectoryMismatch = errors.New("history: merge event is_directory disagrees with history")

// Event is an immutable record of one change to one file identity. Event
// values are never mutated after construction; History.sort reorders slice
// elements, it never edits a field.
type Event struct {
	FileID        uuid.UUID `json:"file_id"`
	EventID       uuid.UUID `json:"event_id"`
	ParentEventID uuid.UUID `json:"parent_event_id,omitempty"`
	IsDirectory   bool      `json:"is_directory"`
	Name          string    `json:"name"`
	When          int64     `json:"when"` // 100ns ticks, UTC, monotonically increasing per §4.C5
	SHA1          string    `json:"sha1,omitempty"`
	Size          int64     `json:"size"`
	Type          EventType `json:"type"`
}

// newEvent allocates an EventID and stamps the causal parent link.
func newEvent(fileID, parent uuid.UUID, isDir bool, name string, when int64, typ EventType) Event {
	return Event{
		FileID:        fileID,
		EventID:       uuid.New(),
		ParentEventID: parent,
		IsDirectory:   isDir,
		Name:          name,
		When:          when,
		Type:          typ,
	}
}

// History is the ordered log of Events for one FileID. The zero value is not
// usable; construct with New or via Merge on an empty *History.
type History struct {
	id     uuid.UUID
	events []Event
}

// New allocates a fresh, empty history with a new random FileID.
func New() *History {
	return &History{id: uuid.New()}
}

// NewWithID constructs an empty history that will adopt the given FileID —
// used when a foreign history is first seen during bundle Accept (§4.C7
// step 5: "create an empty local history, inherit id").
func NewWithID(id uuid.UUID) *History {
	return &History{id: id}
}

// FromEvents reconstructs a History from a previously persisted event slice
// (used by the version list loader). The events are sorted defensively.
func FromEvents(id uuid.UUID, events []Event) *History {
	h := &History{id: id, events: append([]Event(nil), events...)}
	h.sortEvents()

	return h
}

// ID returns the stable FileID for this history.
func (h *History) ID() uuid.UUID { return h.id }

// Events returns the history's events in ascending `when` order. The
// returned slice must not be mutated by the caller.
func (h *History) Events() []Event { return h.events }

// Len returns the number of events recorded.
func (h *History) Len() int { return len(h.events) }

// Last returns the most recent event, or the zero Event and false if the
// history is empty.
func (h *History) Last() (Event, bool) {
	if len(h.events) == 0 {
		return Event{}, false
	}

	return h.events[len(h.events)-1], true
}

// Alive reports whether the history's last event is not Deleted. An empty
// history is not alive.
func (h *History) Alive() bool {
	last, ok := h.Last()
	return ok && last.Type != Deleted
}

// IsDirectory returns the is_directory flag copied across every event, or
// false if the history is still empty.
func (h *History) IsDirectory() bool {
	if len(h.events) == 0 {
		return false
	}

	return h.events[0].IsDirectory
}

// CurrentName returns the current-name field of the last event, or "" if
// the history is empty.
func (h *History) CurrentName() string {
	last, ok := h.Last()
	if !ok {
		return ""
	}

	return last.Name
}

// append inserts ev and re-sorts by `when`. Because locally originated
// events carry strictly increasing `when` (guaranteed by the detector),
// local appends are effectively append-only; the sort only reorders
// entries when a foreign merge event's `when` predates existing events.
func (h *History) append(ev Event) {
	h.events = append(h.events, ev)
	h.sortEvents()
}

// sortEvents performs a stable sort by `when`, preserving insertion order
// for ties (Go's sort.SliceStable contract).
func (h *History) sortEvents() {
	sort.SliceStable(h.events, func(i, j int) bool {
		return h.events[i].When < h.events[j].When
	})
}

func (h *History) parentID() uuid.UUID {
	last, ok := h.Last()
	if !ok {
		return uuid.Nil
	}

	return last.EventID
}

// Create appends the first event of a brand-new, locally originated history.
func (h *History) Create(name string, isDirectory bool, when int64) Event {
	ev := newEvent(h.id, uuid.Nil, isDirectory, name, when, Created)
	h.append(ev)

	return ev
}

// Rename appends a Renamed event, copying sha1/size from the current head.
func (h *History) Rename(newName string, when int64) (Event, error) {
	last, ok := h.Last()
	if !ok {
		return Event{}, fmt.Errorf("history: rename on empty history")
	}

	ev := newEvent(h.id, last.EventID, last.IsDirectory, newName, when, Renamed)
	ev.SHA1 = last.SHA1
	ev.Size = last.Size
	h.append(ev)

	return ev, nil
}

// Change appends a Changed event. size is 0 when sha1 is empty (directories,
// created-empty files), else it is the caller-supplied blob size.
func (h *History) Change(sha1 string, size int64, when int64) (Event, error) {
	last, ok := h.Last()
	if !ok {
		return Event{}, fmt.Errorf("history: change on empty history")
	}

	ev := newEvent(h.id, last.EventID, last.IsDirectory, last.Name, when, Changed)
	ev.SHA1 = sha1

	if sha1 == "" {
		ev.Size = 0
	} else {
		ev.Size = size
	}

	h.append(ev)

	return ev, nil
}

// Delete appends a Deleted tombstone, copying sha1/size/name from the
// current head. The history is never removed — only marked not-alive.
func (h *History) Delete(when int64) (Event, error) {
	last, ok := h.Last()
	if !ok {
		return Event{}, fmt.Errorf("history: delete on empty history")
	}

	ev := newEvent(h.id, last.EventID, last.IsDirectory, last.Name, when, Deleted)
	ev.SHA1 = last.SHA1
	ev.Size = last.Size
	h.append(ev)

	return ev, nil
}
