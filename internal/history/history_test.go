package history

import (
	"testing"

	"github.com/google/uuid"
)

func TestCreateIsAlwaysFirstEvent(t *testing.T) {
	h := New()
	ev := h.Create("a.txt", false, 100)

	if ev.Type != Created {
		t.Fatalf("Create: got type %s, want Created", ev.Type)
	}

	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}

	if !h.Alive() {
		t.Fatalf("Alive() = false after Create, want true")
	}
}

func TestScenarioCreateEditRenameDelete(t *testing.T) {
	h := New()
	h.Create("a.txt", false, 100)

	if _, err := h.Change("aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", 5, 200); err != nil {
		t.Fatalf("Change: %v", err)
	}

	if _, err := h.Rename("b.txt", 300); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if _, err := h.Delete(400); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if h.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", h.Len())
	}

	if h.Alive() {
		t.Fatalf("Alive() = true after Delete, want false")
	}

	last, _ := h.Last()
	if last.Name != "b.txt" {
		t.Fatalf("current name = %q, want %q", last.Name, "b.txt")
	}

	if last.SHA1 != "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d" {
		t.Fatalf("sha1 not preserved across rename/delete: %q", last.SHA1)
	}
}

func TestEventsSortedByWhen(t *testing.T) {
	h := New()
	h.Create("a.txt", false, 100)
	h.Change("deadbeef", 4, 50) //nolint:errcheck // intentionally out-of-order `when` for the assertion below

	events := h.Events()
	for i := 1; i < len(events); i++ {
		if events[i].When < events[i-1].When {
			t.Fatalf("events not sorted by when: %+v", events)
		}
	}
}

func TestParentEventIDFormsChain(t *testing.T) {
	h := New()
	first := h.Create("a.txt", false, 100)
	second, _ := h.Change("deadbeef", 1, 200)
	third, _ := h.Rename("b.txt", 300)

	if first.ParentEventID != uuid.Nil {
		t.Fatalf("first event parent = %v, want Nil", first.ParentEventID)
	}

	if second.ParentEventID != first.EventID {
		t.Fatalf("second event parent = %v, want %v", second.ParentEventID, first.EventID)
	}

	if third.ParentEventID != second.EventID {
		t.Fatalf("third event parent = %v, want %v", third.ParentEventID, second.EventID)
	}
}

func TestMergeEmptyHistoryRequiresCreated(t *testing.T) {
	h := New()
	bad := Event{FileID: h.ID(), EventID: uuid.New(), Type: Changed, Name: "a.txt", When: 1}

	if _, err := h.Merge(bad); err == nil {
		t.Fatalf("Merge: expected error for non-Created first event")
	}
}

func TestMergeDirectoryMismatchIsFatal(t *testing.T) {
	h := New()
	h.Create("a.txt", false, 100)

	foreign := Event{FileID: h.ID(), EventID: uuid.New(), Type: Changed, IsDirectory: true, Name: "a.txt", When: 200}
	if _, err := h.Merge(foreign); err == nil {
		t.Fatalf("Merge: expected error for is_directory mismatch")
	}
}

func TestMergeHistoricalEventDoesNotReplay(t *testing.T) {
	h := New()
	h.Create("a.txt", false, 1000)

	historical := Event{FileID: h.ID(), EventID: uuid.New(), Type: Changed, Name: "a.txt", SHA1: "aa", Size: 1, When: 1}
	action, err := h.Merge(historical)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if action.Kind != ReplayNone {
		t.Fatalf("action.Kind = %v, want ReplayNone", action.Kind)
	}

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
}

func TestMergeSameEventIDTwiceIsNoopAppend(t *testing.T) {
	h := New()
	h.Create("a.txt", false, 100)

	head := Event{FileID: h.ID(), EventID: uuid.New(), Type: Changed, Name: "a.txt", SHA1: "aa", Size: 1, When: 200}

	if _, err := h.Merge(head); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if h.Len() != 2 {
		t.Fatalf("Len() after first merge = %d, want 2", h.Len())
	}

	action, err := h.Merge(head)
	if err != nil {
		t.Fatalf("Merge (redelivery): %v", err)
	}

	if action.Kind != ReplayNone {
		t.Fatalf("redelivered event action.Kind = %v, want ReplayNone", action.Kind)
	}

	if h.Len() != 2 {
		t.Fatalf("Len() after redelivered merge = %d, want 2 (no duplicate append)", h.Len())
	}
}

func TestMergeNewHeadReplaysCopyBlob(t *testing.T) {
	h := New()
	h.Create("a.txt", false, 100)

	head := Event{FileID: h.ID(), EventID: uuid.New(), Type: Changed, Name: "a.txt", SHA1: "aa", Size: 1, When: 200}
	action, err := h.Merge(head)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if action.Kind != ReplayCopyBlob || action.Path != "a.txt" || action.SHA1 != "aa" {
		t.Fatalf("action = %+v, want CopyBlob a.txt/aa", action)
	}
}

func TestMergeRenameReplaysMove(t *testing.T) {
	h := New()
	h.Create("a.txt", false, 100)

	renamed := Event{FileID: h.ID(), EventID: uuid.New(), Type: Renamed, Name: "b.txt", When: 200}
	action, err := h.Merge(renamed)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if action.Kind != ReplayMove || action.FromPath != "a.txt" || action.Path != "b.txt" {
		t.Fatalf("action = %+v, want Move a.txt->b.txt", action)
	}
}

func TestMergeDeleteReplaysUnlinkOrRmdir(t *testing.T) {
	h := New()
	h.Create("dir", true, 100)

	deleted := Event{FileID: h.ID(), EventID: uuid.New(), Type: Deleted, IsDirectory: true, Name: "dir", When: 200}
	action, err := h.Merge(deleted)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if action.Kind != ReplayRmdir || action.Path != "dir" {
		t.Fatalf("action = %+v, want Rmdir dir", action)
	}
}

func TestFromEventsSortsDefensively(t *testing.T) {
	id := uuid.New()
	events := []Event{
		{FileID: id, EventID: uuid.New(), Type: Changed, Name: "a.txt", When: 300},
		{FileID: id, EventID: uuid.New(), Type: Created, Name: "a.txt", When: 100},
		{FileID: id, EventID: uuid.New(), Type: Renamed, Name: "b.txt", When: 200},
	}

	h := FromEvents(id, events)
	got := h.Events()

	if got[0].Type != Created || got[1].Type != Renamed || got[2].Type != Changed {
		t.Fatalf("FromEvents did not sort by when: %+v", got)
	}
}
