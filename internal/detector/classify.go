package detector

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// pendingRemoval is a Rename/Remove raw event whose classification is held
// back within one drain cycle, waiting to see whether any Create shows up
// in the same cycle (rename) or not (delete); content is not compared, and
// the sha1/size fields are not filled in by snapshotForRemoval. fsnotify's
// inotify backend reports a move as a bare Remove-shaped event on the old
// name and a separate Create on the new name — it does not correlate them
// itself, so the detector does the pairing here.
type pendingRemoval struct {
	name        string
	isDirectory bool
	sha1        string
	size        int64
}

// drainAndProcess swaps out the queued raw events and turns them into
// canonical Notifications, pairing same-cycle remove+create pairs into
// Renamed events per the heuristic above. Unpaired removals become
// Deleted; unpaired creates become Created or Changed depending on
// whether the Version List already knows the path.
func (d *Detector) drainAndProcess(ctx context.Context, events chan<- Notification) {
	d.queueMu.Lock()
	batch := d.queue
	d.queue = nil
	d.queueMu.Unlock()

	var removals []pendingRemoval
	var creates []rawEvent
	var writes []rawEvent

	for _, ev := range batch {
		switch {
		case ev.op&(fsnotify.Remove|fsnotify.Rename) != 0:
			if pr, ok := d.snapshotForRemoval(ev.name); ok {
				removals = append(removals, pr)
			}
		case ev.op&fsnotify.Create != 0:
			creates = append(creates, ev)
		case ev.op&fsnotify.Write != 0:
			writes = append(writes, ev)
		}
	}

	creates = d.pairRenames(ctx, events, removals, creates)

	for _, ev := range creates {
		if d.index.Exists(ev.name) {
			d.emitChange(ctx, events, ev.name)
			continue
		}

		d.emitCreate(ctx, events, ev.name)
	}

	for _, ev := range writes {
		d.emitChange(ctx, events, ev.name)
	}
}

// snapshotForRemoval records enough about a vanished path to later decide
// whether it was a delete or the source side of a rename: only its name,
// and only if the Version List has an alive history there. No hash is taken.
func (d *Detector) snapshotForRemoval(name string) (pendingRemoval, bool) {
	if !d.index.Exists(name) {
		return pendingRemoval{}, false
	}

	return pendingRemoval{name: name}, true
}

// pairRenames matches each pending removal against the earliest
// still-unconsumed create, emitting one Renamed notification for each pair.
// For a file, the notification carries the destination's digest, so the
// Version List can append the extra Changed of §4.C4 when the content
// differs. Leftover removals become
// Deleted; leftover creates are returned for the caller to classify as
// Created.
func (d *Detector) pairRenames(ctx context.Context, events chan<- Notification, removals []pendingRemoval, creates []rawEvent) []rawEvent {
	remaining := creates[:0:0]
	consumed := make([]bool, len(creates))

	for _, removal := range removals {
		paired := false

		for i, c := range creates {
			if consumed[i] {
				continue
			}

			consumed[i] = true
			paired = true
			d.emitRename(ctx, events, removal.name, c.name)

			break
		}

		if !paired {
			d.emitDelete(ctx, events, removal.name)
		}
	}

	for i, c := range creates {
		if !consumed[i] {
			remaining = append(remaining, c)
		}
	}

	return remaining
}

func (d *Detector) emitCreate(ctx context.Context, events chan<- Notification, name string) {
	abs := filepath.Join(d.root, filepath.FromSlash(name))

	info, err := os.Lstat(abs)
	if err != nil {
		return // vanished between notification and processing; next cycle will reconcile
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return
	}

	isDir := info.IsDir()

	d.trySend(ctx, events, Notification{
		Type:        Created,
		Name:        name,
		IsDirectory: isDir,
		When:        d.clock.Next(),
	})
}

func (d *Detector) emitChange(ctx context.Context, events chan<- Notification, name string) {
	abs := filepath.Join(d.root, filepath.FromSlash(name))

	info, err := os.Lstat(abs)
	if err != nil || info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
		return
	}

	digest, err := d.pool.PutPath(abs)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("hashing changed file failed, dropping event", "name", name, "error", err.Error())
		}

		return
	}

	d.trySend(ctx, events, Notification{
		Type: Changed,
		Name: name,
		SHA1: digest,
		Size: info.Size(),
		When: d.clock.Next(),
	})
}

func (d *Detector) emitRename(ctx context.Context, events chan<- Notification, oldName, newName string) {
	abs := filepath.Join(d.root, filepath.FromSlash(newName))

	info, err := os.Lstat(abs)
	if err != nil {
		d.emitDelete(ctx, events, oldName)
		return
	}

	isDir := info.IsDir()

	n := Notification{
		Type:        Renamed,
		Name:        newName,
		OldName:     oldName,
		IsDirectory: isDir,
		When:        d.clock.Next(),
	}

	if !isDir {
		digest, err := d.pool.PutPath(abs)
		if err == nil {
			n.SHA1 = digest
			n.Size = info.Size()
		}
	}

	d.trySend(ctx, events, n)
}

func (d *Detector) emitDelete(ctx context.Context, events chan<- Notification, name string) {
	d.trySend(ctx, events, Notification{
		Type: Deleted,
		Name: name,
		When: d.clock.Next(),
	})
}
