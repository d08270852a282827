// Package detector implements the Change Detector (§4.C5): a debounced,
// serialized translator from raw filesystem notifications into a canonical
// stream of high-level file events with monotonically increasing
// timestamps and content hashes. Grounded on the teacher's
// internal/sync/observer_local.go LocalObserver.Watch/watchLoop, adapted
// from "classify against a SQLite baseline" to "classify against the
// Version List's secondary index and hash straight into the blob pool."
package detector

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/unicode/norm"

	"github.com/distribox/distribox/internal/blobpool"
)

// PathIndex answers "is there currently an alive history at this path?" —
// the minimal read-only view of the Version List the detector needs to
// classify a raw event as Created vs. Changed vs. a rename/delete
// candidate. Kept as a narrow interface (accept interfaces, return
// structs) so the detector package has no dependency on versionlist.
type PathIndex interface {
	Exists(path string) bool
}

// rawEvent is one dequeued fsnotify notification, stripped to what
// classification needs.
type rawEvent struct {
	op   fsnotify.Op
	name string
}

// Detector runs the single-threaded debounce pipeline described in §4.C5
// and §5: an OS watcher thread only enqueues, a ticker-driven worker
// thread drains the queue and does all classification, hashing, and
// canonical-event emission.
type Detector struct {
	root            string
	metadataDirName string
	pool            *blobpool.Pool
	clock           *Clock
	mute            *Mute
	index           PathIndex
	logger          *slog.Logger
	pollInterval    time.Duration
	watcherFactory  func() (FsWatcher, error)

	queueMu sync.Mutex
	queue   []rawEvent

	droppedEvents atomic.Int64
}

// Config bundles the construction parameters sourced from the external
// config collaborator (§6).
type Config struct {
	Root            string
	MetadataDirName string
	PollInterval    time.Duration
}

// New constructs a Detector. mute must be the same Mute instance the
// bundle package's merge replay uses, so detector suppression and replay
// suppression share one flag (§9).
func New(cfg Config, pool *blobpool.Pool, index PathIndex, mute *Mute, logger *slog.Logger) *Detector {
	return &Detector{
		root:            cfg.Root,
		metadataDirName: cfg.MetadataDirName,
		pool:            pool,
		clock:           NewClock(),
		mute:            mute,
		index:           index,
		logger:          logger,
		pollInterval:    cfg.PollInterval,
		watcherFactory:  newFsnotifyWatcher,
	}
}

// Clock exposes the detector's monotonic tick source so the controller can
// observe externally-merged timestamps (§4.C5 vs. bundle Accept interplay).
func (d *Detector) Clock() *Clock { return d.clock }

// DroppedEvents returns the count of canonical notifications dropped because
// the canonical-event channel was full. Grounded on the teacher's
// LocalObserver.DroppedEvents — a non-zero count indicates backpressure a
// caller may want to surface as a metric.
func (d *Detector) DroppedEvents() int64 { return d.droppedEvents.Load() }

// Watch monitors the sync root and publishes canonical Notifications to
// events until ctx is canceled. It blocks; run it in its own goroutine.
func (d *Detector) Watch(ctx context.Context, events chan<- Notification) error {
	watcher, err := d.watcherFactory()
	if err != nil {
		return fmt.Errorf("detector: creating filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := d.addWatchesRecursive(watcher); err != nil {
		return fmt.Errorf("detector: adding initial watches: %w", err)
	}

	return d.pumpAndDebounce(ctx, watcher, events)
}

// addWatchesRecursive walks the sync root and adds a watch on every
// directory except the metadata directory.
func (d *Detector) addWatchesRecursive(watcher FsWatcher) error {
	return filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d.logger != nil {
				d.logger.Warn("walk error during watch setup", slog.String("path", path), slog.String("error", walkErr.Error()))
			}

			return nil
		}

		if !entry.IsDir() {
			return nil
		}

		if path != d.root && isAlwaysExcluded(entry.Name(), d.metadataDirName) {
			return filepath.SkipDir
		}

		if err := watcher.Add(path); err != nil && d.logger != nil {
			d.logger.Warn("failed to add watch", slog.String("path", path), slog.String("error", err.Error()))
		}

		return nil
	})
}

// pumpAndDebounce runs the watcher-thread/ticker-thread pair described in
// §5: the watcher goroutine only enqueues under queueMu; the ticker
// goroutine (this one) stops the ticker, drains the queue, processes it,
// emits Idle, and resumes the ticker.
func (d *Detector) pumpAndDebounce(ctx context.Context, watcher FsWatcher, events chan<- Notification) error {
	go d.enqueueLoop(ctx, watcher)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ticker.Stop()
			d.drainAndProcess(ctx, events)
			d.trySend(ctx, events, Notification{Type: Idle, When: d.clock.Next()})
			ticker.Reset(d.pollInterval)
		}
	}
}

// enqueueLoop is the watcher thread: it never touches the Version List or
// Blob Pool, and never processes under the mute flag (§5).
func (d *Detector) enqueueLoop(ctx context.Context, watcher FsWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events():
			if !ok {
				return
			}

			d.enqueue(ev)
		case err, ok := <-watcher.Errors():
			if !ok {
				return
			}

			if d.logger != nil {
				d.logger.Warn("filesystem watch error", slog.String("error", err.Error()))
			}
		}
	}
}

func (d *Detector) enqueue(ev fsnotify.Event) {
	if d.mute.Muted() {
		return
	}

	rel, err := filepath.Rel(d.root, ev.Name)
	if err != nil {
		return
	}

	// macOS reports HFS+ paths in NFD; normalize to NFC so a name compares
	// equal across peers regardless of which OS originated the event.
	rel = norm.NFC.String(filepath.ToSlash(rel))

	if isAlwaysExcluded(filepath.Base(rel), d.metadataDirName) {
		return
	}

	d.queueMu.Lock()
	d.queue = append(d.queue, rawEvent{op: ev.Op, name: rel})
	d.queueMu.Unlock()
}

// trySend sends a Notification without blocking. If the channel is full,
// the notification is dropped and counted — grounded on the teacher's
// LocalObserver.trySend backpressure policy.
func (d *Detector) trySend(ctx context.Context, events chan<- Notification, n Notification) {
	select {
	case events <- n:
	case <-ctx.Done():
	default:
		d.droppedEvents.Add(1)

		if d.logger != nil {
			d.logger.Warn("canonical event channel full, dropping notification",
				slog.String("name", n.Name), slog.String("type", string(n.Type)))
		}
	}
}
