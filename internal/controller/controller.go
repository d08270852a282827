// Package controller implements the Version Controller (§4.C6): a thin
// façade gluing the Change Detector's notification stream to Version List
// mutations, and exposing Flush as the intended quiescence point. Grounded
// on the teacher's BaselineManager being "the sole writer" of sync state.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/distribox/distribox/internal/detector"
	"github.com/distribox/distribox/internal/versionlist"
)

// Controller runs the detector and applies each canonical Notification to
// the Version List. It is the only writer of the Version List during live
// watching — bundle Accept (§4.C7) is the only other writer, and the two
// must never run concurrently (§5): both take mu for the duration of each
// mutation.
type Controller struct {
	list            *versionlist.List
	det             *detector.Detector
	versionListPath string
	mu              *sync.Mutex
	logger          *slog.Logger

	onIdle   func()
	onNotify func(detector.Notification)
}

// New constructs a Controller over an already-loaded Version List and a
// constructed Detector. mu must be the same mutex passed to the peer
// process's bundle.Acceptor.
func New(list *versionlist.List, det *detector.Detector, versionListPath string, mu *sync.Mutex, logger *slog.Logger) *Controller {
	return &Controller{list: list, det: det, versionListPath: versionListPath, mu: mu, logger: logger}
}

// List returns the underlying Version List, e.g. for bundle building.
func (c *Controller) List() *versionlist.List { return c.list }

// OnIdle registers a callback invoked every time the detector reaches an
// idle boundary, after this Controller's own Flush has been attempted.
// Callers typically hook bundle generation here.
func (c *Controller) OnIdle(fn func()) { c.onIdle = fn }

// OnNotify registers a callback invoked for every Notification this
// Controller receives from the detector, before it is applied to the
// Version List — e.g. for printing each event to a CLI subscriber (§6
// "Events to subscribers").
func (c *Controller) OnNotify(fn func(detector.Notification)) { c.onNotify = fn }

// Run drives the detector and applies notifications until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	events := make(chan detector.Notification, 256)

	errCh := make(chan error, 1)
	go func() { errCh <- c.det.Watch(ctx, events) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case n := <-events:
			c.apply(n)
		}
	}
}

// apply maps one canonical Notification onto the matching Version List
// operation, logging and dropping errors from transient conditions per
// §7 ("local detector errors never reach the user as exceptions").
func (c *Controller) apply(n detector.Notification) {
	if c.onNotify != nil {
		c.onNotify(n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var err error

	switch n.Type {
	case detector.Created:
		_, err = c.list.Create(n.Name, n.IsDirectory, n.When)
	case detector.Changed:
		err = c.list.Change(n.Name, n.SHA1, n.Size, n.When)
	case detector.Renamed:
		err = c.list.Rename(n.OldName, n.Name, n.SHA1, n.Size, n.When)
	case detector.Deleted:
		err = c.list.Delete(n.Name, n.When)
	case detector.Idle:
		if flushErr := c.Flush(); flushErr != nil && c.logger != nil {
			c.logger.Error("flush at idle boundary failed", slog.String("error", flushErr.Error()))
		}

		if c.onIdle != nil {
			c.onIdle()
		}

		return
	}

	if err != nil && c.logger != nil {
		c.logger.Warn("dropping notification that could not be applied",
			slog.String("type", string(n.Type)), slog.String("name", n.Name), slog.String("error", err.Error()))
	}
}

// Flush persists the Version List to its backing file.
func (c *Controller) Flush() error {
	if err := c.list.Flush(c.versionListPath); err != nil {
		return fmt.Errorf("controller: flush: %w", err)
	}

	return nil
}

// pathIndexAdapter adapts *versionlist.List to detector.PathIndex.
type pathIndexAdapter struct {
	list *versionlist.List
}

// NewPathIndex returns a detector.PathIndex backed by list, for
// constructing a detector.Detector that classifies against this
// controller's Version List.
func NewPathIndex(list *versionlist.List) detector.PathIndex {
	return &pathIndexAdapter{list: list}
}

func (a *pathIndexAdapter) Exists(path string) bool {
	_, err := a.list.ByName(path)
	return err == nil
}
