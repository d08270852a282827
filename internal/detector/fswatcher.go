package detector

import "github.com/fsnotify/fsnotify"

// FsWatcher abstracts filesystem event monitoring. Satisfied by
// *fsnotify.Watcher; tests inject a hand-driven fake. Grounded on the
// teacher's internal/sync/observer_local.go FsWatcher interface.
type FsWatcher interface {
	Add(name string) error
	Remove(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

// fsnotifyWatcher adapts *fsnotify.Watcher to FsWatcher. fsnotify exposes
// Events and Errors as public fields, not methods.
type fsnotifyWatcher struct {
	w *fsnotify.Watcher
}

func newFsnotifyWatcher() (FsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &fsnotifyWatcher{w: w}, nil
}

func (fw *fsnotifyWatcher) Add(name string) error         { return fw.w.Add(name) }
func (fw *fsnotifyWatcher) Remove(name string) error      { return fw.w.Remove(name) }
func (fw *fsnotifyWatcher) Close() error                  { return fw.w.Close() }
func (fw *fsnotifyWatcher) Events() <-chan fsnotify.Event { return fw.w.Events }
func (fw *fsnotifyWatcher) Errors() <-chan error          { return fw.w.Errors }
