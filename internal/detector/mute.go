package detector

import "sync/atomic"

// Mute is the process-global suppression flag from §4.C5/§9: while set, raw
// filesystem notifications are dropped instead of being enqueued, so that
// writes performed by bundle-merge replay do not feed back into the
// detector pipeline. A relaxed atomic boolean is sufficient per §5 — the
// flag's purpose is coarse suppression, not a strict happens-before edge.
//
// Mute is shared between the Detector (which reads it on every raw
// notification) and the bundle package (which sets it around each
// individual replay syscall during merge). It must never stay set across
// a blocking call that is not itself a replay write (§9).
type Mute struct {
	flag atomic.Bool
}

// NewMute returns a clear Mute flag.
func NewMute() *Mute { return &Mute{} }

// Muted reports whether raw notifications are currently being suppressed.
func (m *Mute) Muted() bool { return m.flag.Load() }

// Do sets the flag, runs fn, and clears the flag unconditionally — even if
// fn returns an error — enclosing a single replay syscall per §4.C5.
func (m *Mute) Do(fn func() error) error {
	m.flag.Store(true)
	defer m.flag.Store(false)

	return fn()
}
