package sync

import (
	"picking-tracker-backend/internal/feed"
)

// Listener drains a feed event channel into a snapshot. One listener serves
// one run; when the active run changes, cancel the feed context (closing the
// channel) and start a new listener on the new run's snapshot.
type Listener struct {
	done chan struct{}
}

// StartListener begins merging events into the snapshot. Merging is a pure
// local state update; it never writes back to the backend.
func StartListener(events <-chan feed.LineEvent, snap *Snapshot) *Listener {
	l := &Listener{done: make(chan struct{})}
	go func() {
		defer close(l.done)
		for evt := range events {
			snap.ApplyFeed(evt)
		}
	}()
	return l
}

// Done is closed once the event channel has been drained.
func (l *Listener) Done() <-chan struct{} { return l.done }
