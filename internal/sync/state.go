// Package sync implements the client side of the picking tracker: a local
// snapshot of one run's lines, an optimistic edit queue with per-line
// debounced persistence, and a change-feed listener that merges live row
// changes into the snapshot.
package sync

import (
	"sync"

	"picking-tracker-backend/internal/feed"
	"picking-tracker-backend/internal/store"
)

// Snapshot is the local cache of one run's lines. It is the only shared
// state between the editor (optimistic patches) and the feed listener
// (incoming row changes), so all access goes through the mutex.
//
// No version token exists on lines: the backend is last-write-wins, and a
// stale feed event can transiently overwrite a local optimistic value until
// the next event or a full reload.
type Snapshot struct {
	mu    sync.RWMutex
	runID string
	lines []store.LineRecord
}

// NewSnapshot builds a snapshot for a run from a freshly loaded line set.
func NewSnapshot(runID string, lines []store.LineRecord) *Snapshot {
	copied := make([]store.LineRecord, len(lines))
	copy(copied, lines)
	store.SortLines(copied)
	return &Snapshot{runID: runID, lines: copied}
}

// RunID returns the run this snapshot tracks.
func (s *Snapshot) RunID() string { return s.runID }

// Lines returns a copy of the current line set in display order.
func (s *Snapshot) Lines() []store.LineRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.LineRecord, len(s.lines))
	copy(out, s.lines)
	return out
}

// Get returns the line with the given id, if present.
func (s *Snapshot) Get(id string) (store.LineRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.lines {
		if l.ID == id {
			return l, true
		}
	}
	return store.LineRecord{}, false
}

// Replace swaps in a freshly loaded line set (full resync).
func (s *Snapshot) Replace(lines []store.LineRecord) {
	copied := make([]store.LineRecord, len(lines))
	copy(copied, lines)
	store.SortLines(copied)
	s.mu.Lock()
	s.lines = copied
	s.mu.Unlock()
}

// ApplyPatch applies a field patch to the local copy of a line. Returns
// false when the line is unknown.
func (s *Snapshot) ApplyPatch(id string, patch store.LinePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if s.lines[i].ID != id {
			continue
		}
		if patch.PickerSet {
			s.lines[i].Picker = patch.Picker
		}
		if patch.Status != nil {
			s.lines[i].Status = *patch.Status
		}
		return true
	}
	return false
}

// ApplyServer merges a record returned by the write endpoint, keeping the
// locally joined store when the response does not carry one.
func (s *Snapshot) ApplyServer(rec store.LineRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merge(rec)
}

// ApplyFeed merges one change-feed event. Inserts append (the feed carries
// no store join; display fields fill in on the next full reload), updates
// merge preserving local-only fields, deletes remove by id. Updates for
// unknown lines are treated as inserts so the snapshot converges. Merging
// never triggers an outbound write.
func (s *Snapshot) ApplyFeed(evt feed.LineEvent) {
	if evt.RunID != "" && evt.RunID != s.runID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch evt.Type {
	case feed.EventInsert, feed.EventUpdate:
		if evt.New == nil {
			return
		}
		s.merge(*evt.New)
	case feed.EventDelete:
		old := evt.Old
		if old == nil {
			return
		}
		for i := range s.lines {
			if s.lines[i].ID == old.ID {
				s.lines = append(s.lines[:i], s.lines[i+1:]...)
				return
			}
		}
	}
}

// merge updates the line in place or appends it, then restores order.
// Caller holds the lock.
func (s *Snapshot) merge(rec store.LineRecord) {
	for i := range s.lines {
		if s.lines[i].ID != rec.ID {
			continue
		}
		if rec.Store == nil {
			rec.Store = s.lines[i].Store
		}
		s.lines[i] = rec
		return
	}
	s.lines = append(s.lines, rec)
	store.SortLines(s.lines)
}
