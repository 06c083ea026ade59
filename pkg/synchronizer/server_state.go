package synchronizer

import (
	"encoding/json"
	"sync"

	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/router"
)

// Snapshot is the part of a navigation the server tracks.
type Snapshot struct {
	Dataset       string
	View          json.RawMessage
	SavedViewSlug string
	GroupSlice    string
	Spaces        json.RawMessage
}

// SnapshotOf extracts the server-tracked state of an entry.
func SnapshotOf(e *router.Entry) Snapshot {
	snap := Snapshot{
		Dataset:       e.DatasetName(),
		View:          e.State.View,
		SavedViewSlug: e.State.SavedViewSlug,
		GroupSlice:    e.State.GroupSlice,
		Spaces:        e.State.Spaces,
	}
	if slug, ok := e.Variables["savedViewSlug"].(string); ok {
		snap.SavedViewSlug = slug
	}
	return snap
}

// ServerState remembers what was last synchronized with the server. It is
// safe for concurrent use.
type ServerState struct {
	mu    sync.Mutex
	snap  Snapshot
	known bool

	sample      *history.ModalSelector
	sampleKnown bool
}

// Get returns the last synchronized snapshot and whether there is one.
func (s *ServerState) Get() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.known
}

// Set records snap as synchronized.
func (s *ServerState) Set(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.known = true
}

// Update modifies the recorded snapshot, starting from the zero snapshot
// when none is known.
func (s *ServerState) Update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	s.known = true
}

// Sample returns the last synchronized modal sample.
func (s *ServerState) Sample() (*history.ModalSelector, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample, s.sampleKnown
}

// SetSample records the modal sample as synchronized.
func (s *ServerState) SetSample(m *history.ModalSelector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sample = m
	s.sampleKnown = true
}

// Forget drops everything recorded, so the next reconciliation sends all
// mutations again.
func (s *ServerState) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{}
	s.known = false
	s.sample = nil
	s.sampleKnown = false
}

// Equal reports whether s and o describe the same server state. Views and
// spaces compare by JSON value.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Dataset == o.Dataset &&
		s.SavedViewSlug == o.SavedViewSlug &&
		s.GroupSlice == o.GroupSlice &&
		router.ViewsEqual(s.View, o.View) &&
		router.ViewsEqual(s.Spaces, o.Spaces)
}
