package device

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Table maps device IDs to snapshots. A Table handed out by a Store is
// never modified afterwards; every mutation publishes a fresh Table.
type Table map[string]*Snapshot

// Get returns the snapshot for id.
func (t Table) Get(id string) (*Snapshot, bool) {
	s, ok := t[id]
	return s, ok
}

// IDs returns the device IDs in sorted order.
func (t Table) IDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Store holds the current device table.
//
// Readers never block: they load the current Table pointer. Writers are
// serialised and publish a whole new Table, so a reader sees either the
// table before a mutation or the table after it, never a mix.
type Store struct {
	current atomic.Pointer[Table]
	writeMu sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{}
	empty := Table{}
	s.current.Store(&empty)
	return s
}

// Table returns the current table. Callers must not modify it.
func (s *Store) Table() Table {
	return *s.current.Load()
}

// Get returns the current snapshot for id.
func (s *Store) Get(id string) (*Snapshot, bool) {
	return s.Table().Get(id)
}

// Len returns the number of devices in the current table.
func (s *Store) Len() int {
	return len(s.Table())
}

// Replace installs snaps as the complete device set. Devices missing from
// snaps are dropped. A device that already exists keeps its original type.
func (s *Store) Replace(snaps []*Snapshot) Table {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev := s.Table()
	next := make(Table, len(snaps))
	for _, snap := range snaps {
		if old, ok := prev[snap.ID]; ok && old.Type != snap.Type {
			snap = snap.With(func(*Snapshot) {})
			snap.Type = old.Type
		}
		next[snap.ID] = snap
	}
	s.current.Store(&next)
	return next
}

// Update applies fn to the snapshot for id. fn returns the replacement and
// whether anything changed; when it reports no change nothing is published.
// Unknown IDs are ignored. The returned bool reports whether a new table
// was published.
func (s *Store) Update(id string, fn func(*Snapshot) (*Snapshot, bool)) (Table, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev := s.Table()
	old, ok := prev[id]
	if !ok {
		return prev, false
	}
	replacement, changed := fn(old)
	if !changed || replacement == nil {
		return prev, false
	}

	next := make(Table, len(prev))
	for k, v := range prev {
		next[k] = v
	}
	next[id] = replacement
	s.current.Store(&next)
	return next, true
}
