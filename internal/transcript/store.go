package transcript

import (
	"slices"
	"sync"
)

// Snapshot is an immutable view of the transcript at one version.
type Snapshot struct {
	Version uint64
	Entries []Entry
}

// Store serializes every mutation of one conversation's transcript.
type Store struct {
	mu       sync.Mutex
	entries  []Entry
	version  uint64
	nextID   int64
	onChange func(Snapshot)
}

// NewStore creates an empty store. onChange, if set, is called with every new
// snapshot while the store lock is held, so it must not block or call back in.
func NewStore(onChange func(Snapshot)) *Store {
	return &Store{onChange: onChange}
}

// Dispatch applies actions in order as one atomic update and returns the result.
func (s *Store) Dispatch(actions ...Action) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.Clone(s.entries)
	for _, act := range actions {
		next = act(next)
	}
	for i := range next {
		if next[i].ID == 0 {
			s.nextID++
			next[i].ID = s.nextID
		}
	}
	s.entries = next
	s.version++
	snap := s.snapshotLocked()
	if s.onChange != nil {
		s.onChange(snap)
	}
	return snap
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Last returns the most recent entry, if any.
func (s *Store) Last() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// HasTransient reports whether a transient entry of role exists.
func (s *Store) HasTransient(role Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.ContainsFunc(s.entries, func(e Entry) bool {
		return e.Transient && e.Role == role
	})
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Version: s.version, Entries: slices.Clone(s.entries)}
}
