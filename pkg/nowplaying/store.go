package nowplaying

import (
	"slices"
	"sync"
)

// Store holds the last known track. It starts at a default and is only ever
// replaced by another valid value, so readers always get something to show.
type Store struct {
	mu        sync.Mutex
	current   NowPlaying
	observers []func(NowPlaying)
}

// NewStore returns a Store seeded with def.
func NewStore(def NowPlaying) *Store {
	return &Store{current: def}
}

// Get returns the current value.
func (s *Store) Get() NowPlaying {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set replaces the current value when np is valid. Observers run only when
// the value actually changed. It reports whether np was accepted.
func (s *Store) Set(np NowPlaying) bool {
	if !np.Valid() {
		return false
	}

	s.mu.Lock()
	if np == s.current {
		s.mu.Unlock()
		return true
	}
	s.current = np
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(np)
	}
	return true
}

// Subscribe registers fn for every change.
func (s *Store) Subscribe(fn func(NowPlaying)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}
