package enrichment

import (
	"sync"

	domain "github.com/p2repo/cdenrich/internal/domain/enrichment"
)

// ActiveSet tracks the futures handed to callers that have not yet
// resolved. Quiescence waiters park on a generation channel that is closed
// on every membership change, so the emptiness condition is re-checked
// after each future settles.
type ActiveSet struct {
	mu      sync.Mutex
	futures map[*domain.Future]struct{}
	changed chan struct{}
}

// NewActiveSet returns an empty set.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{
		futures: make(map[*domain.Future]struct{}),
		changed: make(chan struct{}),
	}
}

// Add registers an unresolved future.
func (s *ActiveSet) Add(f *domain.Future) {
	s.mu.Lock()
	s.futures[f] = struct{}{}
	s.broadcastLocked()
	s.mu.Unlock()
}

// Remove unregisters a future and wakes quiescence waiters.
func (s *ActiveSet) Remove(f *domain.Future) {
	s.mu.Lock()
	delete(s.futures, f)
	s.broadcastLocked()
	s.mu.Unlock()
}

func (s *ActiveSet) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Len returns the number of unresolved futures.
func (s *ActiveSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.futures)
}

// IsEmpty reports whether no futures remain unresolved.
func (s *ActiveSet) IsEmpty() bool {
	return s.Len() == 0
}

// Changed returns a channel closed at the next membership change. Callers
// must re-fetch it after each wakeup.
func (s *ActiveSet) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Snapshot returns the currently unresolved futures. Used during shutdown
// to resolve them with an interruption error.
func (s *ActiveSet) Snapshot() []*domain.Future {
	s.mu.Lock()
	defer s.mu.Unlock()
	futures := make([]*domain.Future, 0, len(s.futures))
	for f := range s.futures {
		futures = append(futures, f)
	}
	return futures
}
