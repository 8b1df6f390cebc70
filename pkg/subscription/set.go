package subscription

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ID identifies one subscription. The zero ID is never issued.
type ID uint32

// idGenerator generates unique subscription IDs across all sets.
var idGenerator atomic.Uint32

// nextID returns the next unique subscription ID.
func nextID() ID {
	return ID(idGenerator.Add(1))
}

type entry[T any] struct {
	id ID
	fn func(T)
}

// Set is an ordered set of callbacks receiving values of type T.
// It is safe for concurrent use.
type Set[T any] struct {
	mu      sync.RWMutex
	name    string
	entries []entry[T]
	logger  *slog.Logger

	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewSet creates an empty set. name appears in log output. logger may be nil.
func NewSet[T any](name string, logger *slog.Logger) *Set[T] {
	return &Set[T]{name: name, logger: logger}
}

// Subscribe adds fn and returns its ID.
func (s *Set[T]) Subscribe(fn func(T)) ID {
	id := nextID()

	s.mu.Lock()
	s.entries = append(s.entries, entry[T]{id: id, fn: fn})
	s.mu.Unlock()

	return id
}

// Unsubscribe removes the subscription. It reports whether id was present.
func (s *Set[T]) Unsubscribe(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.id == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of subscriptions.
func (s *Set[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all subscriptions.
func (s *Set[T]) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// Notify calls every subscriber with v and returns how many of them
// panicked.
func (s *Set[T]) Notify(v T) int {
	s.mu.RLock()
	snapshot := make([]entry[T], len(s.entries))
	copy(snapshot, s.entries)
	s.mu.RUnlock()

	failures := 0
	for _, e := range snapshot {
		if err := s.call(e, v); err != nil {
			failures++
			s.failed.Add(1)
			if s.logger != nil {
				s.logger.Error("subscriber failed", "set", s.name, "subscription", uint32(e.id), "error", err)
			}
			continue
		}
		s.delivered.Add(1)
	}
	return failures
}

// Stats returns the number of successful and failed deliveries.
func (s *Set[T]) Stats() (delivered, failed uint64) {
	return s.delivered.Load(), s.failed.Load()
}

func (s *Set[T]) call(e entry[T], v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	e.fn(v)
	return nil
}
