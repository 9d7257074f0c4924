// Package state holds the last observed value of each screen and fans
// updates out to subscribers.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Snapshot is a value together with its version and update time.
type Snapshot[T any] struct {
	Value     T         `json:"value"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store holds one value of type T. Subscribers receive every new value on
// a channel with a buffer of one; a slow subscriber only ever sees the
// latest value.
type Store[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	updated time.Time
	subs    map[string]chan T
}

// NewStore returns a Store holding initial at version zero.
func NewStore[T any](initial T) *Store[T] {
	return &Store[T]{
		value: initial,
		subs:  make(map[string]chan T),
	}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Snapshot returns the current value with its version.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot[T]{Value: s.value, Version: s.version, UpdatedAt: s.updated}
}

// Set replaces the value and notifies subscribers.
func (s *Store[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(v)
}

// Update replaces the value with fn applied to the current one.
func (s *Store[T]) Update(fn func(T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(fn(s.value))
}

// Subscribe registers a new subscriber and returns its id and channel.
func (s *Store[T]) Subscribe() (string, <-chan T) {
	id := uuid.NewString()
	ch := make(chan T, 1)

	s.mu.Lock()
	s.subs[id] = ch
	s.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are
// ignored.
func (s *Store[T]) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of registered subscribers.
func (s *Store[T]) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Store[T]) setLocked(v T) {
	s.value = v
	s.version++
	s.updated = time.Now()

	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
			// Replace the stale value nobody has read yet.
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}
