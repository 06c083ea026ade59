package state

import (
	"sync"

	"github.com/google/uuid"
)

// Observer is notified of UI writes. A non-nil error is returned from the
// Write that triggered it.
type Observer func(name Name, value any) error

type observer struct {
	id string
	fn Observer
}

// Store is the session record. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	values map[Name]any

	obsMu     sync.RWMutex
	observers []observer
}

// New creates a store holding the defaults of every session field.
func New() *Store {
	s := &Store{values: make(map[Name]any, len(fields))}
	s.Reset()
	return s
}

// Get returns the value of k, or its default when unset.
func Get[T any](s *Store, k Key[T]) T {
	s.mu.RLock()
	v, ok := s.values[k.name]
	s.mu.RUnlock()

	if t, ok2 := v.(T); ok && ok2 {
		return t
	}
	return k.Default()
}

// Write stores v under k and notifies observers in registration order.
// It stops at and returns the first observer error; the value stays
// written.
func Write[T any](s *Store, k Key[T], v T) error {
	s.set(k.name, v)
	return s.notify(k.name, v)
}

// Apply stores v under k without notifying observers.
func Apply[T any](s *Store, k Key[T], v T) {
	s.set(k.name, v)
}

// Observe registers fn for UI writes. The returned func unregisters it.
func (s *Store) Observe(fn Observer) (unobserve func()) {
	id := uuid.NewString()

	s.obsMu.Lock()
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Reset restores every field to its default without notifying observers.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.values)
	for _, f := range fields {
		s.values[f.name] = f.def()
	}
}

// Snapshot returns a copy of all stored values.
func (s *Store) Snapshot() map[Name]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Name]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *Store) set(name Name, v any) {
	s.mu.Lock()
	s.values[name] = v
	s.mu.Unlock()
}

// notify calls observers outside the store locks so they may read or
// apply values.
func (s *Store) notify(name Name, v any) error {
	s.obsMu.RLock()
	obs := make([]observer, len(s.observers))
	copy(obs, s.observers)
	s.obsMu.RUnlock()

	for _, o := range obs {
		if err := o.fn(name, v); err != nil {
			return err
		}
	}
	return nil
}
