package syncmap

import (
	"iter"
	"maps"
	"sync"
)

// Map is a regular map but synchronized with a mutex.
type Map[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]V
}

// New returns a new syncmap.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		m: make(map[K]V),
	}
}

// Load returns the value for a key.
func (m *Map[K, V]) Load(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[key]
	return v, ok
}

// Store sets the value for a key.
func (m *Map[K, V]) Store(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[key] = value
}

// LoadOrStore returns the existing value for a key if present.
// Otherwise, it stores and returns the result of calling mk.
// The loaded result is true if the value was already present.
// mk is called with the map locked, so it must not use the map.
func (m *Map[K, V]) LoadOrStore(key K, mk func() V) (actual V, loaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.m[key]; ok {
		return v, true
	}
	v := mk()
	m.m[key] = v
	return v, false
}

// Delete deletes a key and reports whether it was present.
func (m *Map[K, V]) Delete(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.m[key]
	delete(m.m, key)
	return ok
}

// Len returns the number of elements in the map.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.m)
}

// All iterates over a snapshot of the map.
// The map may be modified during iteration without affecting it.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	m.mu.Lock()
	c := maps.Clone(m.m)
	m.mu.Unlock()
	return maps.All(c)
}
