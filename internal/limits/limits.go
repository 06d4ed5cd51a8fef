// Package limits holds the mutable per-type price ceilings and the gate
// that checks listings against them.
package limits

import (
	"sync"

	"propwatch/server/internal/models"
)

// Store is a process-wide mapping from property-type tag to a user-set
// price ceiling. Updates are last-write-wins per key; there is no expiry
// and no cross-key transaction.
type Store struct {
	mu        sync.RWMutex
	overrides map[string]int
}

// NewStore returns an empty override store.
func NewStore() *Store {
	return &Store{overrides: make(map[string]int)}
}

// Set records a ceiling for the given tag, replacing any previous value.
func (s *Store) Set(tag string, ceiling int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[tag] = ceiling
}

// Get returns the override for the tag, if one was set.
func (s *Store) Get(tag string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.overrides[tag]
	return v, ok
}

// Delete removes the override for the tag, restoring the static default.
func (s *Store) Delete(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, tag)
}

// All returns a copy of the current overrides.
func (s *Store) All() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.overrides))
	for k, v := range s.overrides {
		out[k] = v
	}
	return out
}

// Gate decides whether a listing's price clears the ceiling for its type.
// The ceiling resolves as user override, else static default, else the gate
// fails closed.
type Gate struct {
	store    *Store
	defaults map[string]int
}

// NewGate builds a gate over the override store and the static defaults.
func NewGate(store *Store, defaults map[string]int) *Gate {
	return &Gate{store: store, defaults: defaults}
}

// Ceiling resolves the effective ceiling for a tag.
func (g *Gate) Ceiling(tag string) (int, bool) {
	if v, ok := g.store.Get(tag); ok {
		return v, true
	}
	v, ok := g.defaults[tag]
	return v, ok
}

// Known reports whether the tag is a configured property type.
func (g *Gate) Known(tag string) bool {
	_, ok := g.defaults[tag]
	return ok
}

// Override records a new ceiling for the tag.
func (g *Gate) Override(tag string, ceiling int) {
	g.store.Set(tag, ceiling)
}

// Effective returns the full ceiling table with overrides applied.
func (g *Gate) Effective() map[string]int {
	out := make(map[string]int, len(g.defaults))
	for k, v := range g.defaults {
		out[k] = v
	}
	for k, v := range g.store.All() {
		out[k] = v
	}
	return out
}

// Passes reports whether the listing clears the price gate. Listings with
// no detected type or no price always fail.
func (g *Gate) Passes(l *models.Listing) bool {
	if l.PropertyType == "" || l.Price == nil {
		return false
	}
	ceiling, ok := g.Ceiling(l.PropertyType)
	if !ok {
		return false
	}
	return *l.Price <= ceiling
}
