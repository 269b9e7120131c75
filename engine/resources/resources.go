package resources

import (
	"reflect"

	"github.com/spaghettifunk/gantry/engine/core"
)

// Store holds at most one resource instance per Go type. Created asset
// collections are published here and read by the rest of the application.
type Store struct {
	entries map[reflect.Type]interface{}
}

func NewStore() *Store {
	return &Store{
		entries: make(map[reflect.Type]interface{}),
	}
}

// Insert publishes the value under its own type, replacing any previous
// instance of the same type.
func (s *Store) Insert(value interface{}) {
	t := reflect.TypeOf(value)
	if _, exists := s.entries[t]; exists {
		core.LogDebug("resource store - replacing resource of type %s", t)
	}
	s.entries[t] = value
}

// Lookup returns the resource stored under the given type.
func (s *Store) Lookup(t reflect.Type) (interface{}, bool) {
	v, ok := s.entries[t]
	return v, ok
}

// Contains reports whether a resource of the given type is published.
func (s *Store) Contains(t reflect.Type) bool {
	_, ok := s.entries[t]
	return ok
}

func (s *Store) Remove(t reflect.Type) {
	delete(s.entries, t)
}

// Clear drops every published resource.
func (s *Store) Clear() {
	s.entries = make(map[reflect.Type]interface{})
}

func (s *Store) Len() int {
	return len(s.entries)
}

// Get is the typed accessor: resources.Get[*AudioAssets](store).
func Get[T any](s *Store) (T, bool) {
	var zero T
	v, ok := s.entries[reflect.TypeOf(zero)]
	if !ok {
		return zero, false
	}
	return v.(T), true
}
