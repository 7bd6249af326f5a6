// Package objstore implements a table of objects keyed by allocated
// ids.
package objstore

import "golang.org/x/exp/maps"

type Store[T any] struct {
	objects map[uint64]T
	nextID  uint64
}

func New[T any](start uint64) *Store[T] {
	return &Store[T]{
		objects: make(map[uint64]T),
		nextID:  start,
	}
}

// Add stores obj under a freshly allocated id and returns it.
func (s *Store[T]) Add(obj T) uint64 {
	id := s.nextID
	s.nextID++

	s.objects[id] = obj
	return id
}

func (s *Store[T]) Get(id uint64) (T, bool) {
	obj, ok := s.objects[id]
	return obj, ok
}

func (s *Store[T]) Delete(id uint64) {
	delete(s.objects, id)
}

func (s *Store[T]) Len() int {
	return len(s.objects)
}

// All returns a copy of the table's contents.
func (s *Store[T]) All() map[uint64]T {
	return maps.Clone(s.objects)
}
