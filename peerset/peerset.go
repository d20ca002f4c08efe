// Package peerset adapts the teacher lineage's generic utils/set.Set[T]
// (github.com/luxfi/consensus/utils/set) into a small, comparable-keyed set
// type used for the per-phase vote-tracking sets and view-change vote
// tallies of the pipelined engine.
package peerset

import "golang.org/x/exp/maps"

const minSetSize = 8

// Set is a set of comparable elements, backed by a map the same way the
// teacher's utils/set.Set[T] is.
type Set[T comparable] map[T]struct{}

// New returns a new Set with initial capacity hint size.
func New[T comparable](size int) Set[T] {
	if size < 0 {
		size = 0
	}
	if size < minSetSize {
		size = minSetSize
	}
	return make(Set[T], size)
}

// Of builds a Set from the given elements.
func Of[T comparable](elts ...T) Set[T] {
	s := New[T](len(elts))
	s.Add(elts...)
	return s
}

// Add inserts elements into the set.
func (s *Set[T]) Add(elts ...T) {
	if *s == nil {
		*s = New[T](len(elts))
	}
	for _, e := range elts {
		(*s)[e] = struct{}{}
	}
}

// Contains reports whether e is in the set.
func (s Set[T]) Contains(e T) bool {
	_, ok := s[e]
	return ok
}

// Len returns the number of elements in the set.
func (s Set[T]) Len() int {
	return len(s)
}

// List returns the set's elements in unspecified order.
func (s Set[T]) List() []T {
	return maps.Keys(s)
}

// Remove deletes elements from the set.
func (s Set[T]) Remove(elts ...T) {
	for _, e := range elts {
		delete(s, e)
	}
}
