package set

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

type unit = struct{}

// Set is an unordered set of values of type T.
type Set[T comparable] map[T]unit

// Making Set a defined type rather than a struct means we need the casting
// shenanigans below, but it also allows normal indexing and iteration syntax
// to be used.

// New returns an empty set.
func New[T comparable]() Set[T] {
	return make(Set[T])
}

// FromSlice returns a set containing the values in the given slice.
func FromSlice[T comparable](keys []T) Set[T] {
	set := make(Set[T])
	for _, x := range keys {
		set.Insert(x)
	}
	return set
}

// Contains checks whether the passed-in value is present in the Set.
func (s *Set[T]) Contains(val T) bool {
	_, ok := (map[T]unit)(*s)[val]
	return ok
}

// Insert adds the passed-in value to the Set.
func (s *Set[T]) Insert(val T) {
	(map[T]unit)(*s)[val] = unit{}
}

// Remove removes the passed-in value from the Set.
func (s *Set[T]) Remove(val T) {
	delete((map[T]unit)(*s), val)
}

// Equals reports whether both sets contain exactly the same values.
func (s Set[T]) Equals(other Set[T]) bool {
	if len(s) != len(other) {
		return false
	}
	for val := range s {
		if !other.Contains(val) {
			return false
		}
	}
	return true
}

// Difference returns a new set holding the values of s not present in other.
func (s Set[T]) Difference(other Set[T]) Set[T] {
	res := make(Set[T])
	for val := range s {
		if !other.Contains(val) {
			res.Insert(val)
		}
	}
	return res
}

// Clone returns a shallow copy of the set.
func (s Set[T]) Clone() Set[T] {
	res := make(Set[T], len(s))
	for val := range s {
		res.Insert(val)
	}
	return res
}

// ToSlice builds a new slice, populates it with the contents of the Set, and
// returns it.
func (s Set[T]) ToSlice() []T {
	res := make([]T, 0, len(s))
	for val := range s {
		res = append(res, val)
	}
	return res
}

// SortedSlice returns the contents of the set in ascending order, for
// reproducible logs and RM payloads.
func SortedSlice[T constraints.Ordered](s Set[T]) []T {
	res := s.ToSlice()
	slices.Sort(res)
	return res
}
