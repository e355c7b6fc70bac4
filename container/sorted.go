package container

import (
	"sort"

	"github.com/sharedcode/shm/arena"
)

// SortedMap is a Vector of Pair[K,V] kept sorted by Key, supporting binary
// search. Duplicate keys are rejected at construction.
type SortedMap[K any, V any] = Vector[Pair[K, V], uint64]

// SortedSet is a Vector of K kept sorted, supporting binary search.
// Duplicate keys are rejected at construction.
type SortedSet[K any] = Vector[K, uint64]

// NewSortedMap sorts entries by key (less) and placement-constructs a
// SortedMap in a. Duplicate keys (by less) return ErrKeyConflict.
func NewSortedMap[K any, V any](a *arena.Arena, entries []Pair[K, V], less func(a, b K) bool) (*SortedMap[K, V], error) {
	sorted := append([]Pair[K, V](nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i].Key, sorted[j].Key) })
	for i := 1; i < len(sorted); i++ {
		if !less(sorted[i-1].Key, sorted[i].Key) {
			return nil, ErrKeyConflict
		}
	}
	return NewVector[Pair[K, V], uint64](a, sorted)
}

// NewSortedSet sorts keys and placement-constructs a SortedSet in a.
// Duplicate keys (by less) return ErrKeyConflict.
func NewSortedSet[K any](a *arena.Arena, keys []K, less func(a, b K) bool) (*SortedSet[K], error) {
	sorted := append([]K(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	for i := 1; i < len(sorted); i++ {
		if !less(sorted[i-1], sorted[i]) {
			return nil, ErrKeyConflict
		}
	}
	return NewVector[K, uint64](a, sorted)
}

// FindInMap returns the value for key, and whether it was present, via
// binary search over the sorted backing Vector.
func FindInMap[K any, V any](m *SortedMap[K, V], key K, less func(a, b K) bool) (V, bool) {
	i, ok := BinarySearchBy[Pair[K, V], uint64, K](m, key, func(p Pair[K, V]) K { return p.Key }, less)
	if !ok {
		var zero V
		return zero, false
	}
	return m.Get(i).Value, true
}

// FindInSet reports whether key is present, via binary search over the
// sorted backing Vector.
func FindInSet[K any](s *SortedSet[K], key K, less func(a, b K) bool) bool {
	_, ok := BinarySearchBy[K, uint64, K](s, key, func(k K) K { return k }, less)
	return ok
}

// LowerBound returns the index of the first entry whose key is not less
// than key, or m.Len() if every key is smaller.
func LowerBound[K any, V any](m *SortedMap[K, V], key K, less func(a, b K) bool) int {
	i, _ := BinarySearchBy[Pair[K, V], uint64, K](m, key, func(p Pair[K, V]) K { return p.Key }, less)
	return i
}

// UpperBound returns the index of the first entry whose key is strictly
// greater than key, or m.Len() if no key is.
func UpperBound[K any, V any](m *SortedMap[K, V], key K, less func(a, b K) bool) int {
	i, ok := BinarySearchBy[Pair[K, V], uint64, K](m, key, func(p Pair[K, V]) K { return p.Key }, less)
	if ok {
		return i + 1
	}
	return i
}
