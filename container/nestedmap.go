package container

import (
	"sort"

	"github.com/sharedcode/shm/arena"
)

// NestedMap is a vector of sorted maps: the outer index selects a row,
// and each row is a key-sorted pair run supporting binary search, shaped
// exactly like a SortedMap but with the row's own (size, offset) width S.
// Rows are independent; the same key may appear in any number of rows.
type NestedMap[K any, V any, S sizeType] = NestedVector[Pair[K, V], S]

// NewNestedMap placement-constructs a NestedMap in a. Every row is sorted
// by key (less) during construction; duplicate keys within a single row
// return ErrKeyConflict, mirroring NewSortedMap.
func NewNestedMap[K any, V any, S sizeType](a *arena.Arena, rows [][]Pair[K, V], less func(a, b K) bool) (*NestedMap[K, V, S], error) {
	if err := AssertTriviallyCopyable[Pair[K, V]](); err != nil {
		return nil, err
	}
	sortedRows := make([][]Pair[K, V], len(rows))
	for i, row := range rows {
		sorted := append([]Pair[K, V](nil), row...)
		sort.Slice(sorted, func(x, y int) bool { return less(sorted[x].Key, sorted[y].Key) })
		for j := 1; j < len(sorted); j++ {
			if !less(sorted[j-1].Key, sorted[j].Key) {
				return nil, ErrKeyConflict
			}
		}
		sortedRows[i] = sorted
	}
	return NewNestedVector[Pair[K, V], S](a, sortedRows)
}

// FindInNestedMap returns the value for key within row i, and whether it
// was present, via binary search over that row's sorted pair run. The row
// index must be within [0, Len()).
func FindInNestedMap[K any, V any, S sizeType](nm *NestedMap[K, V, S], row int, key K, less func(a, b K) bool) (V, bool) {
	r := nm.Ptr(row)
	i, ok := BinarySearchBy[Pair[K, V], S, K](r, key, func(p Pair[K, V]) K { return p.Key }, less)
	if !ok {
		var zero V
		return zero, false
	}
	return r.Get(i).Value, true
}
