package container

import (
	"sort"
	"unsafe"

	"github.com/sharedcode/shm/arena"
)

// NestedHashMap maps each key to a run of values (a multimap) using two
// parallel offset structures in the same region: an index mapping key to a
// position in the data array, and a data array whose row at that position
// holds the value run. The data structure is not an embedded struct field:
// its address is computed as self + sizeof(fixed header) + indexSizeBytes,
// exactly mirroring how the two bodies are laid out back to back on disk.
type NestedHashMap[K any, V any] struct {
	size           uint64
	bucketCount    uint64
	indexSizeBytes uint64
	dataSizeBytes  uint64
	index          NestedVector[Pair[K, uint64], uint32]
}

// Size returns the number of distinct keys.
func (nhm *NestedHashMap[K, V]) Size() uint64 { return nhm.size }

// BucketCount returns the index's bucket count.
func (nhm *NestedHashMap[K, V]) BucketCount() uint64 { return nhm.bucketCount }

func (nhm *NestedHashMap[K, V]) dataVector() *NestedVector[V, uint32] {
	var zero NestedHashMap[K, V]
	fixedSize := int64(unsafe.Sizeof(zero))
	return arena.At[NestedVector[V, uint32]](unsafe.Pointer(nhm), fixedSize+int64(nhm.indexSizeBytes))
}

// NewNestedHashMap placement-constructs a NestedHashMap in a from entries,
// a map from key to its value run. Key-to-position assignment is by sorted
// key order, so two producers given the same entries and less produce
// byte-identical layouts.
func NewNestedHashMap[K comparable, V any](a *arena.Arena, entries map[K][]V, hashFn func(K) uint64, less func(a, b K) bool) (*NestedHashMap[K, V], error) {
	if err := AssertTriviallyCopyable[Pair[K, uint64]](); err != nil {
		return nil, err
	}
	if err := AssertTriviallyCopyable[V](); err != nil {
		return nil, err
	}

	keys := make([]K, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })

	n := uint64(len(keys))
	bucketCount := bucketCountFor(n)

	indexRows := make([][]Pair[K, uint64], bucketCount)
	dataRows := make([][]V, n)
	for pos, k := range keys {
		b := hashFn(k) % bucketCount
		indexRows[b] = append(indexRows[b], Pair[K, uint64]{Key: k, Value: uint64(pos)})
		dataRows[pos] = entries[k]
	}
	for i := range indexRows {
		row := indexRows[i]
		sort.Slice(row, func(x, y int) bool { return less(row[x].Key, row[y].Key) })
	}

	nhm, err := arena.Reserve[NestedHashMap[K, V]](a)
	if err != nil {
		return nil, err
	}
	nhm.size = n
	nhm.bucketCount = bucketCount

	indexStart := a.Used()
	if err := buildNestedVectorInto[Pair[K, uint64], uint32](a, &nhm.index, indexRows); err != nil {
		return nil, err
	}
	nhm.indexSizeBytes = uint64(a.Used() - indexStart)

	dataStart := a.Used()
	dataOuter, err := arena.Reserve[NestedVector[V, uint32]](a)
	if err != nil {
		return nil, err
	}
	if err := buildNestedVectorInto[V, uint32](a, dataOuter, dataRows); err != nil {
		return nil, err
	}
	nhm.dataSizeBytes = uint64(a.Used() - dataStart)

	return nhm, nil
}

// Find returns the value run for key and whether it was present.
func (nhm *NestedHashMap[K, V]) Find(key K, hashFn func(K) uint64, less func(a, b K) bool) ([]V, bool) {
	b := hashFn(key) % nhm.bucketCount
	chain := nhm.index.Ptr(int(b))
	i, ok := BinarySearchBy[Pair[K, uint64], uint32, K](chain, key, func(p Pair[K, uint64]) K { return p.Key }, less)
	if !ok {
		return nil, false
	}
	pos := chain.Get(i).Value
	row := nhm.dataVector().Ptr(int(pos))
	return row.All(), true
}

// ForEach visits every (key, valueRun) pair. Iteration order follows the
// index's bucket/chain order, not insertion or position order. Stops early
// if fn returns false.
func (nhm *NestedHashMap[K, V]) ForEach(fn func(k K, values []V) bool) {
	data := nhm.dataVector()
	for b := uint64(0); b < nhm.bucketCount; b++ {
		chain := nhm.index.Ptr(int(b))
		for i := 0; i < chain.Len(); i++ {
			p := chain.Get(i)
			row := data.Ptr(int(p.Value))
			if !fn(p.Key, row.All()) {
				return
			}
		}
	}
}
