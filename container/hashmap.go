package container

import (
	"sort"

	"github.com/sharedcode/shm/arena"
)

// HashMap is a bucketed hash table: size/bucketCount fields followed by a
// nested vector whose outer index is the bucket array (length bucketCount)
// and whose rows are collision chains, each kept sorted by key so that
// within-bucket lookup is a binary search.
type HashMap[K any, V any] struct {
	size        uint64
	bucketCount uint64
	buckets     NestedVector[Pair[K, V], uint32]
}

// Size returns the number of key/value pairs.
func (hm *HashMap[K, V]) Size() uint64 { return hm.size }

// BucketCount returns the number of buckets chosen at construction time.
func (hm *HashMap[K, V]) BucketCount() uint64 { return hm.bucketCount }

// NewHashMap placement-constructs a HashMap in a. hashFn hashes a key to a
// uint64; less orders keys within a bucket chain (also used for equality,
// as !less(a,b) && !less(b,a)).
func NewHashMap[K comparable, V any](a *arena.Arena, entries map[K]V, hashFn func(K) uint64, less func(a, b K) bool) (*HashMap[K, V], error) {
	if err := AssertTriviallyCopyable[Pair[K, V]](); err != nil {
		return nil, err
	}
	n := uint64(len(entries))
	bucketCount := bucketCountFor(n)
	rows := make([][]Pair[K, V], bucketCount)
	for k, v := range entries {
		b := hashFn(k) % bucketCount
		rows[b] = append(rows[b], Pair[K, V]{Key: k, Value: v})
	}
	for i := range rows {
		row := rows[i]
		sort.Slice(row, func(x, y int) bool { return less(row[x].Key, row[y].Key) })
	}

	hm, err := arena.Reserve[HashMap[K, V]](a)
	if err != nil {
		return nil, err
	}
	hm.size = n
	hm.bucketCount = bucketCount
	if err := buildNestedVectorInto[Pair[K, V], uint32](a, &hm.buckets, rows); err != nil {
		return nil, err
	}
	return hm, nil
}

// Find returns the value for key and whether it was present: hash to a
// bucket, then binary search that bucket's sorted chain.
func (hm *HashMap[K, V]) Find(key K, hashFn func(K) uint64, less func(a, b K) bool) (V, bool) {
	b := hashFn(key) % hm.bucketCount
	chain := hm.buckets.Ptr(int(b))
	i, ok := BinarySearchBy[Pair[K, V], uint32, K](chain, key, func(p Pair[K, V]) K { return p.Key }, less)
	if !ok {
		var zero V
		return zero, false
	}
	return chain.Get(i).Value, true
}

// Count returns 1 if key is present, 0 otherwise.
func (hm *HashMap[K, V]) Count(key K, hashFn func(K) uint64, less func(a, b K) bool) int {
	if _, ok := hm.Find(key, hashFn, less); ok {
		return 1
	}
	return 0
}

// ForEach visits every (key, value) pair across all buckets in bucket,
// then chain order. Stops early if fn returns false.
func (hm *HashMap[K, V]) ForEach(fn func(k K, v V) bool) {
	for b := uint64(0); b < hm.bucketCount; b++ {
		chain := hm.buckets.Ptr(int(b))
		for i := 0; i < chain.Len(); i++ {
			p := chain.Get(i)
			if !fn(p.Key, p.Value) {
				return
			}
		}
	}
}

// HashSet is a bucketed hash set: identical bucket layout to HashMap, but
// chains hold keys only and Find is a short linear scan rather than a
// binary search (chains are expected to be short and equality-only lookup
// needs no ordering).
type HashSet[K any] struct {
	size        uint64
	bucketCount uint64
	buckets     NestedVector[K, uint32]
}

// Size returns the number of elements.
func (hs *HashSet[K]) Size() uint64 { return hs.size }

// BucketCount returns the number of buckets chosen at construction time.
func (hs *HashSet[K]) BucketCount() uint64 { return hs.bucketCount }

// NewHashSet placement-constructs a HashSet in a.
func NewHashSet[K any](a *arena.Arena, keys []K, hashFn func(K) uint64, equal func(a, b K) bool) (*HashSet[K], error) {
	if err := AssertTriviallyCopyable[K](); err != nil {
		return nil, err
	}
	seen := make(map[uint64][]K, len(keys))
	var unique []K
	for _, k := range keys {
		h := hashFn(k)
		dup := false
		for _, existing := range seen[h] {
			if equal(existing, k) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[h] = append(seen[h], k)
		unique = append(unique, k)
	}

	n := uint64(len(unique))
	bucketCount := bucketCountFor(n)
	rows := make([][]K, bucketCount)
	for _, k := range unique {
		b := hashFn(k) % bucketCount
		rows[b] = append(rows[b], k)
	}

	hs, err := arena.Reserve[HashSet[K]](a)
	if err != nil {
		return nil, err
	}
	hs.size = n
	hs.bucketCount = bucketCount
	if err := buildNestedVectorInto[K, uint32](a, &hs.buckets, rows); err != nil {
		return nil, err
	}
	return hs, nil
}

// Find reports whether key is present, by linear scan of its bucket chain.
func (hs *HashSet[K]) Find(key K, hashFn func(K) uint64, equal func(a, b K) bool) bool {
	b := hashFn(key) % hs.bucketCount
	chain := hs.buckets.Ptr(int(b))
	for i := 0; i < chain.Len(); i++ {
		if equal(chain.Get(i), key) {
			return true
		}
	}
	return false
}

// ForEach visits every element across all buckets. Stops early if fn
// returns false.
func (hs *HashSet[K]) ForEach(fn func(k K) bool) {
	for b := uint64(0); b < hs.bucketCount; b++ {
		chain := hs.buckets.Ptr(int(b))
		for i := 0; i < chain.Len(); i++ {
			if !fn(chain.Get(i)) {
				return
			}
		}
	}
}
