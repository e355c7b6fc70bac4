package wire

import (
	"io"

	"github.com/sharedcode/shm/arena"
	"github.com/sharedcode/shm/container"
)

// sizeType mirrors container.SizeType so this file's signatures read the
// same as container's own.
type sizeType = container.SizeType

// DumpVector writes data as a Vector[T,S] file to w.
func DumpVector[T any, S sizeType](w io.Writer, data []T, flags uint64) error {
	_, hash := TypeIdentity[container.Vector[T, S]]()
	body, used, err := scratchArena(func(a *arena.Arena) error {
		_, err := container.NewVector[T, S](a, data)
		return err
	})
	if err != nil {
		return err
	}
	return WriteBody(w, hash, flags, body[:used])
}

// DumpNestedVector writes rows as a NestedVector[T,S] file to w.
func DumpNestedVector[T any, S sizeType](w io.Writer, rows [][]T, flags uint64) error {
	_, hash := TypeIdentity[container.NestedVector[T, S]]()
	body, used, err := scratchArena(func(a *arena.Arena) error {
		_, err := container.NewNestedVector[T, S](a, rows)
		return err
	})
	if err != nil {
		return err
	}
	return WriteBody(w, hash, flags, body[:used])
}

// DumpSortedMap writes entries as a SortedMap[K,V] file to w.
func DumpSortedMap[K any, V any](w io.Writer, entries []container.Pair[K, V], less func(a, b K) bool, flags uint64) error {
	_, hash := TypeIdentity[container.SortedMap[K, V]]()
	body, used, err := scratchArena(func(a *arena.Arena) error {
		_, err := container.NewSortedMap[K, V](a, entries, less)
		return err
	})
	if err != nil {
		return err
	}
	return WriteBody(w, hash, flags, body[:used])
}

// DumpSortedSet writes keys as a SortedSet[K] file to w.
func DumpSortedSet[K any](w io.Writer, keys []K, less func(a, b K) bool, flags uint64) error {
	_, hash := TypeIdentity[container.SortedSet[K]]()
	body, used, err := scratchArena(func(a *arena.Arena) error {
		_, err := container.NewSortedSet[K](a, keys, less)
		return err
	})
	if err != nil {
		return err
	}
	return WriteBody(w, hash, flags, body[:used])
}

// DumpNestedMap writes rows as a NestedMap[K,V,S] file to w: each row is
// sorted by key during layout, duplicate keys within a row fail the dump.
func DumpNestedMap[K any, V any, S sizeType](w io.Writer, rows [][]container.Pair[K, V], less func(a, b K) bool, flags uint64) error {
	_, hash := TypeIdentity[container.NestedMap[K, V, S]]()
	body, used, err := scratchArena(func(a *arena.Arena) error {
		_, err := container.NewNestedMap[K, V, S](a, rows, less)
		return err
	})
	if err != nil {
		return err
	}
	return WriteBody(w, hash, flags, body[:used])
}

// DumpHashMap writes entries as a HashMap[K,V] file to w.
func DumpHashMap[K comparable, V any](w io.Writer, entries map[K]V, hashFn func(K) uint64, less func(a, b K) bool, flags uint64) error {
	_, hash := TypeIdentity[container.HashMap[K, V]]()
	body, used, err := scratchArena(func(a *arena.Arena) error {
		_, err := container.NewHashMap[K, V](a, entries, hashFn, less)
		return err
	})
	if err != nil {
		return err
	}
	return WriteBody(w, hash, flags, body[:used])
}

// DumpHashSet writes keys as a HashSet[K] file to w.
func DumpHashSet[K any](w io.Writer, keys []K, hashFn func(K) uint64, equal func(a, b K) bool, flags uint64) error {
	_, hash := TypeIdentity[container.HashSet[K]]()
	body, used, err := scratchArena(func(a *arena.Arena) error {
		_, err := container.NewHashSet[K](a, keys, hashFn, equal)
		return err
	})
	if err != nil {
		return err
	}
	return WriteBody(w, hash, flags, body[:used])
}

// DumpNestedHashMap writes entries as a NestedHashMap[K,V] file to w.
func DumpNestedHashMap[K comparable, V any](w io.Writer, entries map[K][]V, hashFn func(K) uint64, less func(a, b K) bool, flags uint64) error {
	_, hash := TypeIdentity[container.NestedHashMap[K, V]]()
	body, used, err := scratchArena(func(a *arena.Arena) error {
		_, err := container.NewNestedHashMap[K, V](a, entries, hashFn, less)
		return err
	})
	if err != nil {
		return err
	}
	return WriteBody(w, hash, flags, body[:used])
}
