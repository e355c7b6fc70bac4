package wire

import (
	"io"
	"unsafe"

	"github.com/sharedcode/shm/container"
)

func loadTyped[C any](r io.Reader, dest []byte) (*C, error) {
	_, hash := TypeIdentity[C]()
	if _, err := LoadBody(r, hash, dest); err != nil {
		return nil, err
	}
	if len(dest) == 0 {
		return nil, ErrSizeMismatch
	}
	return (*C)(unsafe.Pointer(&dest[0])), nil
}

// LoadVector reads a Vector[T,S] file body from r directly into dest
// (sized exactly to the declared body size) and returns a pointer over it.
func LoadVector[T any, S sizeType](r io.Reader, dest []byte) (*container.Vector[T, S], error) {
	return loadTyped[container.Vector[T, S]](r, dest)
}

// LoadNestedVector reads a NestedVector[T,S] file body from r into dest.
func LoadNestedVector[T any, S sizeType](r io.Reader, dest []byte) (*container.NestedVector[T, S], error) {
	return loadTyped[container.NestedVector[T, S]](r, dest)
}

// LoadSortedMap reads a SortedMap[K,V] file body from r into dest.
func LoadSortedMap[K any, V any](r io.Reader, dest []byte) (*container.SortedMap[K, V], error) {
	return loadTyped[container.SortedMap[K, V]](r, dest)
}

// LoadSortedSet reads a SortedSet[K] file body from r into dest.
func LoadSortedSet[K any](r io.Reader, dest []byte) (*container.SortedSet[K], error) {
	return loadTyped[container.SortedSet[K]](r, dest)
}

// LoadNestedMap reads a NestedMap[K,V,S] file body from r into dest.
func LoadNestedMap[K any, V any, S sizeType](r io.Reader, dest []byte) (*container.NestedMap[K, V, S], error) {
	return loadTyped[container.NestedMap[K, V, S]](r, dest)
}

// LoadHashMap reads a HashMap[K,V] file body from r into dest.
func LoadHashMap[K any, V any](r io.Reader, dest []byte) (*container.HashMap[K, V], error) {
	return loadTyped[container.HashMap[K, V]](r, dest)
}

// LoadHashSet reads a HashSet[K] file body from r into dest.
func LoadHashSet[K any](r io.Reader, dest []byte) (*container.HashSet[K], error) {
	return loadTyped[container.HashSet[K]](r, dest)
}

// LoadNestedHashMap reads a NestedHashMap[K,V] file body from r into dest.
func LoadNestedHashMap[K any, V any](r io.Reader, dest []byte) (*container.NestedHashMap[K, V], error) {
	return loadTyped[container.NestedHashMap[K, V]](r, dest)
}
