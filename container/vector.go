package container

import (
	"unsafe"

	"github.com/sharedcode/shm/arena"
)

// Vector is an offset-addressed, fixed-length array: a (size, offset) header
// whose element run lives at self+arrOffset. It carries no Go pointer or
// slice header across its own boundary: array() recomputes the element
// address from this Vector's own memory address every time, which is what
// makes it safe to reconstruct identically regardless of where the
// surrounding region is mapped.
//
// Vector values must never be copied once placed in an arena: a copy's
// arrOffset still points relative to the original's address, not the
// copy's, so any method that dereferences through the copy reads garbage.
// Always hold a *Vector obtained from an arena or from Ptr/At, never a
// Vector value.
type Vector[T any, S sizeType] struct {
	size      S
	arrOffset S
}

// Size returns the number of elements.
func (v *Vector[T, S]) Size() S { return v.size }

// Len is Size as an int, for ordinary Go indexing.
func (v *Vector[T, S]) Len() int { return int(v.size) }

// Empty reports whether the vector has zero elements.
func (v *Vector[T, S]) Empty() bool { return v.size == 0 }

func (v *Vector[T, S]) array() []T {
	if v.size == 0 {
		return nil
	}
	return arena.SliceAt[T](unsafe.Pointer(v), int64(v.arrOffset), int64(v.size))
}

// Get returns element i without a bounds check, mirroring a plain array
// index. Callers that cannot guarantee i is in range should use At.
func (v *Vector[T, S]) Get(i int) T {
	return v.array()[i]
}

// At returns element i, or ErrOutOfRange if i is not within [0, Len()).
func (v *Vector[T, S]) At(i int) (T, error) {
	if i < 0 || i >= v.Len() {
		var zero T
		return zero, ErrOutOfRange
	}
	return v.array()[i], nil
}

// Ptr returns a pointer to element i within the vector's own backing
// memory (not a copy). Required whenever T itself addresses further data
// by offset relative to its own address, e.g. a nested vector's row
// headers. Copying such an element breaks its internal offsets.
func (v *Vector[T, S]) Ptr(i int) *T {
	return &v.array()[i]
}

// All returns a read-only view over the element run, backed by the same
// arena memory. Callers must not write through it.
func (v *Vector[T, S]) All() []T {
	return v.array()
}

// headerSize returns align8(unsafe.Sizeof(Vector[T,S])) for the instantiated
// S, used by this package's construction code to compute byte layouts
// without reserving anything.
func headerSize[T any, S sizeType]() int64 {
	var v Vector[T, S]
	return arena.Align8(int64(unsafe.Sizeof(v)))
}

// NewVector placement-constructs a Vector[T,S] in a and copies data into its
// element run. T must pass AssertTriviallyCopyable.
func NewVector[T any, S sizeType](a *arena.Arena, data []T) (*Vector[T, S], error) {
	if err := AssertTriviallyCopyable[T](); err != nil {
		return nil, err
	}
	v, err := arena.Reserve[Vector[T, S]](a)
	if err != nil {
		return nil, err
	}
	if err := fillVector[T, S](a, v, data); err != nil {
		return nil, err
	}
	return v, nil
}

// fillVector reserves the element run for an already-reserved Vector header
// and copies data into it, setting size/arrOffset relative to hdr's own
// address. Shared by NewVector and the nested-vector row builder.
func fillVector[T any, S sizeType](a *arena.Arena, hdr *Vector[T, S], data []T) error {
	n := int64(len(data))
	if n == 0 {
		hdr.size = 0
		hdr.arrOffset = S(headerSize[T, S]())
		return nil
	}
	arr, err := arena.ConstructN[T](a, n)
	if err != nil {
		return err
	}
	copy(arr, data)
	hdr.size = S(n)
	hdr.arrOffset = S(uintptr(unsafe.Pointer(&arr[0])) - uintptr(unsafe.Pointer(hdr)))
	return nil
}

// Equal performs a structural comparison of a and b's logical contents using
// eq to compare corresponding elements. A nil Vector pointer is treated as
// empty, matching the semantics of a freshly-zeroed Vector.
func Equal[T any, S sizeType](a, b *Vector[T, S], eq func(x, y T) bool) bool {
	an, bn := vecLen(a), vecLen(b)
	if an != bn {
		return false
	}
	for i := 0; i < an; i++ {
		if !eq(a.Get(i), b.Get(i)) {
			return false
		}
	}
	return true
}

func vecLen[T any, S sizeType](v *Vector[T, S]) int {
	if v == nil {
		return 0
	}
	return v.Len()
}

// BinarySearchBy returns the lowest index i in [0, Len()) such that
// !less(key(v.Get(i)), target), along with whether that element's key is
// equal to target (neither less(k, target) nor less(target, k)). Used by
// the SortedMap/SortedSet finders and bounds, NestedMap row lookups and
// HashMap/NestedHashMap chain lookups (HashSet scans its chains linearly).
func BinarySearchBy[T any, S sizeType, K any](v *Vector[T, S], target K, key func(T) K, less func(a, b K) bool) (int, bool) {
	n := v.Len()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		k := key(v.Get(mid))
		if less(k, target) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n {
		k := key(v.Get(lo))
		if !less(k, target) && !less(target, k) {
			return lo, true
		}
	}
	return lo, false
}
