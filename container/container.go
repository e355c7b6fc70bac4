// Package container implements the family of offset-addressed, placement-only
// data structures that live inside an arena-managed memory region: Vector,
// NestedVector, SortedMap/SortedSet, HashMap/HashSet and NestedHashMap.
//
// Every container addresses its tail data by a byte offset from its own
// address rather than a Go pointer, so the exact same bytes are navigable
// whether they sit in this process's heap or in a System V shared-memory
// segment attached at a different virtual address in another process.
// Mutation only ever happens while building a container inside an arena
// (the "Dump" side); once published, every container is read-only.
package container

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrOutOfRange is returned by bounds-checked accessors (At) when the index
// is not within [0, Size).
var ErrOutOfRange = errors.New("container: index out of range")

// ErrNotTriviallyCopyable is returned when an element type contains a Go
// pointer, slice, map, channel, function or interface, any of which would
// be meaningless (or actively unsafe) once copied into another process's
// address space.
var ErrNotTriviallyCopyable = errors.New("container: element type is not trivially copyable")

// ErrKeyConflict is returned when constructing a sorted container from a
// key set containing duplicates under the supplied comparator.
var ErrKeyConflict = errors.New("container: duplicate key")

// sizeType is the set of integer types usable as a Vector's (size, offset)
// field type. HashMap/HashSet/NestedHashMap index rows use uint32 to keep
// chain headers compact; top-level containers use uint64.
type sizeType interface {
	~uint32 | ~uint64
}

// SizeType is sizeType exported for other packages (wire) that need to
// write functions generic over the same (size, offset) field width.
type SizeType = sizeType

// Pair is the element type backing every Map/Set container: a plain struct
// with no internal offset scheme, safe to treat as a leaf value.
type Pair[K any, V any] struct {
	Key   K
	Value V
}

// AssertTriviallyCopyable validates, via reflection, that T contains nothing
// unsafe to place in shared memory: no pointers, slices, maps, channels,
// funcs or interfaces anywhere in its field tree. Called once at Dump time
// for every element type a container is built over.
func AssertTriviallyCopyable[T any]() error {
	var zero T
	return assertTriviallyCopyable(reflect.TypeOf(zero))
}

func assertTriviallyCopyable(t reflect.Type) error {
	if t == nil {
		// reflect.TypeOf on a nil interface value; only reachable for
		// element types that are themselves interfaces, already rejected
		// below, but guard defensively against the zero-Kind case.
		return fmt.Errorf("%w: untyped nil", ErrNotTriviallyCopyable)
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Array:
		if err := assertTriviallyCopyable(t.Elem()); err != nil {
			return fmt.Errorf("%s: %w", t, err)
		}
		return nil
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if err := assertTriviallyCopyable(f.Type); err != nil {
				return fmt.Errorf("field %s of %s: %w", f.Name, t, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%s %s: %w", t.Kind(), t, ErrNotTriviallyCopyable)
	}
}
