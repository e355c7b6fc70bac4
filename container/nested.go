package container

import (
	"unsafe"

	"github.com/sharedcode/shm/arena"
)

// NestedVector is a Vector of Vectors: outer.Get(i) / outer.Ptr(i) yields
// the i-th row, itself a Vector[T,S] whose element run follows all row
// headers in the backing arena. The outer index always uses uint64; row
// headers use whichever S the row type carries (uint32 for hash-map
// chains, uint64 for a plain nested vector of vectors).
type NestedVector[T any, S sizeType] = Vector[Vector[T, S], uint64]

// NewNestedVector placement-constructs a NestedVector from rows, a slice of
// owned Go slices. Row i's element run lands after every row header and
// every row's run that precedes it, matching the layout read back by Load.
func NewNestedVector[T any, S sizeType](a *arena.Arena, rows [][]T) (*NestedVector[T, S], error) {
	outer, err := arena.Reserve[NestedVector[T, S]](a)
	if err != nil {
		return nil, err
	}
	if err := buildNestedVectorInto[T, S](a, outer, rows); err != nil {
		return nil, err
	}
	return outer, nil
}

// buildNestedVectorInto continues construction of an already-reserved outer
// header: it reserves n contiguous row headers, then for each row reserves
// and fills that row's element run, immediately after the previous row's
// run. Shared by NewNestedVector and the hash-map family, whose outer
// header is itself embedded by value inside a larger fixed-field struct.
func buildNestedVectorInto[T any, S sizeType](a *arena.Arena, outer *NestedVector[T, S], rows [][]T) error {
	n := int64(len(rows))
	rowHeaders, err := arena.ConstructN[Vector[T, S]](a, n)
	if err != nil {
		return err
	}
	if n > 0 {
		outer.size = uint64(n)
		outer.arrOffset = uint64(uintptr(unsafe.Pointer(&rowHeaders[0])) - uintptr(unsafe.Pointer(outer)))
	} else {
		outer.size = 0
		outer.arrOffset = uint64(headerSize[Vector[T, S], uint64]())
	}
	for i, row := range rows {
		if err := fillVector[T, S](a, &rowHeaders[i], row); err != nil {
			return err
		}
	}
	return nil
}

// nestedVectorByteSize computes, without allocating, the exact number of
// bytes a NewNestedVector call over rows would consume: the outer header,
// all row headers, and every row's (8-byte aligned) element run. Only the
// package's tests call it, to check a layout's byte count.
func nestedVectorByteSize[T any, S sizeType](rows [][]T) int64 {
	var outerZero NestedVector[T, S]
	total := arena.Align8(int64(unsafe.Sizeof(outerZero)))
	var rowZero Vector[T, S]
	rowSize := arena.Align8(int64(unsafe.Sizeof(rowZero)))
	total += rowSize * int64(len(rows))
	var elemZero T
	elemSize := int64(unsafe.Sizeof(elemZero))
	for _, row := range rows {
		total += arena.Align8(elemSize * int64(len(row)))
	}
	return total
}
