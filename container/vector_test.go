package container

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/sharedcode/shm/arena"
)

func newArena(t *testing.T, size int64) *arena.Arena {
	t.Helper()
	buf := make([]byte, size)
	// The arena only holds a uintptr-derived pointer; keep the backing
	// slice alive for the duration of the test.
	t.Cleanup(func() { runtime.KeepAlive(buf) })
	return arena.New(unsafe.Pointer(&buf[0]), size)
}

func TestVectorRoundTrip(t *testing.T) {
	a := newArena(t, 256)
	v, err := NewVector[uint32, uint64](a, []uint32{10, 20, 30, 40})
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}
	if v.Len() != 4 {
		t.Fatalf("want len 4, got %d", v.Len())
	}
	for i, want := range []uint32{10, 20, 30, 40} {
		if got := v.Get(i); got != want {
			t.Fatalf("element %d: want %d, got %d", i, want, got)
		}
	}
}

func TestVectorAtBounds(t *testing.T) {
	a := newArena(t, 256)
	v, err := NewVector[uint32, uint64](a, []uint32{1, 2, 3})
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}
	if _, err := v.At(-1); err != ErrOutOfRange {
		t.Fatalf("want ErrOutOfRange for negative index, got %v", err)
	}
	if _, err := v.At(3); err != ErrOutOfRange {
		t.Fatalf("want ErrOutOfRange for one-past-end, got %v", err)
	}
	got, err := v.At(1)
	if err != nil || got != 2 {
		t.Fatalf("At(1): got (%v, %v), want (2, nil)", got, err)
	}
}

func TestVectorEmpty(t *testing.T) {
	a := newArena(t, 256)
	v, err := NewVector[uint32, uint64](a, nil)
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}
	if !v.Empty() {
		t.Fatalf("want empty vector")
	}
	if v.Len() != 0 {
		t.Fatalf("want len 0, got %d", v.Len())
	}
}

func TestVectorRejectsNonTriviallyCopyableElements(t *testing.T) {
	a := newArena(t, 256)
	if _, err := NewVector[string, uint64](a, []string{"x"}); err == nil {
		t.Fatalf("want error constructing a Vector[string], strings carry a Go pointer")
	}
}

func TestVectorEqual(t *testing.T) {
	a := newArena(t, 256)
	v1, _ := NewVector[uint32, uint64](a, []uint32{1, 2, 3})
	v2, _ := NewVector[uint32, uint64](a, []uint32{1, 2, 3})
	v3, _ := NewVector[uint32, uint64](a, []uint32{1, 2, 4})

	eq := func(x, y uint32) bool { return x == y }
	if !Equal(v1, v2, eq) {
		t.Fatalf("want v1 == v2")
	}
	if Equal(v1, v3, eq) {
		t.Fatalf("want v1 != v3")
	}
}

func TestVectorPtrAliasesBackingMemory(t *testing.T) {
	a := newArena(t, 256)
	v, _ := NewVector[uint32, uint64](a, []uint32{1, 2, 3})
	p := v.Ptr(1)
	*p = 99
	if got := v.Get(1); got != 99 {
		t.Fatalf("want mutation through Ptr visible via Get, got %d", got)
	}
}

func TestBinarySearchByFindsAndMisses(t *testing.T) {
	a := newArena(t, 256)
	v, _ := NewVector[uint32, uint64](a, []uint32{10, 20, 30, 40, 50})
	key := func(x uint32) uint32 { return x }
	less := func(x, y uint32) bool { return x < y }

	if i, ok := BinarySearchBy[uint32, uint64, uint32](v, 30, key, less); !ok || i != 2 {
		t.Fatalf("want (2, true) for 30, got (%d, %v)", i, ok)
	}
	if _, ok := BinarySearchBy[uint32, uint64, uint32](v, 25, key, less); ok {
		t.Fatalf("want miss for 25")
	}
}
