package container

import "testing"

func u32less(x, y uint32) bool { return x < y }

func TestSortedMapFind(t *testing.T) {
	a := newArena(t, 512)
	entries := []Pair[uint32, uint64]{
		{Key: 3, Value: 33},
		{Key: 1, Value: 11},
		{Key: 2, Value: 22},
	}
	m, err := NewSortedMap[uint32, uint64](a, entries, u32less)
	if err != nil {
		t.Fatalf("NewSortedMap: %v", err)
	}
	if got, ok := FindInMap(m, uint32(2), u32less); !ok || got != 22 {
		t.Fatalf("Find(2): got (%d, %v)", got, ok)
	}
	if _, ok := FindInMap(m, uint32(4), u32less); ok {
		t.Fatalf("want miss for key 4")
	}
}

func TestSortedMapRejectsDuplicateKeys(t *testing.T) {
	a := newArena(t, 512)
	entries := []Pair[uint32, uint64]{{Key: 1, Value: 10}, {Key: 1, Value: 20}}
	if _, err := NewSortedMap[uint32, uint64](a, entries, u32less); err != ErrKeyConflict {
		t.Fatalf("want ErrKeyConflict, got %v", err)
	}
}

func TestSortedMapBounds(t *testing.T) {
	a := newArena(t, 1024)
	less := func(x, y uint64) bool { return x < y }
	entries := []Pair[uint64, uint32]{
		{Key: 1111, Value: 1}, {Key: 2222, Value: 2}, {Key: 3333, Value: 3},
		{Key: 4444, Value: 4}, {Key: 5555, Value: 5},
	}
	m, err := NewSortedMap[uint64, uint32](a, entries, less)
	if err != nil {
		t.Fatalf("NewSortedMap: %v", err)
	}
	if got, ok := FindInMap(m, uint64(3333), less); !ok || got != 3 {
		t.Fatalf("Find(3333): got (%d, %v), want (3, true)", got, ok)
	}
	if _, ok := FindInMap(m, uint64(9999), less); ok {
		t.Fatalf("want miss for 9999")
	}
	if i := LowerBound(m, uint64(2500), less); m.Get(i).Key != 3333 {
		t.Fatalf("LowerBound(2500): got key %d, want 3333", m.Get(i).Key)
	}
	if i := UpperBound(m, uint64(3333), less); m.Get(i).Key != 4444 {
		t.Fatalf("UpperBound(3333): got key %d, want 4444", m.Get(i).Key)
	}
	if i := LowerBound(m, uint64(9999), less); i != m.Len() {
		t.Fatalf("LowerBound past the last key: got %d, want %d", i, m.Len())
	}
}

func TestSortedSetFind(t *testing.T) {
	a := newArena(t, 512)
	s, err := NewSortedSet[uint32](a, []uint32{5, 1, 3}, u32less)
	if err != nil {
		t.Fatalf("NewSortedSet: %v", err)
	}
	if !FindInSet(s, uint32(3), u32less) {
		t.Fatalf("want hit for 3")
	}
	if FindInSet(s, uint32(4), u32less) {
		t.Fatalf("want miss for 4")
	}
}
