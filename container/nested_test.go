package container

import "testing"

func TestNestedVectorRoundTrip(t *testing.T) {
	a := newArena(t, 1024)
	rows := [][]uint32{
		{1, 2, 3},
		{},
		{4},
		{5, 6},
	}
	outer, err := NewNestedVector[uint32, uint64](a, rows)
	if err != nil {
		t.Fatalf("NewNestedVector: %v", err)
	}
	if outer.Len() != len(rows) {
		t.Fatalf("want %d rows, got %d", len(rows), outer.Len())
	}
	for i, want := range rows {
		row := outer.Ptr(i)
		if row.Len() != len(want) {
			t.Fatalf("row %d: want len %d, got %d", i, len(want), row.Len())
		}
		for j, wantElem := range want {
			if got := row.Get(j); got != wantElem {
				t.Fatalf("row %d elem %d: want %d, got %d", i, j, wantElem, got)
			}
		}
	}
}

func TestNestedVectorRowOffsetsAreSelfRelative(t *testing.T) {
	a := newArena(t, 1024)
	rows := [][]uint32{{1, 2}, {3, 4, 5}}
	outer, err := NewNestedVector[uint32, uint64](a, rows)
	if err != nil {
		t.Fatalf("NewNestedVector: %v", err)
	}
	// A row pulled via Get (a value copy) is only safe to read the header
	// fields from; calling array-based accessors on it would dereference a
	// stale address. Ptr must be used for anything that reads through the
	// row's own offset.
	row0 := outer.Ptr(0)
	row1 := outer.Ptr(1)
	if row0.Get(0) != 1 || row0.Get(1) != 2 {
		t.Fatalf("row 0 contents wrong: %v", row0.All())
	}
	if row1.Get(0) != 3 || row1.Get(2) != 5 {
		t.Fatalf("row 1 contents wrong: %v", row1.All())
	}
}

func TestNestedVectorByteSizeMatchesActualUsage(t *testing.T) {
	a := newArena(t, 1024)
	rows := [][]uint32{{1, 2, 3}, {4}}
	before := a.Used()
	if _, err := NewNestedVector[uint32, uint64](a, rows); err != nil {
		t.Fatalf("NewNestedVector: %v", err)
	}
	got := a.Used() - before
	want := nestedVectorByteSize[uint32, uint64](rows)
	if got != want {
		t.Fatalf("nestedVectorByteSize mismatch: predicted %d, actual %d", want, got)
	}
}
