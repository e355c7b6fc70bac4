package container

import "testing"

func f64less(x, y float64) bool { return x < y }

func TestNestedMapRoundTrip(t *testing.T) {
	a := newArena(t, 2048)
	rows := [][]Pair[float64, float64]{
		{{Key: 0.3, Value: 1.5}, {Key: 0.1, Value: 1}, {Key: 0.5, Value: 2}},
		{},
		{{Key: 0.9, Value: 4.5}, {Key: 0.7, Value: 3.5}, {Key: 0.8, Value: 4.0}, {Key: 0.6, Value: 3.0}},
		{{Key: 1.0, Value: 5.0}},
		{},
	}
	nm, err := NewNestedMap[float64, float64, uint32](a, rows, f64less)
	if err != nil {
		t.Fatalf("NewNestedMap: %v", err)
	}
	if nm.Len() != len(rows) {
		t.Fatalf("want %d rows, got %d", len(rows), nm.Len())
	}
	// Each row comes out key-sorted regardless of input order.
	row0 := nm.Ptr(0)
	if row0.Get(0).Key != 0.1 || row0.Get(1).Key != 0.3 || row0.Get(2).Key != 0.5 {
		t.Fatalf("row 0 not sorted by key: %v", row0.All())
	}
	if nm.Ptr(1).Len() != 0 || nm.Ptr(4).Len() != 0 {
		t.Fatalf("empty rows must stay empty")
	}
	if got, ok := FindInNestedMap(nm, 2, 0.7, f64less); !ok || got != 3.5 {
		t.Fatalf("FindInNestedMap(2, 0.7): got (%v, %v), want (3.5, true)", got, ok)
	}
	if _, ok := FindInNestedMap(nm, 2, 0.65, f64less); ok {
		t.Fatalf("want miss for absent key in row 2")
	}
	if _, ok := FindInNestedMap(nm, 1, 0.1, f64less); ok {
		t.Fatalf("want miss in an empty row")
	}
}

func TestNestedMapRejectsDuplicateKeysWithinRow(t *testing.T) {
	a := newArena(t, 1024)
	rows := [][]Pair[uint32, uint64]{
		{{Key: 1, Value: 10}, {Key: 1, Value: 20}},
	}
	if _, err := NewNestedMap[uint32, uint64, uint32](a, rows, u32less); err != ErrKeyConflict {
		t.Fatalf("want ErrKeyConflict, got %v", err)
	}
}

func TestNestedMapAllowsSameKeyAcrossRows(t *testing.T) {
	a := newArena(t, 1024)
	rows := [][]Pair[uint32, uint64]{
		{{Key: 7, Value: 1}},
		{{Key: 7, Value: 2}},
	}
	nm, err := NewNestedMap[uint32, uint64, uint32](a, rows, u32less)
	if err != nil {
		t.Fatalf("NewNestedMap: %v", err)
	}
	v0, _ := FindInNestedMap(nm, 0, uint32(7), u32less)
	v1, _ := FindInNestedMap(nm, 1, uint32(7), u32less)
	if v0 != 1 || v1 != 2 {
		t.Fatalf("rows are independent: got %d, %d", v0, v1)
	}
}

func TestNestedMapEmpty(t *testing.T) {
	a := newArena(t, 256)
	nm, err := NewNestedMap[uint32, uint64, uint32](a, nil, u32less)
	if err != nil {
		t.Fatalf("NewNestedMap: %v", err)
	}
	if nm.Len() != 0 {
		t.Fatalf("want 0 rows, got %d", nm.Len())
	}
}
