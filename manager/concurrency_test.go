package manager

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sharedcode/shm"
)

func TestConcurrentRegisterDistinctPaths(t *testing.T) {
	m := heapManager("grp", 1)
	const n = 8
	paths := make([]string, n)
	for i := range paths {
		paths[i] = dumpVectorFile(t, fmt.Sprintf("vec_%d.bin", i), []uint64{uint64(i), uint64(i + 1)})
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	handles := make([]*Handle[u64Vector], n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = Register[u64Vector](m, paths[i])
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Register %d: %v", i, errs[i])
		}
		if handles[i].Ptr().Get(0) != uint64(i) {
			t.Fatalf("container %d contents wrong", i)
		}
		handles[i].Close()
	}
	m.Release()
	reapOnce()
}

func TestConcurrentRegisterSamePathOneWinner(t *testing.T) {
	m := heapManager("grp", 1)
	path := dumpVectorFile(t, "vec.bin", []uint64{1, 2, 3})

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	handles := make([]*Handle[u64Vector], n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = Register[u64Vector](m, path)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < n; i++ {
		switch {
		case errs[i] == nil:
			winners++
			handles[i].Close()
		case sop.CodeOf(errs[i]) == sop.AlreadyRegistered:
		default:
			t.Fatalf("Register %d: unexpected error %v", i, errs[i])
		}
	}
	if winners != 1 {
		t.Fatalf("want exactly one winning registration, got %d", winners)
	}
	m.Release()
	reapOnce()
}
