package manager_test

import (
	"fmt"

	"github.com/sharedcode/shm/container"
	"github.com/sharedcode/shm/manager"
	"github.com/sharedcode/shm/wire"
)

// A producer dumps a container file once; any number of consumer
// processes then register the path and query it in place.
func Example() {
	entries := map[uint64]uint64{11: 77, 77: 321, 1024: 2048}
	hash := func(k uint64) uint64 { return k * 0x9e3779b97f4a7c15 }
	less := func(a, b uint64) bool { return a < b }
	if err := wire.DumpHashMapFile("/data/prices.bin", entries, hash, less); err != nil {
		fmt.Println("dump:", err)
		return
	}

	m := manager.New("pricing", 1)
	h, err := manager.Register[container.HashMap[uint64, uint64]](m, "/data/prices.bin")
	if err != nil {
		fmt.Println("register:", err)
		return
	}
	defer h.Close()
	defer m.Release()

	if v, ok := h.Ptr().Find(1024, hash, less); ok {
		fmt.Println("price:", v)
	}
}
