// Package segment provides the memory backings a shared container region
// can live in: a System V shared-memory segment reachable from any process
// on the host, or a process-private heap buffer with identical size and
// addressing semantics. Both are exposed behind the Memory capability so
// the shared package can stay agnostic of which one it got.
//
// The package also owns the process-wide IdManager, the path to shmid
// registry seeded from a scan of the kernel's segment table, and the
// administrative scan/remove primitives the manager package's Clear
// operations are built on.
package segment

import (
	"encoding/binary"
	"os"
	"unsafe"

	"github.com/sharedcode/shm"
)

// MaxMemSize is the hard ceiling on a single segment's total size (60 GB).
const MaxMemSize = int64(60_000_000_000)

// Info describes one live kernel segment recognized as belonging to this
// system: the container file path, the kernel shmid, the group tag and the
// app id recorded in its meta block.
type Info struct {
	Path  string
	ID    int
	Group string
	AppID int32
}

// Memory is the capability a shared container region is built over. Init
// opens the backing (creating it if absent) sized from the container
// file's declared body size plus fixedSize bytes of preamble; Address and
// Size describe the attached window; Remove releases the backing. IsExist
// reports whether Init attached an already-populated backing rather than
// creating a fresh one.
type Memory interface {
	Init(fixedSize int64) error
	Remove() bool
	IsExist() bool
	Address() unsafe.Pointer
	Size() int64
	ID() int
	Info() string
}

// Factory constructs a Memory for a container file path and app id. The
// shared package takes one of these so callers can pick the backing per
// container (NewSysV for cross-process sharing, NewHeap for tests and
// single-process embedding).
type Factory func(path string, appID int32) Memory

// preflight opens the container file, reads its leading uint64 body size
// and returns the total segment size after adding fixedSize, enforcing the
// (0, MaxMemSize) bound.
func preflight(path string, fixedSize int64) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, sop.NewError(sop.FileNoExist, path, err)
	}
	defer f.Close()

	var bodySize uint64
	if err := binary.Read(f, binary.LittleEndian, &bodySize); err != nil {
		return 0, sop.NewError(sop.ReadFail, path, err)
	}
	if bodySize >= uint64(MaxMemSize) {
		return 0, sop.NewError(sop.ShmSizeErr, path, nil)
	}
	total := int64(bodySize) + fixedSize
	if total == 0 || total >= MaxMemSize {
		return 0, sop.NewError(sop.ShmSizeErr, path, nil)
	}
	return total, nil
}
