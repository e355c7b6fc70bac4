//go:build !linux

package segment

import (
	"unsafe"

	"github.com/sharedcode/shm"
)

// System V segments with kernel-table enumeration are only wired up on
// Linux. Elsewhere the SysV constructor still exists so callers compile,
// but Init reports SysErr; the heap backing remains fully functional.

type sysvUnsupported struct {
	path string
}

// NewSysV returns a Memory whose Init always fails on this platform.
func NewSysV(path string, appID int32) Memory {
	return &sysvUnsupported{path: path}
}

func (m *sysvUnsupported) Init(fixedSize int64) error {
	return sop.NewError(sop.SysErr, m.path, nil)
}

func (m *sysvUnsupported) Remove() bool            { return true }
func (m *sysvUnsupported) IsExist() bool           { return false }
func (m *sysvUnsupported) Address() unsafe.Pointer { return nil }
func (m *sysvUnsupported) Size() int64             { return 0 }
func (m *sysvUnsupported) ID() int                 { return 0 }
func (m *sysvUnsupported) Info() string            { return "SysV shared memory unsupported" }

// Scan reports no segments on platforms without SysV enumeration.
func Scan(unattachedOnly bool) ([]Info, error) { return nil, nil }

// RemoveByID is a no-op on platforms without SysV segments.
func RemoveByID(shmid int) bool { return true }
