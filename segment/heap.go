package segment

import (
	"fmt"
	log "log/slog"
	"unsafe"
)

// HeapMemory backs a container region with a process-private heap buffer.
// It has the same size and addressing semantics as a SysV segment but no
// cross-process sharing: IsExist is always false, so every Init is a fresh
// construction followed by a file load.
type HeapMemory struct {
	path  string
	appID int32
	// buf keeps the window alive for the Go GC; it is never appended to or
	// resliced, so Address stays stable for the life of the backing.
	buf  []byte
	size int64
	info string
}

// NewHeap returns a heap-backed Memory for path. It satisfies Factory.
func NewHeap(path string, appID int32) Memory {
	return &HeapMemory{path: path, appID: appID}
}

// Init sizes the buffer from the container file's declared body size plus
// fixedSize and allocates it zeroed.
func (m *HeapMemory) Init(fixedSize int64) error {
	total, err := preflight(m.path, fixedSize)
	if err != nil {
		return err
	}
	m.buf = make([]byte, total)
	m.size = total
	m.info = fmt.Sprintf("HeapMemory size=%d region=[%p,%p)",
		m.size, m.Address(), unsafe.Add(m.Address(), m.size))
	log.Info(fmt.Sprintf("heap memory init succ. path=%s, info=%s", m.path, m.info))
	return nil
}

// Remove drops the buffer. Safe to call repeatedly.
func (m *HeapMemory) Remove() bool {
	m.buf = nil
	return true
}

// IsExist always reports false: heap backings are never shared, so there
// is never a pre-populated one to attach to.
func (m *HeapMemory) IsExist() bool { return false }

// Address returns the buffer's base address, or nil before Init.
func (m *HeapMemory) Address() unsafe.Pointer {
	if m.buf == nil {
		return nil
	}
	return unsafe.Pointer(&m.buf[0])
}

// Size returns the total backing size in bytes.
func (m *HeapMemory) Size() int64 { return m.size }

// ID returns 0: heap backings have no kernel identity.
func (m *HeapMemory) ID() int { return 0 }

// Info returns a human-readable description of the backing.
func (m *HeapMemory) Info() string { return m.info }
