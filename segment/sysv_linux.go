//go:build linux

package segment

import (
	"fmt"
	log "log/slog"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"

	"github.com/sharedcode/shm"
	"github.com/sharedcode/shm/wire"
)

// SysVMemory backs a container region with a System V shared-memory
// segment keyed off the container file path, so every process loading the
// same path lands on the same kernel segment.
type SysVMemory struct {
	path  string
	appID int32
	shmid int
	// attached is the window SysvShmAttach returned; it is never resliced,
	// so Address stays stable until Detach.
	attached []byte
	size     int64
	isExist  bool
	info     string
}

// NewSysV returns a SysV-backed Memory for path. It satisfies Factory.
func NewSysV(path string, appID int32) Memory {
	return &SysVMemory{path: path, appID: appID}
}

// projID derives the 1-byte ftok project id from the path hash XOR'd with
// the app id, so distinct app ids loading the same file get distinct keys.
func projID(path string, appID int32) int {
	id := int(byte(xxhash.Sum64String(path) ^ uint64(appID)))
	if id == 0 {
		// ftok treats proj_id 0 as invalid.
		id = 1
	}
	return id
}

// ftok reimplements the libc key derivation: the project id byte, the low
// byte of the file's device and the low 16 bits of its inode.
func ftok(path string, proj int) (int, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, err
	}
	key := (proj&0xff)<<24 | (int(st.Dev)&0xff)<<16 | (int(st.Ino) & 0xffff)
	return key, nil
}

// Init opens or creates the segment for the container file at path. An
// already-registered path (IdManager) or an EEXIST from create-exclusive
// both mean another Init got here first: attach only and flag isExist.
// After attaching an existing segment, the meta block's recorded path is
// compared against the requested one to detect ftok key collisions.
func (m *SysVMemory) Init(fixedSize int64) error {
	total, err := preflight(m.path, fixedSize)
	if err != nil {
		return err
	}

	if id, ok := Ids().GetID(m.path); ok {
		m.shmid = id
		m.isExist = true
	} else {
		key, err := ftok(m.path, projID(m.path, m.appID))
		if err != nil {
			return sop.NewError(sop.SysErr, m.path, err)
		}
		id, err := unix.SysvShmGet(key, int(total), unix.IPC_CREAT|unix.IPC_EXCL|0o600)
		if err == unix.EEXIST {
			id, err = unix.SysvShmGet(key, 0, 0)
			m.isExist = true
		}
		if err != nil {
			if err == unix.ENOMEM || err == unix.ENOSPC {
				return sop.NewError(sop.Oom, m.path, err)
			}
			return sop.NewError(sop.SysErr, m.path, err)
		}
		m.shmid = id
		if !m.isExist {
			Ids().Register(m.shmid, m.path)
		}
	}
	log.Info(fmt.Sprintf("path=%s, shmid=%d, is_exist=%v", m.path, m.shmid, m.isExist))

	data, err := unix.SysvShmAttach(m.shmid, 0, 0)
	if err != nil {
		if err == unix.ENOMEM {
			return sop.NewError(sop.Oom, m.path, err)
		}
		return sop.NewError(sop.SysErr, m.path, err)
	}
	m.attached = data

	// The kernel records the exact size passed to shmget; for an existing
	// segment that is authoritative over anything recomputed from the file.
	var desc unix.SysvShmDesc
	if _, err := unix.SysvShmCtl(m.shmid, unix.IPC_STAT, &desc); err != nil {
		m.Detach()
		return sop.NewError(sop.SysErr, m.path, err)
	}
	m.size = int64(desc.Segsz)

	if m.isExist && !m.checkPath() {
		return sop.NewError(sop.KeyConflict, m.path, nil)
	}
	m.info = fmt.Sprintf("SharedMemory shmid=%d size=%d region=[%p,%p)",
		m.shmid, m.size, m.Address(), unsafe.Add(m.Address(), m.size))
	log.Info(fmt.Sprintf("shared memory init succ. path=%s, info=%s", m.path, m.info))
	return nil
}

// checkPath guards against two distinct paths colliding on the same ftok
// key: the meta block of a genuine existing segment records the path it
// was created for, and it must match the one being requested.
func (m *SysVMemory) checkPath() bool {
	if m.attached == nil {
		return false
	}
	meta := (*wire.MetaBlock)(unsafe.Pointer(&m.attached[0]))
	if meta.HasNamespaceMarker() && meta.PathString() == m.path {
		return true
	}
	log.Warn(fmt.Sprintf("shm key conflict, shm file:%s, load file:%s", meta.PathString(), m.path))
	return false
}

// Detach unmaps the segment from this process without removing it.
func (m *SysVMemory) Detach() {
	if m.attached != nil {
		unix.SysvShmDetach(m.attached)
		m.attached = nil
	}
}

// Remove detaches and marks the segment for kernel removal; the kernel
// reclaims it once the last attached process detaches. The IdManager entry
// is dropped either way.
func (m *SysVMemory) Remove() bool {
	m.Detach()
	if !RemoveByID(m.shmid) {
		log.Warn(fmt.Sprintf("remove shm failed. path=%s, shmid=%d", m.path, m.shmid))
		return false
	}
	log.Info(fmt.Sprintf("remove shm succ. path=%s, shmid=%d", m.path, m.shmid))
	return true
}

// IsExist reports whether Init attached an already-existing segment.
func (m *SysVMemory) IsExist() bool { return m.isExist }

// Address returns the attached window's base address, or nil when detached.
func (m *SysVMemory) Address() unsafe.Pointer {
	if m.attached == nil {
		return nil
	}
	return unsafe.Pointer(&m.attached[0])
}

// Size returns the segment size the kernel records for this shmid.
func (m *SysVMemory) Size() int64 { return m.size }

// ID returns the kernel shmid.
func (m *SysVMemory) ID() int { return m.shmid }

// Info returns a human-readable description of the backing.
func (m *SysVMemory) Info() string { return m.info }

// RemoveByID marks shmid for kernel removal and deregisters it.
func RemoveByID(shmid int) bool {
	if _, err := unix.SysvShmCtl(shmid, unix.IPC_RMID, nil); err != nil {
		if err != unix.EINVAL && err != unix.EIDRM {
			return false
		}
	}
	Ids().DeRegister(shmid)
	return true
}

// Scan walks the kernel's segment table and returns every segment whose
// meta block carries this system's namespace marker. With unattachedOnly
// set, only segments no process currently has attached are returned; the
// administrative Clear sweeps use that to avoid removing segments still in
// use elsewhere (liveness is the kernel's attach count, not a lock).
func Scan(unattachedOnly bool) ([]Info, error) {
	var desc unix.SysvShmDesc
	maxIndex, err := unix.SysvShmCtl(0, unix.SHM_INFO, &desc)
	if err != nil {
		return nil, sop.NewError(sop.SysErr, "shm_info", err)
	}
	var candidates []int
	for i := 0; i <= maxIndex; i++ {
		id, err := unix.SysvShmCtl(i, unix.SHM_STAT, &desc)
		if err != nil || id <= 0 {
			continue
		}
		if unattachedOnly && desc.Nattch != 0 {
			continue
		}
		candidates = append(candidates, id)
	}

	var infos []Info
	for _, id := range candidates {
		data, err := unix.SysvShmAttach(id, 0, unix.SHM_RDONLY)
		if err != nil {
			log.Warn(fmt.Sprintf("attach shm failed, shmid:%d, errno=%v", id, err))
			continue
		}
		meta := (*wire.MetaBlock)(unsafe.Pointer(&data[0]))
		if len(data) >= int(unsafe.Sizeof(wire.MetaBlock{})) && meta.HasNamespaceMarker() {
			infos = append(infos, Info{
				Path:  meta.PathString(),
				ID:    id,
				Group: meta.GroupString(),
				AppID: meta.AppID,
			})
		} else {
			log.Warn(fmt.Sprintf("unknown shm, not created by this system, shmid:%d", id))
		}
		unix.SysvShmDetach(data)
	}
	return infos, nil
}
