// Package manager is the process-wide registry of shared containers: it
// deduplicates registration by container file path, gates retrieval on
// load status and dynamic type, verifies container files before first
// load, and runs the background reaper that destroys segments once their
// last holder lets go. A Manager instance binds a (group, app id) pair and
// holds the local references for that group; the registry, verifier map
// and reaper are shared by all instances in the process.
package manager

import (
	"fmt"
	log "log/slog"
	"path/filepath"
	"sync"

	"github.com/sharedcode/shm"
	"github.com/sharedcode/shm/shared"
)

// Status is the lifecycle state of a registered container.
type Status int

const (
	// StatusLoading is set from registration until Init/Load complete.
	StatusLoading Status = iota
	// StatusReady means the container is attached, checked and queryable.
	StatusReady
	// StatusDeleting marks an entry whose owning Manager closed; the
	// reaper removes the registry entry without destroying the segment.
	StatusDeleting
	// StatusReleasing marks an entry whose owning Manager released it; the
	// reaper destroys the segment once only the registry holds it.
	StatusReleasing
)

// entry is one registered container. refs counts its holders: the registry
// itself, the owning Manager's local set, and every outstanding Handle.
type entry struct {
	c      shared.Common
	status Status
	refs   int
}

var (
	gmu        sync.RWMutex
	containers = make(map[string]*entry)

	// initMu serializes every Container.Init body across the process, so
	// racing creations over potentially shared backing memory never
	// interleave allocator resets.
	initMu sync.Mutex
)

// Manager holds the local references for one (group, appID) pair. Its
// methods are safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	group string
	appID int32
	// id tells apart multiple Manager instances sharing one group in logs
	// and diagnostics.
	id    sop.LockToken
	opts  shared.Options
	local map[string]struct{}
}

// New creates a Manager with the default backing (SysV segments, label
// integrity checks) and starts the process-wide reaper if it is not
// already running.
func New(group string, appID int32) *Manager {
	return NewWithOptions(group, appID, shared.Options{})
}

// NewWithOptions is New with an explicit backing/verifier selection, used
// by tests (heap backing) and embedders wanting MD5 integrity rechecks.
func NewWithOptions(group string, appID int32, opts shared.Options) *Manager {
	startReaper()
	m := &Manager{
		group: group,
		appID: appID,
		id:    sop.NewLockToken(),
		opts:  opts,
		local: make(map[string]struct{}),
	}
	log.Debug(fmt.Sprintf("manager created, group=[%s], app_id=%d, instance=%s",
		group, appID, m.id))
	return m
}

// Handle is a counted reference to a Ready container. Close releases it;
// the segment is only destroyed once every Handle is closed and the owning
// Manager has released the path.
type Handle[C any] struct {
	path      string
	c         *shared.Container[C]
	closeOnce sync.Once
}

// Ptr returns the in-region container.
func (h *Handle[C]) Ptr() *C { return h.c.Ptr() }

// Container returns the typed lifecycle wrapper, e.g. for Export.
func (h *Handle[C]) Container() *shared.Container[C] { return h.c }

// Close drops this handle's reference. Idempotent.
func (h *Handle[C]) Close() {
	h.closeOnce.Do(func() {
		gmu.Lock()
		defer gmu.Unlock()
		if e, ok := containers[h.path]; ok {
			e.refs--
		}
	})
}

// Register constructs, initializes and (when the segment is fresh) loads
// the container for path, publishing it in the registry under
// StatusLoading for the duration and StatusReady on success. A second
// registration of the same path fails with AlreadyRegistered. An Oom from
// Init triggers one ClearUnregistered sweep of orphan segments and a
// single retry. Panics on the construction path are recovered and mapped
// to Exception, with the partially inserted entry cleaned up.
func Register[C any](m *Manager, path string) (_ *Handle[C], err error) {
	abs, err := absolutePath(path)
	if err != nil {
		return nil, err
	}
	c := shared.New[C](abs, m.group, m.appID, m.opts)
	if aerr := m.addLoading(abs, c); aerr != nil {
		return nil, aerr
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn(fmt.Sprintf(
				"exception happened when creating shared container, file_path=[%s] msg=[%v]", abs, r))
			c.Destroy()
			m.deleteLoading(abs)
			err = sop.NewError(sop.Exception, abs, fmt.Errorf("%v", r))
		}
	}()

	initMu.Lock()
	ierr := c.Init()
	initMu.Unlock()
	if ierr != nil && sop.CodeOf(ierr) == sop.Oom {
		// Reclaim orphan segments left by crashed processes, then retry.
		ClearUnregistered(m.appID)
		initMu.Lock()
		ierr = c.Init()
		initMu.Unlock()
	}
	if ierr != nil {
		m.deleteLoading(abs)
		log.Warn(fmt.Sprintf("container init failed, file path=[%s], details: %v", abs, ierr))
		return nil, ierr
	}

	if !c.IsExist() {
		if verr := verifyOneFile(abs); verr != nil {
			c.Destroy()
			m.deleteLoading(abs)
			return nil, verr
		}
		if lerr := c.Load(); lerr != nil {
			log.Warn(fmt.Sprintf("shared container load failed, file path=[%s]", abs))
			c.Destroy()
			m.deleteLoading(abs)
			return nil, lerr
		}
	}

	h, uerr := acquire[C](abs, true)
	if uerr != nil {
		return nil, uerr
	}
	log.Info(fmt.Sprintf("register success, path=[%s], container size=%d", abs, c.BodySize()))
	return h, nil
}

// GetContainerPtr returns a new Handle on an already-registered, Ready
// container. It fails with NotRegistered for unknown paths, WrongStatus
// while the container is still loading or being torn down, and WrongType
// when C does not match the registered instantiation.
func GetContainerPtr[C any](path string) (*Handle[C], error) {
	abs, err := absolutePath(path)
	if err != nil {
		return nil, err
	}
	return acquire[C](abs, false)
}

// acquire looks up abs under the write lock, optionally transitions a
// Loading entry to Ready (Register's publish step), type-checks and hands
// out a counted Handle.
func acquire[C any](abs string, publishReady bool) (*Handle[C], error) {
	gmu.Lock()
	defer gmu.Unlock()
	e, ok := containers[abs]
	if !ok {
		return nil, sop.NewError(sop.NotRegistered, abs, nil)
	}
	if publishReady {
		e.status = StatusReady
	}
	if e.status != StatusReady {
		return nil, sop.NewError(sop.WrongStatus, abs, nil)
	}
	typed, ok := e.c.(*shared.Container[C])
	if !ok {
		log.Warn(fmt.Sprintf("get container ptr with err type, file path=[%s]", abs))
		return nil, sop.NewError(sop.WrongType, abs, nil)
	}
	e.refs++
	return &Handle[C]{path: abs, c: typed}, nil
}

// addLoading publishes (abs, StatusLoading) in the registry and records
// the path in this Manager's local set. The entry starts with two
// references: the registry's and this Manager's.
func (m *Manager) addLoading(abs string, c shared.Common) error {
	gmu.Lock()
	if _, ok := containers[abs]; ok {
		gmu.Unlock()
		log.Warn(fmt.Sprintf("container of file=[%s] has registered", abs))
		return sop.NewError(sop.AlreadyRegistered, abs, nil)
	}
	containers[abs] = &entry{c: c, status: StatusLoading, refs: 2}
	gmu.Unlock()

	m.mu.Lock()
	m.local[abs] = struct{}{}
	m.mu.Unlock()
	return nil
}

// deleteLoading unwinds a failed registration: destroy the container,
// erase the registry entry and forget the local reference.
func (m *Manager) deleteLoading(abs string) {
	gmu.Lock()
	if e, ok := containers[abs]; ok {
		e.c.Destroy()
		delete(containers, abs)
	}
	gmu.Unlock()

	m.mu.Lock()
	delete(m.local, abs)
	m.mu.Unlock()
}

// Release marks every container this Manager registered as Releasing and
// drops the local references. The reaper destroys each one once no Handle
// remains outstanding.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.Info(fmt.Sprintf("Release called, group id=[%s], instance=%s, container num=[%d]",
		m.group, m.id, len(m.local)))
	gmu.Lock()
	for abs := range m.local {
		if e, ok := containers[abs]; ok {
			e.status = StatusReleasing
			e.refs--
		}
	}
	gmu.Unlock()
	m.local = make(map[string]struct{})
}

// Close is the Manager's destructor path: every locally held container is
// marked Deleting, which makes the reaper drop the registry entry WITHOUT
// destroying the segment. The segment deliberately outlives the process's
// bookkeeping so other processes attached to it keep working; use Release
// (or the Clear sweeps) to actually remove segments.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	gmu.Lock()
	for abs := range m.local {
		if e, ok := containers[abs]; ok {
			e.status = StatusDeleting
			e.refs--
		}
	}
	gmu.Unlock()
	m.local = make(map[string]struct{})
}

// absolutePath resolves path for use as a registry key. An empty path is
// rejected up front; relative paths are made absolute against the working
// directory.
func absolutePath(path string) (string, error) {
	if path == "" {
		log.Warn("get absolute path err, file path is empty")
		return "", sop.NewError(sop.FileNoExist, path, nil)
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		log.Warn(fmt.Sprintf("get absolute path err, file_path=[%s]", path))
		return "", sop.NewError(sop.FileNoExist, path, err)
	}
	return abs, nil
}
