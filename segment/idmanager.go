package segment

import (
	"fmt"
	log "log/slog"
	"sync"
)

// IdManager is the process-wide bidirectional registry mapping container
// file paths to kernel shmids. It lets a second Init of the same path in
// this process attach the existing segment instead of racing a second
// create, and it is how the SysV backend learns about segments created by
// earlier incarnations of this process.
type IdManager struct {
	mu       sync.Mutex
	idToPath map[int]string
	pathToID map[string]int
}

var (
	idsOnce sync.Once
	ids     *IdManager
)

// Ids returns the process-wide IdManager, seeding it on first use from a
// scan of the kernel's segment table (every segment carrying the namespace
// marker gets recorded). The scan is deliberately lazy rather than an
// init-before-main hook, so tests can run without touching the kernel
// table until a SysV backing is actually requested.
func Ids() *IdManager {
	idsOnce.Do(func() {
		ids = &IdManager{
			idToPath: make(map[int]string),
			pathToID: make(map[string]int),
		}
		infos, err := Scan(false)
		if err != nil {
			log.Warn(fmt.Sprintf("IdManager seed scan failed: %v", err))
			return
		}
		for _, info := range infos {
			ids.idToPath[info.ID] = info.Path
			ids.pathToID[info.Path] = info.ID
			log.Info(fmt.Sprintf("init name2id. %s,%d", info.Path, info.ID))
		}
		log.Info("IdManager init done.")
	})
	return ids
}

// Register records a freshly created segment. Returns false (and logs) if
// either the id or the path is already present.
func (im *IdManager) Register(id int, path string) bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	if _, ok := im.idToPath[id]; ok {
		log.Warn(fmt.Sprintf("duplicated share memory in IdManager. id=%d, name=%s", id, path))
		return false
	}
	if _, ok := im.pathToID[path]; ok {
		log.Warn(fmt.Sprintf("duplicated share memory in IdManager. id=%d, name=%s", id, path))
		return false
	}
	im.idToPath[id] = path
	im.pathToID[path] = id
	log.Debug(fmt.Sprintf("Register. id=%d, name=%s", id, path))
	return true
}

// DeRegister drops a segment from both maps. Returns false if id was not
// registered.
func (im *IdManager) DeRegister(id int) bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	path, ok := im.idToPath[id]
	if !ok {
		return false
	}
	delete(im.idToPath, id)
	delete(im.pathToID, path)
	log.Debug(fmt.Sprintf("DeRegister. id=%d, name=%s", id, path))
	return true
}

// GetID returns the shmid registered for path, if any.
func (im *IdManager) GetID(path string) (int, bool) {
	im.mu.Lock()
	defer im.mu.Unlock()
	id, ok := im.pathToID[path]
	return id, ok
}
