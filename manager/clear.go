package manager

import (
	log "log/slog"

	"github.com/sharedcode/shm"
	"github.com/sharedcode/shm/segment"
)

// The Clear sweeps enumerate kernel segments carrying this system's
// namespace marker and remove the ones the caller no longer wants. They
// only consider segments no process has attached (the kernel's attach
// count is the liveness signal), so a sweep in one process cannot yank a
// segment out from under another that is actively using it.

// ClearByFileList removes every unattached segment for appID whose path is
// not in reserveFiles.
func ClearByFileList(reserveFiles []string, appID int32) error {
	reserve := make(map[string]struct{}, len(reserveFiles))
	for _, path := range reserveFiles {
		abs, err := absolutePath(path)
		if err != nil {
			return err
		}
		reserve[abs] = struct{}{}
	}
	infos, err := segment.Scan(true)
	if err != nil {
		log.Warn("get current segment table err!")
		return sop.NewError(sop.SysErr, "scan", err)
	}
	for _, info := range infos {
		if info.AppID != appID {
			continue
		}
		if _, ok := reserve[info.Path]; ok {
			continue
		}
		forget(info.Path)
		segment.RemoveByID(info.ID)
	}
	log.Info("ClearByFileList success!")
	return nil
}

// ClearByGroup removes every unattached segment for appID whose group tag
// is not in reserveGroups.
func ClearByGroup(reserveGroups []string, appID int32) error {
	reserve := make(map[string]struct{}, len(reserveGroups))
	for _, group := range reserveGroups {
		reserve[group] = struct{}{}
	}
	infos, err := segment.Scan(true)
	if err != nil {
		log.Warn("get current segment table err!")
		return sop.NewError(sop.SysErr, "scan", err)
	}
	for _, info := range infos {
		if info.AppID != appID {
			continue
		}
		if _, ok := reserve[info.Group]; ok {
			continue
		}
		forget(info.Path)
		segment.RemoveByID(info.ID)
	}
	log.Info("ClearByGroup success!")
	return nil
}

// ClearUnregistered removes every unattached segment for appID whose path
// is not currently in the process-wide registry. Register invokes this as
// the recovery step when Init runs out of memory, reclaiming segments
// orphaned by crashed processes.
func ClearUnregistered(appID int32) error {
	infos, err := segment.Scan(true)
	if err != nil {
		log.Info("system err, segment scan failed")
		return sop.NewError(sop.SysErr, "scan", err)
	}
	gmu.Lock()
	defer gmu.Unlock()
	for _, info := range infos {
		if info.AppID != appID {
			continue
		}
		if _, ok := containers[info.Path]; ok {
			continue
		}
		delete(verified, info.Path)
		segment.RemoveByID(info.ID)
	}
	log.Info("ClearUnregistered success!")
	return nil
}

// forget drops verification state for a path about to lose its segment.
func forget(path string) {
	gmu.Lock()
	delete(verified, path)
	gmu.Unlock()
}
