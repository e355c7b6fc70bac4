package manager

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/sharedcode/shm"
	"github.com/sharedcode/shm/segment"
)

// VerifyFunc checks one container file against its expected digest.
type VerifyFunc func(path, digest string) bool

// checkEntry is the configured verifier for one path.
type checkEntry struct {
	digest string
	fn     VerifyFunc
}

var (
	// checks and verified are guarded by gmu together with the registry,
	// so the reaper can purge all three consistently.
	checks   = make(map[string]checkEntry)
	verified = make(map[string]struct{})
)

// VerifyFileMD5 computes the hex MD5 of the file at path and compares it
// to digest (case-insensitively). It is the default VerifyFunc.
func VerifyFileMD5(path, digest string) bool {
	f, err := os.Open(path)
	if err != nil {
		log.Warn(fmt.Sprintf("calculate md5 failed, file=[%s]", path))
		return false
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		log.Warn(fmt.Sprintf("calculate md5 failed, file=[%s]", path))
		return false
	}
	sum := hex.EncodeToString(h.Sum(nil))
	if strings.EqualFold(sum, digest) {
		return true
	}
	log.Warn(fmt.Sprintf(
		"check md5 failed, md5 unmatch, file=[%s] verify_data=[%s] calculate result=[%s]",
		path, digest, sum))
	return false
}

// VerifyFiles records (path, digest) verifiers for later registrations and
// eagerly verifies, in parallel, every listed file that is not already
// backing a live segment for appID. Workers are capped at half the CPUs
// and stop cooperatively on the first mismatch, which surfaces as
// FileCheckFail. Paths that pass enter the verified set and skip the
// per-registration check.
func VerifyFiles(verifyData map[string]string, fn VerifyFunc, appID int32) error {
	if fn == nil {
		fn = VerifyFileMD5
	}
	diff := make(map[string]string, len(verifyData))
	gmu.Lock()
	for path, digest := range verifyData {
		abs, err := absolutePath(path)
		if err != nil {
			gmu.Unlock()
			return err
		}
		// The same data may be reloaded under a new image; force a recheck.
		delete(verified, abs)
		checks[abs] = checkEntry{digest: digest, fn: fn}
		diff[abs] = digest
	}
	gmu.Unlock()

	infos, err := segment.Scan(false)
	if err != nil {
		log.Warn("get current segment table err!")
		return sop.NewError(sop.SysErr, "scan", err)
	}
	for _, info := range infos {
		if info.AppID == appID {
			delete(diff, info.Path)
		}
	}
	if len(diff) == 0 {
		return nil
	}

	threads := runtime.NumCPU() / 2
	if threads < 1 {
		threads = 1
	}
	if threads > len(diff) {
		threads = len(diff)
	}
	log.Debug(fmt.Sprintf("verify files cpu_num[%d] thread_num[%d]", runtime.NumCPU(), threads))

	tr := sop.NewTaskRunner(context.Background(), threads)
	var stop atomic.Bool
	for path, digest := range diff {
		tr.Go(func() error {
			if stop.Load() {
				return nil
			}
			log.Info(fmt.Sprintf("verify file [%s], digest [%s]", path, digest))
			if !fn(path, digest) {
				stop.Store(true)
				return sop.NewError(sop.FileCheckFail, path, nil)
			}
			gmu.Lock()
			verified[path] = struct{}{}
			gmu.Unlock()
			return nil
		})
	}
	return tr.Wait()
}

// verifyOneFile runs the configured verifier for abs unless the path has
// already passed this lifetime or has no verifier configured. Called by
// Register before loading a fresh (non-existing) segment.
func verifyOneFile(abs string) error {
	gmu.RLock()
	if _, ok := verified[abs]; ok {
		gmu.RUnlock()
		return nil
	}
	ce, ok := checks[abs]
	gmu.RUnlock()
	if !ok {
		return nil
	}
	if ce.fn(abs, ce.digest) {
		gmu.Lock()
		verified[abs] = struct{}{}
		gmu.Unlock()
		return nil
	}
	log.Warn(fmt.Sprintf("verify failed, file path=[%s]", abs))
	return sop.NewError(sop.FileCheckFail, abs, nil)
}
