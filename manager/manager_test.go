package manager

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sharedcode/shm"
	"github.com/sharedcode/shm/container"
	"github.com/sharedcode/shm/segment"
	"github.com/sharedcode/shm/shared"
	"github.com/sharedcode/shm/wire"
)

type u64Vector = container.Vector[uint64, uint64]

func TestMain(m *testing.M) {
	// Speed the reaper up for the end-to-end reap test; most tests drive
	// reapOnce directly instead of sleeping.
	reaperInterval = 20 * time.Millisecond
	code := m.Run()
	Shutdown()
	os.Exit(code)
}

func heapManager(group string, appID int32) *Manager {
	return NewWithOptions(group, appID, shared.Options{NewMemory: segment.NewHeap})
}

func dumpVectorFile(t *testing.T, name string, data []uint64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := wire.DumpVector[uint64, uint64](f, data, sop.MakeFlags(sop.SCVersion)); err != nil {
		t.Fatalf("DumpVector: %v", err)
	}
	return path
}

func TestRegisterAndGet(t *testing.T) {
	m := heapManager("grp", 1)
	path := dumpVectorFile(t, "vec.bin", []uint64{1, 2, 3})

	h, err := Register[u64Vector](m, path)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if h.Ptr().Len() != 3 || h.Ptr().Get(2) != 3 {
		t.Fatalf("registered contents wrong")
	}

	g, err := GetContainerPtr[u64Vector](path)
	if err != nil {
		t.Fatalf("GetContainerPtr: %v", err)
	}
	if g.Ptr() != h.Ptr() {
		t.Fatalf("both handles must point at the same region")
	}
	h.Close()
	g.Close()
	m.Release()
	reapOnce()
}

func TestRegisterDuplicatePath(t *testing.T) {
	m := heapManager("grp", 1)
	path := dumpVectorFile(t, "vec.bin", []uint64{1})

	h, err := Register[u64Vector](m, path)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := Register[u64Vector](m, path); sop.CodeOf(err) != sop.AlreadyRegistered {
		t.Fatalf("want AlreadyRegistered, got %v", err)
	}
	h.Close()
	m.Release()
	reapOnce()
}

func TestRegisterMissingFile(t *testing.T) {
	m := heapManager("grp", 1)
	path := filepath.Join(t.TempDir(), "absent.bin")
	if _, err := Register[u64Vector](m, path); sop.CodeOf(err) != sop.FileNoExist {
		t.Fatalf("want FileNoExist, got %v", err)
	}
	if _, err := GetContainerPtr[u64Vector](path); sop.CodeOf(err) != sop.NotRegistered {
		t.Fatalf("failed registration must not leave an entry, got %v", err)
	}
}

func TestGetWrongType(t *testing.T) {
	m := heapManager("grp", 1)
	path := dumpVectorFile(t, "vec.bin", []uint64{1, 2})

	h, err := Register[u64Vector](m, path)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := GetContainerPtr[container.Vector[uint32, uint64]](path); sop.CodeOf(err) != sop.WrongType {
		t.Fatalf("want WrongType, got %v", err)
	}
	h.Close()
	m.Release()
	reapOnce()
}

func TestGetUnregistered(t *testing.T) {
	if _, err := GetContainerPtr[u64Vector]("/no/such/path.bin"); sop.CodeOf(err) != sop.NotRegistered {
		t.Fatalf("want NotRegistered, got %v", err)
	}
}

func TestGetDuringLoadingReportsWrongStatus(t *testing.T) {
	m := heapManager("grp", 1)
	path := dumpVectorFile(t, "vec.bin", []uint64{1})

	h, err := Register[u64Vector](m, path)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	abs, _ := absolutePath(path)
	gmu.Lock()
	containers[abs].status = StatusLoading
	gmu.Unlock()
	if _, err := GetContainerPtr[u64Vector](path); sop.CodeOf(err) != sop.WrongStatus {
		t.Fatalf("want WrongStatus while loading, got %v", err)
	}
	gmu.Lock()
	containers[abs].status = StatusReady
	gmu.Unlock()
	h.Close()
	m.Release()
	reapOnce()
}

func TestReleaseDefersUntilHandlesClose(t *testing.T) {
	m := heapManager("grp", 1)
	path := dumpVectorFile(t, "vec.bin", []uint64{9})
	abs, _ := absolutePath(path)

	h, err := Register[u64Vector](m, path)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	m.Release()
	reapOnce()
	gmu.RLock()
	_, stillThere := containers[abs]
	gmu.RUnlock()
	if !stillThere {
		t.Fatalf("entry must survive the reaper while a handle is outstanding")
	}

	h.Close()
	reapOnce()
	gmu.RLock()
	_, stillThere = containers[abs]
	gmu.RUnlock()
	if stillThere {
		t.Fatalf("entry must be reaped once the last handle closes")
	}
	if _, err := GetContainerPtr[u64Vector](path); sop.CodeOf(err) != sop.NotRegistered {
		t.Fatalf("want NotRegistered after reap, got %v", err)
	}
}

func TestReaperBackgroundTicks(t *testing.T) {
	m := heapManager("grp", 1)
	path := dumpVectorFile(t, "vec.bin", []uint64{4, 5})
	abs, _ := absolutePath(path)

	h, err := Register[u64Vector](m, path)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	h.Close()
	m.Release()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		gmu.RLock()
		_, stillThere := containers[abs]
		gmu.RUnlock()
		if !stillThere {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("reaper did not destroy the released container within two seconds")
}

func TestCloseDropsEntriesWithoutDestroy(t *testing.T) {
	m := heapManager("grp", 1)
	path := dumpVectorFile(t, "vec.bin", []uint64{6})
	abs, _ := absolutePath(path)

	h, err := Register[u64Vector](m, path)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	// The region must stay addressable through the handle even after the
	// owning manager's bookkeeping is gone.
	m.Close()
	reapOnce()
	gmu.RLock()
	_, stillThere := containers[abs]
	gmu.RUnlock()
	if stillThere {
		t.Fatalf("Deleting entries must be dropped by the reaper")
	}
	if h.Ptr().Get(0) != 6 {
		t.Fatalf("region must outlive the manager's bookkeeping")
	}
	h.Close()
}

func fileMD5(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func TestVerifyFilesPassAndFail(t *testing.T) {
	path := dumpVectorFile(t, "vec.bin", []uint64{1, 2, 3})

	if err := VerifyFiles(map[string]string{path: fileMD5(t, path)}, nil, 1); err != nil {
		t.Fatalf("VerifyFiles with the correct digest: %v", err)
	}
	err := VerifyFiles(map[string]string{path: "00000000000000000000000000000000"}, nil, 1)
	if sop.CodeOf(err) != sop.FileCheckFail {
		t.Fatalf("want FileCheckFail for a wrong digest, got %v", err)
	}
}

func TestRegisterHonorsConfiguredVerifier(t *testing.T) {
	m := heapManager("grp", 1)
	path := dumpVectorFile(t, "vec.bin", []uint64{1, 2, 3})

	// Configure a digest that cannot match; eager verification fails, and
	// the per-registration recheck must then block Register too.
	if err := VerifyFiles(map[string]string{path: "ffffffffffffffffffffffffffffffff"}, nil, 1); sop.CodeOf(err) != sop.FileCheckFail {
		t.Fatalf("want eager FileCheckFail, got %v", err)
	}
	if _, err := Register[u64Vector](m, path); sop.CodeOf(err) != sop.FileCheckFail {
		t.Fatalf("want Register blocked by FileCheckFail, got %v", err)
	}

	// Correct the digest; registration now passes.
	if err := VerifyFiles(map[string]string{path: fileMD5(t, path)}, nil, 1); err != nil {
		t.Fatalf("VerifyFiles: %v", err)
	}
	h, err := Register[u64Vector](m, path)
	if err != nil {
		t.Fatalf("Register after fixing the digest: %v", err)
	}
	h.Close()
	m.Release()
	reapOnce()
}

func TestVerifyFileMD5(t *testing.T) {
	path := dumpVectorFile(t, "vec.bin", []uint64{42})
	if !VerifyFileMD5(path, fileMD5(t, path)) {
		t.Fatalf("correct digest must verify")
	}
	if VerifyFileMD5(path, "deadbeefdeadbeefdeadbeefdeadbeef") {
		t.Fatalf("wrong digest must fail")
	}
	if VerifyFileMD5(filepath.Join(t.TempDir(), "absent"), "00") {
		t.Fatalf("missing file must fail")
	}
}
