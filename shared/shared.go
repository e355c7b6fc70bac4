// Package shared binds the arena, container, wire and segment packages
// into the per-container lifecycle: a Container[C] owns one memory backing,
// sub-allocates the meta block, the embedded file-header copy and the
// container region inside it, and walks the state machine
//
//	Fresh --Init--> (exists && check ok) --> Ready
//	              \-> constructed --Load--> checked --> Ready
//	Ready --Destroy--> removed
//
// so that the first process to Init a path constructs and loads the
// region, and every later process (or later Init in this process) attaches
// and revalidates without reading the file at all.
package shared

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"math"
	"os"
	"unsafe"

	"github.com/sethvargo/go-retry"

	"github.com/sharedcode/shm"
	"github.com/sharedcode/shm/arena"
	"github.com/sharedcode/shm/segment"
	"github.com/sharedcode/shm/wire"
)

// Options selects the integrity verifier and memory backing a container is
// built with. The zero value means LabelVerifier over a SysV segment, the
// production configuration.
type Options struct {
	Verifier  wire.Verifier
	NewMemory segment.Factory
}

func (o Options) withDefaults() Options {
	if o.Verifier == nil {
		o.Verifier = wire.LabelVerifier{}
	}
	if o.NewMemory == nil {
		o.NewMemory = segment.NewSysV
	}
	return o
}

// Common is the type-erased view of a Container[C]; the manager package's
// registry holds containers through it and recovers the typed form by
// assertion.
type Common interface {
	Init() error
	Load() error
	Destroy()
	Export(w io.Writer) error
	IsExist() bool
	Path() string
	Group() string
	BodySize() uint64
}

// Container manages one shared container of type C bound to one file path.
// It is not safe for concurrent use during Init/Load/Destroy; the manager
// package serializes those. Once Ready, the underlying *C is read-only and
// safe to share freely.
type Container[C any] struct {
	path    string
	group   string
	appID   int32
	opts    Options
	mem     segment.Memory
	alloc   *arena.Arena
	meta    *wire.MetaBlock
	hdr     *wire.FileHeader
	ptr     *C
	isExist bool
	ready   bool
}

// New creates an unbound Container for path; nothing is attached until
// Init is called.
func New[C any](path, group string, appID int32, opts Options) *Container[C] {
	return &Container[C]{path: path, group: group, appID: appID, opts: opts.withDefaults()}
}

// fixedOverhead is the byte count of the per-segment preamble: the meta
// block plus the embedded file-header copy, each 8-byte aligned exactly as
// the arena will reserve them.
func fixedOverhead() int64 {
	return arena.Align8(int64(unsafe.Sizeof(wire.MetaBlock{}))) +
		arena.Align8(int64(unsafe.Sizeof(wire.FileHeader{})))
}

// Init acquires the memory backing and sub-allocates the preamble and
// container region. If the backing already existed and its meta, type
// hash, version and integrity state all check out, the container is Ready
// with no file read. Otherwise the allocator is reset and fresh meta,
// header and container slots are placement-constructed, leaving the
// container waiting for Load.
func (c *Container[C]) Init() error {
	c.mem = c.opts.NewMemory(c.path, c.appID)
	if err := c.mem.Init(fixedOverhead()); err != nil {
		return err
	}
	c.alloc = arena.New(c.mem.Address(), c.mem.Size())

	if c.mem.IsExist() {
		if err := c.reserveLayout(); err != nil {
			c.Destroy()
			return sop.NewError(sop.AllocFail, c.path, err)
		}
		if c.check(false) {
			c.isExist = true
			c.ready = true
			log.Info(fmt.Sprintf("shm already exist. name=%s, shmid=%d, bytes=%d",
				c.path, c.mem.ID(), c.mem.Size()))
			return nil
		}
		log.Warn(fmt.Sprintf("shm already exist but check fail. name=%s", c.path))
	}

	// Backing is fresh, or existed with stale/foreign contents: re-layout
	// from scratch and let Load fill the container region.
	c.alloc.Reset()
	name, hash := wire.TypeIdentity[C]()
	meta, err := arena.Construct[wire.MetaBlock](c.alloc, func(m *wire.MetaBlock) {
		wire.InitMeta(m, c.path, c.group, c.appID, name, hash, sop.MakeFlags(sop.SCVersion))
	})
	if err != nil {
		c.Destroy()
		return sop.NewError(sop.AllocFail, c.path, err)
	}
	c.meta = meta
	hdr, err := arena.Reserve[wire.FileHeader](c.alloc)
	if err != nil {
		c.Destroy()
		return sop.NewError(sop.AllocFail, c.path, err)
	}
	*hdr = wire.FileHeader{}
	c.hdr = hdr
	ptr, err := arena.Reserve[C](c.alloc)
	if err != nil {
		c.Destroy()
		return sop.NewError(sop.AllocFail, c.path, err)
	}
	c.ptr = ptr
	log.Debug(fmt.Sprintf("construct meta&ptr mem used=%d, meta=%p, ptr=%p",
		c.alloc.Used(), unsafe.Pointer(c.meta), unsafe.Pointer(c.ptr)))
	return nil
}

// reserveLayout re-derives the preamble and container addresses on an
// existing backing without writing anything, so check can inspect what an
// earlier loader left behind.
func (c *Container[C]) reserveLayout() error {
	meta, err := arena.Reserve[wire.MetaBlock](c.alloc)
	if err != nil {
		return err
	}
	c.meta = meta
	hdr, err := arena.Reserve[wire.FileHeader](c.alloc)
	if err != nil {
		return err
	}
	c.hdr = hdr
	ptr, err := arena.Reserve[C](c.alloc)
	if err != nil {
		return err
	}
	c.ptr = ptr
	return nil
}

// check validates the region against its recorded identity: type hash,
// format version, strict region bounds (preamble plus declared body must
// end exactly at the backing's capacity) and the configured integrity
// verifier. In update mode the verifier stamps its label/checksum instead
// of comparing, which Load uses to publish a freshly read region.
func (c *Container[C]) check(update bool) bool {
	name, hash := wire.TypeIdentity[C]()
	if c.meta.TypeHash != hash {
		log.Warn(fmt.Sprintf("checked summary hash failed. %s NOT matches %s",
			name, c.meta.SummaryString()))
		return false
	}
	if sop.VersionOfFlags(c.meta.Flags) != sop.SCVersion {
		log.Warn(fmt.Sprintf("shared container version %d NOT matches %d",
			sop.SCVersion, sop.VersionOfFlags(c.meta.Flags)))
		return false
	}
	if c.hdr.BodySize > math.MaxInt64 {
		return false
	}
	length := int64(c.hdr.BodySize)
	if c.alloc.OutOfRange(c.mem.Address(), fixedOverhead()+length) {
		log.Warn("checked region out of range.")
		return false
	}
	return c.opts.Verifier.Check(unsafe.Pointer(c.ptr), length, c.meta, update)
}

// Load reads the container file's header into the reserved header slot and
// its body directly into the container region, then runs check in update
// mode to stamp the integrity state. Idempotent once the container is
// Ready; any failure destroys the backing so a later Init starts clean.
func (c *Container[C]) Load() error {
	if c.ready {
		log.Debug(fmt.Sprintf("no need load, use exist shm directly. name=%s", c.path))
		return nil
	}
	if c.ptr == nil {
		return sop.NewError(sop.LoadFail, c.path, nil)
	}
	// Transient read failures are retried; anything structural (missing
	// file, wrong type, size mismatch, short body) fails immediately.
	err := sop.Retry(context.Background(), func(context.Context) error {
		rerr := c.readFile()
		if rerr == nil {
			return nil
		}
		if errors.Is(rerr, wire.ErrTypeMismatch) || errors.Is(rerr, wire.ErrSizeMismatch) ||
			!sop.ShouldRetry(rerr) {
			return rerr
		}
		return retry.RetryableError(rerr)
	}, nil)
	if err != nil {
		log.Warn(fmt.Sprintf("load failed, remove shm. name=%s, details: %v", c.path, err))
		c.Destroy()
		return err
	}
	// Double check: container out of region range, or overlapped layout.
	if !c.check(true) {
		log.Warn(fmt.Sprintf("load end but checked fail, remove shm. name=%s", c.path))
		c.Destroy()
		return sop.NewError(sop.CheckFail, c.path, nil)
	}
	c.ready = true
	log.Info(fmt.Sprintf("file load succ. name=%s, shmid=%d, bytes=%d",
		c.path, c.mem.ID(), c.mem.Size()))
	return nil
}

func (c *Container[C]) readFile() error {
	f, err := os.Open(c.path)
	if err != nil {
		return sop.NewError(sop.FileNoExist, c.path, err)
	}
	defer f.Close()

	h, err := wire.ReadFileHeader(f)
	if err != nil {
		return sop.NewError(sop.ReadFail, c.path, err)
	}
	_, hash := wire.TypeIdentity[C]()
	if h.TypeHash != hash {
		return sop.NewError(sop.LoadFail, c.path, wire.ErrTypeMismatch)
	}
	if h.BodySize > math.MaxInt64 ||
		c.alloc.OutOfRange(c.mem.Address(), fixedOverhead()+int64(h.BodySize)) {
		return sop.NewError(sop.LoadFail, c.path, wire.ErrSizeMismatch)
	}
	*c.hdr = h
	body := unsafe.Slice((*byte)(unsafe.Pointer(c.ptr)), h.BodySize)
	if _, err := io.ReadFull(f, body); err != nil {
		return sop.NewError(sop.LoadFail, c.path, err)
	}
	return nil
}

// Destroy drops the meta pointer and asks the backing to remove itself.
// Safe to call repeatedly, including on a container that never finished
// Init.
func (c *Container[C]) Destroy() {
	c.meta = nil
	c.hdr = nil
	c.ptr = nil
	c.ready = false
	if c.mem != nil {
		c.mem.Remove()
	}
}

// Export writes the region back out in the container file format: the
// embedded file header followed by the container body bytes, exactly as a
// fresh Dump of the same contents would produce.
func (c *Container[C]) Export(w io.Writer) error {
	if !c.ready || c.ptr == nil {
		return sop.NewError(sop.WrongStatus, c.path, nil)
	}
	body := unsafe.Slice((*byte)(unsafe.Pointer(c.ptr)), c.hdr.BodySize)
	return wire.WriteBody(w, c.hdr.TypeHash, c.hdr.Flags, body)
}

// Ptr returns the in-region container, valid only once Ready.
func (c *Container[C]) Ptr() *C { return c.ptr }

// IsExist reports whether Init found a valid pre-existing region and
// skipped the file load.
func (c *Container[C]) IsExist() bool { return c.isExist }

// Path returns the container file path this container is bound to.
func (c *Container[C]) Path() string { return c.path }

// Group returns the lifecycle group tag.
func (c *Container[C]) Group() string { return c.group }

// BodySize returns the loaded container body's byte size.
func (c *Container[C]) BodySize() uint64 {
	if c.hdr == nil {
		return 0
	}
	return c.hdr.BodySize
}

// Memory exposes the underlying backing, for tests asserting attach dedup
// and region tightness.
func (c *Container[C]) Memory() segment.Memory { return c.mem }
