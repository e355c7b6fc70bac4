// Package wire implements the on-disk file format shared containers are
// published to and loaded from: a file header (body size, type hash,
// version flags) followed by the container body as a byte-for-byte image
// of its in-memory layout, plus the in-segment meta block that precedes
// every container region and carries its identity and integrity state.
//
// Dump builds each container once inside an owned, heap-backed scratch
// arena (never through the offset types in place, matching the rule that
// mutation only ever happens before publication), then writes the scratch
// arena's used bytes verbatim. Load reads a file's body directly into a
// caller-supplied destination window, which may be shared memory.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"reflect"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/sharedcode/shm/arena"
)

// namespaceTag is embedded in every MetaBlock's Summary so that a kernel
// segment scan (IdManager) can recognize segments belonging to this system
// without first attaching and parsing the full container body. Producers
// stamp it as a "levin::" prefix on the recorded type summary.
const namespaceTag = "levin"

// integrityLabelMagic is stamped into MetaBlock.Label by LabelVerifier on a
// successful first load, and checked on every subsequent attach.
const integrityLabelMagic uint64 = 0x123456789

var (
	ErrTypeMismatch  = errors.New("wire: type hash mismatch")
	ErrSizeMismatch  = errors.New("wire: declared body size does not match destination")
	ErrShortBody     = errors.New("wire: file body shorter than declared size")
	ErrNoMarker      = errors.New("wire: meta summary missing namespace marker")
	ErrPathMismatch  = errors.New("wire: meta path does not match requested path")
	ErrOutOfCapacity = errors.New("wire: container exceeded scratch arena capacity limits")
)

// FileHeader is the fixed 24-byte preamble written at file offset 0.
type FileHeader struct {
	BodySize uint64
	TypeHash uint64
	Flags    uint64
}

// FileHeaderSize is the exact on-disk size of FileHeader.
const FileHeaderSize = 24

func (h FileHeader) writeTo(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, h)
}

// ReadFileHeader reads and returns the FileHeader from the start of r.
func ReadFileHeader(r io.Reader) (FileHeader, error) {
	var h FileHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return FileHeader{}, err
	}
	return h, nil
}

// TypeIdentity returns the stable name and 64-bit hash used to identify a
// container's Go instantiation (e.g. "container.HashMap[uint32,string]").
// Distinct type parameterizations hash differently, mirroring how every
// C++ template instantiation was itself a distinct RTTI type.
func TypeIdentity[C any]() (name string, hash uint64) {
	name = reflect.TypeFor[C]().String()
	return name, xxhash.Sum64String(name)
}

// summaryFor formats the MetaBlock summary string for a container type,
// always containing namespaceTag.
func summaryFor(typeName string) string {
	return fmt.Sprintf("%s::%s", namespaceTag, typeName)
}

// scratchArena backs an Arena with a growable owned byte slice, doubling
// capacity and retrying whenever build reports ErrOutOfMemory. Used only on
// the Dump (producer) side, where the exact body size is not known until
// the container has actually been laid out.
func scratchArena(build func(a *arena.Arena) error) ([]byte, int64, error) {
	const maxSize = int64(1) << 34 // 16GiB scratch ceiling; real bodies are orders of magnitude smaller
	size := int64(4096)
	for {
		buf := make([]byte, size)
		a := arena.New(unsafe.Pointer(&buf[0]), size)
		err := build(a)
		if err == nil {
			return buf, a.Used(), nil
		}
		if !errors.Is(err, arena.ErrOutOfMemory) {
			return nil, 0, err
		}
		if size >= maxSize {
			return nil, 0, ErrOutOfCapacity
		}
		size *= 2
	}
}

// WriteBody writes a file header (sized from body) followed by body to w.
// Shared by the typed Dump functions and by shared.Container's Export,
// which reserializes a loaded region byte-for-byte.
func WriteBody(w io.Writer, typeHash uint64, flags uint64, body []byte) error {
	h := FileHeader{BodySize: uint64(len(body)), TypeHash: typeHash, Flags: flags}
	if err := h.writeTo(w); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// PeekBodySize reads just the file header from r and returns the declared
// body size, without consuming the body. r should be positioned at the
// start of the file; after return the body bytes immediately follow.
func PeekBodySize(r io.Reader) (uint64, error) {
	h, err := ReadFileHeader(r)
	if err != nil {
		return 0, err
	}
	return h.BodySize, nil
}

// LoadBody reads a FileHeader from r, validates its type hash against want,
// validates the declared body size exactly equals len(dest), then reads
// the body bytes directly into dest (which may alias shared memory).
func LoadBody(r io.Reader, wantTypeHash uint64, dest []byte) (FileHeader, error) {
	h, err := ReadFileHeader(r)
	if err != nil {
		return FileHeader{}, err
	}
	if h.TypeHash != wantTypeHash {
		return h, ErrTypeMismatch
	}
	if int64(h.BodySize) != int64(len(dest)) {
		return h, ErrSizeMismatch
	}
	if _, err := io.ReadFull(r, dest); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return h, ErrShortBody
		}
		return h, err
	}
	return h, nil
}
