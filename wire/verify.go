package wire

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unsafe"
)

// Verifier checks (or, in update mode, stamps) the integrity of a
// container region against the recorded state in its MetaBlock. Two
// implementations are provided: a fast magic label and a slow but
// content-sensitive MD5 digest. shared.Container picks one per
// registration.
type Verifier interface {
	Check(area unsafe.Pointer, length int64, meta *MetaBlock, update bool) bool
}

// LabelVerifier is an O(1) integrity check: a magic number stamped once on
// first successful load and checked thereafter. It detects "this region
// was never fully constructed" but not in-place corruption.
type LabelVerifier struct{}

func (LabelVerifier) Check(_ unsafe.Pointer, _ int64, meta *MetaBlock, update bool) bool {
	if update {
		meta.Label = integrityLabelMagic
		return true
	}
	return meta.Label == integrityLabelMagic
}

// ChecksumVerifier hashes the entire container region with MD5 on every
// check. crypto/md5 is used directly rather than a third-party digest
// library: the wire format fixes the checksum field at 33 bytes (32 hex
// chars + NUL), the exact width of a textual MD5 digest, so any
// replacement hash would break on-disk compatibility with that layout.
type ChecksumVerifier struct{}

func (ChecksumVerifier) Check(area unsafe.Pointer, length int64, meta *MetaBlock, update bool) bool {
	data := unsafe.Slice((*byte)(area), length)
	sum := md5.Sum(data)
	hexSum := hex.EncodeToString(sum[:])
	if update {
		meta.SetChecksum(hexSum)
		return true
	}
	return strings.EqualFold(meta.ChecksumString(), hexSum)
}
