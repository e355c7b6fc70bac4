package wire

import "bytes"

// Fixed buffer lengths, including the trailing NUL every buffer reserves.
const (
	pathLen     = 1025
	groupLen    = 129
	summaryLen  = 129
	checksumLen = 33
)

// MetaBlock is the fixed-size preamble stored at the start of every
// segment, immediately before the embedded FileHeader copy and the
// container region itself. Every field is a fixed zero-padded buffer or
// fixed-width integer so the block has the same size and layout regardless
// of which process wrote or is reading it.
type MetaBlock struct {
	Path     [pathLen]byte
	Flags    uint64
	Group    [groupLen]byte
	AppID    int32
	Summary  [summaryLen]byte
	TypeHash uint64
	Label    uint64
	Checksum [checksumLen]byte
}

func setFixedString(buf []byte, s string) {
	for i := range buf {
		buf[i] = 0
	}
	copy(buf, s)
}

func getFixedString(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}

// InitMeta placement-initializes a freshly-reserved MetaBlock. flags
// already has the version packed into its high byte (see sop.MakeFlags).
func InitMeta(m *MetaBlock, path, group string, appID int32, typeName string, typeHash uint64, flags uint64) {
	setFixedString(m.Path[:], path)
	m.Flags = flags
	setFixedString(m.Group[:], group)
	m.AppID = appID
	setFixedString(m.Summary[:], summaryFor(typeName))
	m.TypeHash = typeHash
	m.Label = 0
	for i := range m.Checksum {
		m.Checksum[i] = 0
	}
}

// PathString returns the container file path recorded in this meta block.
func (m *MetaBlock) PathString() string { return getFixedString(m.Path[:]) }

// GroupString returns the group tag recorded in this meta block.
func (m *MetaBlock) GroupString() string { return getFixedString(m.Group[:]) }

// SummaryString returns the demangled-style type summary.
func (m *MetaBlock) SummaryString() string { return getFixedString(m.Summary[:]) }

// ChecksumString returns the recorded hex MD5 checksum, if any.
func (m *MetaBlock) ChecksumString() string { return getFixedString(m.Checksum[:]) }

// HasNamespaceMarker reports whether Summary still carries the "levin"
// marker every genuine segment from this system stamps on creation. Used
// by IdManager's kernel-segment scan to filter out unrelated segments
// sharing the same key space.
func (m *MetaBlock) HasNamespaceMarker() bool {
	return bytes.Contains(m.Summary[:], []byte(namespaceTag))
}

// SetChecksum stores a hex digest string into the fixed checksum buffer.
func (m *MetaBlock) SetChecksum(hexDigest string) { setFixedString(m.Checksum[:], hexDigest) }
