// Package persistence provides the binary on-disk format shared by the
// index artifacts: a fixed 64-byte header, little-endian payload sections,
// and a trailing CRC32 of the whole file.
package persistence

import "errors"

const (
	// MagicNumber identifies finsearch binary artifacts (ASCII: "FSX1").
	MagicNumber = 0x46535831
	// Version is the current file format version (v1.0.0).
	Version = 0x00010000

	// Artifact types
	ArtifactVectorIndex = 1
	ArtifactMetadata    = 2
)

var (
	ErrInvalidMagic    = errors.New("invalid magic number")
	ErrInvalidVersion  = errors.New("unsupported format version")
	ErrInvalidArtifact = errors.New("invalid artifact type")
)

// FileHeader is the 64-byte header at the start of every artifact file.
type FileHeader struct {
	Magic       uint32 // 0x46535831 ("FSX1")
	Version     uint32 // File format version
	Artifact    uint8  // 1=vector index, 2=metadata
	Compression uint8  // Compression of the payload section
	Padding1    [2]byte
	RecordCount uint64 // Rows in the artifact
	Dimension   uint32 // Vector dimensionality (0 for metadata)
	Padding2    [4]byte
	Reserved    [36]byte // Future use
}
