package shm

import (
	"encoding/binary"

	"github.com/plantbridge/backend/internal/frame"
)

// MetadataSize is the fixed layout the driver writes: frame_type (u32),
// width (u32), height (u32), byte_size (u64), all little-endian (the ARM64
// target and x86 dev hosts agree).
const MetadataSize = 4 + 4 + 4 + 8

// DefaultMetadataSegment is the well-known metadata segment name.
const DefaultMetadataSegment = "/camera_metadata"

// MetadataReader decodes the driver's metadata record.
type MetadataReader struct {
	dir     string
	segment string
}

// NewMetadataReader uses defaults for any empty argument.
func NewMetadataReader(dir, segment string) *MetadataReader {
	if dir == "" {
		dir = DefaultDir
	}
	if segment == "" {
		segment = DefaultMetadataSegment
	}
	return &MetadataReader{dir: dir, segment: segment}
}

// Read returns the current metadata. Any failure (segment absent, permission
// denied, short segment) comes back as the zero value, which callers treat as
// "no frame yet": the producer may simply not have started.
func (r *MetadataReader) Read() frame.Metadata {
	data, err := readSegment(r.dir, r.segment, MetadataSize)
	if err != nil {
		return frame.Metadata{}
	}
	return decodeMetadata(data)
}

func decodeMetadata(b []byte) frame.Metadata {
	return frame.Metadata{
		FrameType: frame.Type(binary.LittleEndian.Uint32(b[0:4])),
		Width:     binary.LittleEndian.Uint32(b[4:8]),
		Height:    binary.LittleEndian.Uint32(b[8:12]),
		ByteSize:  binary.LittleEndian.Uint64(b[12:20]),
	}
}
