package frame

import (
	"errors"
	"time"
)

// Type identifies the pixel layout of a raw camera frame, matching the
// camera_frametype_t values the QNX driver writes into the metadata segment.
type Type uint32

const (
	TypeUnspecified Type = 0
	TypeNV12        Type = 1
	TypeRGB8565     Type = 2
	TypeRGB8888     Type = 3
	TypeBGR8888     Type = 4
)

func (t Type) String() string {
	switch t {
	case TypeNV12:
		return "NV12"
	case TypeRGB8565:
		return "RGB8565"
	case TypeRGB8888:
		return "RGB8888"
	case TypeBGR8888:
		return "BGR8888"
	default:
		return "Unspecified"
	}
}

// Metadata mirrors the fixed 20-byte record the camera driver publishes:
// frame type, dimensions and the byte size of the current pixel segment.
// ByteSize == 0 means the driver has not produced a frame yet.
type Metadata struct {
	FrameType Type
	Width     uint32
	Height    uint32
	ByteSize  uint64
}

// Empty reports whether the producer has written a frame at all.
func (m Metadata) Empty() bool {
	return m.ByteSize == 0
}

// Encoded is a complete JPEG image plus its capture timestamp. It is the unit
// stored in the cache and the unit delivered to viewers.
type Encoded struct {
	JPEG       []byte
	CapturedAt time.Time
}

// ErrSourceClosed is returned by a Source whose underlying transport is gone
// for good (producer hung up). The ingest loop stops; anything else is a
// per-cycle failure and the loop keeps polling.
var ErrSourceClosed = errors.New("frame source closed")

// Source is the one capability the ingestion adapters share: produce the next
// encoded frame, or (nil, nil) when there is nothing this cycle.
type Source interface {
	Name() string
	CaptureOnce() (*Encoded, error)
}
