package shm

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/plantbridge/backend/internal/frame"
)

const (
	// DefaultNameSegment holds the name of the segment currently carrying
	// pixel data, as a NUL-padded string.
	DefaultNameSegment = "/camera_latest_name"

	nameSegmentSize = 256

	// The driver caps frames at 4K RGBX; anything larger is corruption.
	maxPixelBytes = 3840 * 2160 * 4
)

// Source captures the driver's latest frame: read metadata, resolve the pixel
// segment by name, convert RGBX to an image and JPEG-encode it.
type Source struct {
	meta        *MetadataReader
	dir         string
	nameSegment string
	quality     int
}

// SourceConfig configures a shared memory Source; zero values mean defaults.
type SourceConfig struct {
	Dir             string
	MetadataSegment string
	NameSegment     string
	JPEGQuality     int
}

func NewSource(cfg SourceConfig) *Source {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.NameSegment == "" {
		cfg.NameSegment = DefaultNameSegment
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 75
	}
	return &Source{
		meta:        NewMetadataReader(cfg.Dir, cfg.MetadataSegment),
		dir:         cfg.Dir,
		nameSegment: cfg.NameSegment,
		quality:     cfg.JPEGQuality,
	}
}

func (s *Source) Name() string { return "shm" }

// CaptureOnce returns the latest frame, or (nil, nil) when there is nothing to
// capture: no frame published yet, or a pixel format this bridge does not
// convert. Errors are per-cycle faults for the caller to log; the next poll
// starts clean either way.
func (s *Source) CaptureOnce() (*frame.Encoded, error) {
	md := s.meta.Read()
	if md.Empty() {
		return nil, nil
	}
	if md.FrameType != frame.TypeRGB8888 {
		// Unsupported formats are skipped, not errored.
		return nil, nil
	}

	segName, err := s.readSegmentName()
	if err != nil || segName == "" {
		// Name pointer lags the metadata during producer startup.
		return nil, nil
	}

	if md.ByteSize > maxPixelBytes {
		return nil, fmt.Errorf("frame size %d exceeds limit", md.ByteSize)
	}
	pixels, err := readSegment(s.dir, segName, int(md.ByteSize))
	if err != nil {
		// Segment renamed or unlinked between metadata read and map.
		return nil, err
	}

	img, err := rgbxImage(pixels, int(md.Width), int(md.Height))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	return &frame.Encoded{JPEG: buf.Bytes(), CapturedAt: time.Now()}, nil
}

func (s *Source) readSegmentName() (string, error) {
	raw, err := readSegment(s.dir, s.nameSegment, nameSegmentSize)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw), nil
}

// rgbxImage reinterprets a height*width*4 buffer (R, G, B, unused) as an RGBA
// image the JPEG encoder accepts. The padding channel is forced opaque; the
// RGB order is preserved so decoded output matches the driver's pixel values.
func rgbxImage(pixels []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	want := width * height * 4
	if len(pixels) != want {
		return nil, fmt.Errorf("pixel buffer is %d bytes, want %d for %dx%d RGB8888",
			len(pixels), want, width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pixels)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img, nil
}
