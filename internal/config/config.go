// Package config defines the runtime configuration for the bridge backend.
// Values come from an optional TOML file with defaults filled in for anything
// left unset; cmd/server layers flag overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full runtime configuration.
type Config struct {
	// HTTP
	HTTPAddr         string `toml:"http_addr"`
	StreamIntervalMs int    `toml:"stream_interval_ms"` // MJPEG poll cadence, caps per-viewer fps

	// Producer socket (the QNX camera connects here)
	SocketAddr    string `toml:"socket_addr"`
	MaxFrameBytes int64  `toml:"max_frame_bytes"`

	// Shared memory camera
	ShmDir          string `toml:"shm_dir"`
	MetadataSegment string `toml:"metadata_segment"`
	NameSegment     string `toml:"name_segment"`
	ShmPollMs       int    `toml:"shm_poll_ms"`
	JPEGQuality     int    `toml:"jpeg_quality"`

	// Watering hardware
	BucketDiameterCm float64 `toml:"bucket_diameter_cm"`
	BucketHeightCm   float64 `toml:"bucket_height_cm"`
	ServoMinAngleDeg float64 `toml:"servo_min_angle_deg"`
	ServoMaxAngleDeg float64 `toml:"servo_max_angle_deg"`

	// QNX command forwarding
	QNXMode      string `toml:"qnx_mode"` // mock | real
	QNXBaseURL   string `toml:"qnx_base_url"`
	QNXTimeoutMs int    `toml:"qnx_timeout_ms"`

	// Weather
	WeatherCacheTTLSec int `toml:"weather_cache_ttl_sec"`
}

// Default returns the configuration matching the deployed hardware setup.
func Default() Config {
	return Config{
		HTTPAddr:         ":8000",
		StreamIntervalMs: 200,

		SocketAddr:    ":5001",
		MaxFrameBytes: 32 << 20,

		ShmDir:          "/dev/shm",
		MetadataSegment: "/camera_metadata",
		NameSegment:     "/camera_latest_name",
		ShmPollMs:       50,
		JPEGQuality:     75,

		BucketDiameterCm: 2.7,
		BucketHeightCm:   3.8,
		ServoMinAngleDeg: 0,
		ServoMaxAngleDeg: 90,

		QNXMode:      "mock",
		QNXBaseURL:   "",
		QNXTimeoutMs: 3500,

		WeatherCacheTTLSec: 600,
	}
}

// Load reads the TOML file at path on top of defaults. An empty path or a
// missing file yields the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) StreamInterval() time.Duration {
	return time.Duration(c.StreamIntervalMs) * time.Millisecond
}

func (c Config) ShmPollInterval() time.Duration {
	return time.Duration(c.ShmPollMs) * time.Millisecond
}

func (c Config) QNXTimeout() time.Duration {
	return time.Duration(c.QNXTimeoutMs) * time.Millisecond
}

func (c Config) WeatherCacheTTL() time.Duration {
	return time.Duration(c.WeatherCacheTTLSec) * time.Second
}
