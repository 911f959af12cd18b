package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plantbridge/backend/internal/frame"
)

// Metrics holds all application counters. The hot paths (ingest loops, viewer
// loops) touch plain atomics; Prometheus reads them lazily through GaugeFunc
// collectors on scrape.
type Metrics struct {
	// Ingestion counters, one pair per source
	ShmFrames    atomic.Uint64
	ShmErrors    atomic.Uint64
	SocketFrames atomic.Uint64
	SocketErrors atomic.Uint64
	PushFrames   atomic.Uint64

	// Delivery counters
	ViewersActive   atomic.Int64
	ViewersTotal    atomic.Uint64
	FramesDelivered atomic.Uint64
	BytesDelivered  atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance backed by its own Prometheus registry.
// cache may be nil; when set, frame age is exported as a gauge.
func New(cache *frame.Cache) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.register(cache)
	return m
}

func (m *Metrics) register(cache *frame.Cache) {
	gauge := func(name, help string, value func() float64) {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: name, Help: help},
			value,
		))
	}

	gauge("bridge_shm_frames_total", "Frames captured from shared memory",
		func() float64 { return float64(m.ShmFrames.Load()) })
	gauge("bridge_shm_errors_total", "Shared memory capture errors",
		func() float64 { return float64(m.ShmErrors.Load()) })
	gauge("bridge_socket_frames_total", "Frames received over the producer socket",
		func() float64 { return float64(m.SocketFrames.Load()) })
	gauge("bridge_socket_errors_total", "Producer socket errors",
		func() float64 { return float64(m.SocketErrors.Load()) })
	gauge("bridge_push_frames_total", "Frames accepted via HTTP push",
		func() float64 { return float64(m.PushFrames.Load()) })

	gauge("bridge_viewers_active", "Currently connected MJPEG viewers",
		func() float64 { return float64(m.ViewersActive.Load()) })
	gauge("bridge_viewers_total", "MJPEG viewers connected since start",
		func() float64 { return float64(m.ViewersTotal.Load()) })
	gauge("bridge_frames_delivered_total", "Multipart sections written to viewers",
		func() float64 { return float64(m.FramesDelivered.Load()) })
	gauge("bridge_bytes_delivered_total", "JPEG payload bytes written to viewers",
		func() float64 { return float64(m.BytesDelivered.Load()) })

	if cache != nil {
		gauge("bridge_frame_age_seconds", "Age of the cached frame (-1 while empty)",
			func() float64 {
				age, ok := cache.Age()
				if !ok {
					return -1
				}
				return age.Seconds()
			})
	}
}

// FrameDelivered records one multipart section written to a viewer.
func (m *Metrics) FrameDelivered(bytes int) {
	m.FramesDelivered.Add(1)
	m.BytesDelivered.Add(uint64(bytes))
}

// Handler returns the Prometheus scrape handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
