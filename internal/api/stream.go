package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const streamBoundary = "frame"

// handleStream runs one viewer's broadcast loop: poll the cache at the
// configured cadence and write a multipart section whenever a frame the
// viewer has not seen yet appears. A frame is delivered to a viewer at most
// once, keyed by its capture timestamp. The loop ends only when the viewer
// goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	session := uuid.NewString()
	log := s.log.With().Str("session", session).Logger()
	log.Debug().Msg("viewer connected")

	if s.metrics != nil {
		s.metrics.ViewersActive.Add(1)
		s.metrics.ViewersTotal.Add(1)
		defer s.metrics.ViewersActive.Add(-1)
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	// Send the response head right away: a viewer connecting before any
	// producer has delivered a frame must still get the status line and
	// stream headers while it waits for the first part.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	interval := s.cfg.StreamInterval()
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSent time.Time
	for {
		select {
		case <-r.Context().Done():
			log.Debug().Msg("viewer disconnected")
			return
		case <-ticker.C:
		}

		f := s.cache.Get()
		if f == nil || f.CapturedAt.Equal(lastSent) {
			continue
		}

		if err := writePart(w, f.JPEG); err != nil {
			log.Debug().Err(err).Msg("viewer write failed")
			return
		}
		flusher.Flush()
		lastSent = f.CapturedAt
		if s.metrics != nil {
			s.metrics.FrameDelivered(len(f.JPEG))
		}
	}
}

func writePart(w io.Writer, jpeg []byte) error {
	header := fmt.Sprintf("--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
		streamBoundary, len(jpeg))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
