// Package ingest drives a frame.Source in a loop and installs every capture
// into the shared cache. Each source gets its own runner goroutine; a failure
// in one never reaches another.
package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantbridge/backend/internal/frame"
)

// Runner polls one source. Interval 0 means the source blocks on its own
// transport (socket reads) and needs no pacing.
type Runner struct {
	Source   frame.Source
	Cache    *frame.Cache
	Interval time.Duration
	Log      zerolog.Logger

	// Optional counters; left nil in tests that don't care.
	Frames *atomic.Uint64
	Errors *atomic.Uint64
}

// Run loops until ctx is cancelled or the source reports ErrSourceClosed.
// Per-cycle errors are counted and logged, then the loop continues: a single
// bad frame must never take the source down.
func (r *Runner) Run(ctx context.Context) {
	log := r.Log.With().Str("source", r.Source.Name()).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		f, err := r.Source.CaptureOnce()
		switch {
		case errors.Is(err, frame.ErrSourceClosed):
			log.Info().Msg("source closed")
			return
		case err != nil:
			if r.Errors != nil {
				r.Errors.Add(1)
			}
			log.Warn().Err(err).Msg("capture failed")
			r.pause(ctx)
			continue
		case f == nil:
			// No frame this cycle; not an error.
			r.pause(ctx)
			continue
		}

		r.Cache.Set(f)
		if r.Frames != nil {
			r.Frames.Add(1)
		}
		r.pause(ctx)
	}
}

func (r *Runner) pause(ctx context.Context) {
	if r.Interval <= 0 {
		return
	}
	t := time.NewTimer(r.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
