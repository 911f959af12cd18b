package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantbridge/backend/internal/frame"
)

// scriptedSource replays a fixed sequence of capture results.
type scriptedSource struct {
	steps []step
	pos   int
}

type step struct {
	frame *frame.Encoded
	err   error
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) CaptureOnce() (*frame.Encoded, error) {
	if s.pos >= len(s.steps) {
		return nil, frame.ErrSourceClosed
	}
	st := s.steps[s.pos]
	s.pos++
	return st.frame, st.err
}

func runToCompletion(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("runner did not stop")
	}
}

func TestRunnerInstallsFramesAndStopsOnClose(t *testing.T) {
	f1 := &frame.Encoded{JPEG: []byte{1}, CapturedAt: time.Unix(0, 1)}
	f2 := &frame.Encoded{JPEG: []byte{2}, CapturedAt: time.Unix(0, 2)}
	src := &scriptedSource{steps: []step{
		{frame: f1},
		{frame: nil}, // quiet cycle
		{frame: f2},
	}}

	cache := frame.NewCache()
	var frames atomic.Uint64
	r := &Runner{Source: src, Cache: cache, Log: zerolog.Nop(), Frames: &frames}
	runToCompletion(t, r)

	if got := cache.Get(); got != f2 {
		t.Fatalf("cache holds %v, want last frame", got)
	}
	if frames.Load() != 2 {
		t.Fatalf("frames counter = %d, want 2", frames.Load())
	}
}

func TestRunnerSurvivesCaptureErrors(t *testing.T) {
	f := &frame.Encoded{JPEG: []byte{9}, CapturedAt: time.Unix(0, 9)}
	src := &scriptedSource{steps: []step{
		{err: errors.New("decode failed")},
		{err: errors.New("segment vanished")},
		{frame: f},
	}}

	cache := frame.NewCache()
	var errCount atomic.Uint64
	r := &Runner{Source: src, Cache: cache, Log: zerolog.Nop(), Errors: &errCount}
	runToCompletion(t, r)

	if cache.Get() != f {
		t.Fatal("frame after errors was not installed")
	}
	if errCount.Load() != 2 {
		t.Fatalf("errors counter = %d, want 2", errCount.Load())
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	// A source that always has nothing keeps the runner pausing; cancel must
	// break it out.
	src := &scriptedSource{steps: make([]step, 1<<20)}
	cache := frame.NewCache()
	r := &Runner{Source: src, Cache: cache, Interval: time.Millisecond, Log: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner ignored cancellation")
	}
}
