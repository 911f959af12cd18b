package camsock

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/plantbridge/backend/internal/frame"
	"github.com/plantbridge/backend/internal/ingest"
)

// Listener accepts producer connections and drains frames from one connection
// at a time into the cache. When the producer restarts and reconnects, the
// previous reader is gone and the new connection starts clean.
type Listener struct {
	Addr          string
	Cache         *frame.Cache
	MaxFrameBytes int64
	Log           zerolog.Logger

	Frames *atomic.Uint64
	Errors *atomic.Uint64

	ln net.Listener
}

// Listen binds Addr. Serve calls it implicitly; tests call it first to learn
// the bound port.
func (l *Listener) Listen() error {
	ln, err := net.Listen("tcp", l.Addr)
	if err != nil {
		return err
	}
	l.ln = ln
	return nil
}

// Serve accepts producer connections and blocks until ctx is cancelled.
func (l *Listener) Serve(ctx context.Context) error {
	if l.ln == nil {
		if err := l.Listen(); err != nil {
			return err
		}
	}
	ln := l.ln
	log := l.Log.With().Str("component", "camsock").Str("addr", ln.Addr().String()).Logger()
	log.Info().Msg("waiting for camera producer")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Msg("accept failed")
			continue
		}

		log.Info().Str("peer", conn.RemoteAddr().String()).Msg("producer connected")
		runner := &ingest.Runner{
			Source: NewReader(conn, l.MaxFrameBytes),
			Cache:  l.Cache,
			Log:    log,
			Frames: l.Frames,
			Errors: l.Errors,
		}
		runner.Run(ctx)
		conn.Close()
		log.Info().Str("peer", conn.RemoteAddr().String()).Msg("producer disconnected")
	}
}

// ListenAddr reports the bound address once Serve has started, for tests that
// listen on port 0.
func (l *Listener) ListenAddr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}
