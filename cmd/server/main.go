package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/plantbridge/backend/internal/api"
	"github.com/plantbridge/backend/internal/camsock"
	"github.com/plantbridge/backend/internal/config"
	"github.com/plantbridge/backend/internal/frame"
	"github.com/plantbridge/backend/internal/ingest"
	"github.com/plantbridge/backend/internal/logging"
	"github.com/plantbridge/backend/internal/metrics"
	"github.com/plantbridge/backend/internal/qnx"
	"github.com/plantbridge/backend/internal/shm"
	"github.com/plantbridge/backend/internal/weather"
)

var (
	configPath = flag.String("config", "", "Path to TOML config file")
	httpAddr   = flag.String("http", "", "HTTP listen address (overrides config)")
	socketAddr = flag.String("socket", "", "Camera socket listen address (overrides config)")
	shmDir     = flag.String("shm-dir", "", "Shared memory directory (overrides config)")
	logLevel   = flag.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	logColor   = flag.Bool("log-color", true, "Enable colored log output")
)

func main() {
	flag.Parse()

	log := logging.New(*logLevel, *logColor)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("load config")
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *socketAddr != "" {
		cfg.SocketAddr = *socketAddr
	}
	if *shmDir != "" {
		cfg.ShmDir = *shmDir
	}

	if err := run(log, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run(log zerolog.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := frame.NewCache()
	m := metrics.New(cache)

	weatherClient := weather.NewClient(cfg.WeatherCacheTTL())
	qnxClient := qnx.NewClient(qnx.Mode(cfg.QNXMode), cfg.QNXBaseURL, cfg.QNXTimeout())

	apiServer := api.NewServer(cfg, log, cache, m, weatherClient, qnxClient)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiServer.Router(),
	}

	shmSource := shm.NewSource(shm.SourceConfig{
		Dir:             cfg.ShmDir,
		MetadataSegment: cfg.MetadataSegment,
		NameSegment:     cfg.NameSegment,
		JPEGQuality:     cfg.JPEGQuality,
	})
	shmRunner := &ingest.Runner{
		Source:   shmSource,
		Cache:    cache,
		Interval: cfg.ShmPollInterval(),
		Log:      log,
		Frames:   &m.ShmFrames,
		Errors:   &m.ShmErrors,
	}

	sockListener := &camsock.Listener{
		Addr:          cfg.SocketAddr,
		Cache:         cache,
		MaxFrameBytes: cfg.MaxFrameBytes,
		Log:           log,
		Frames:        &m.SocketFrames,
		Errors:        &m.SocketErrors,
	}
	if err := sockListener.Listen(); err != nil {
		return fmt.Errorf("camera socket listen on %s: %w", cfg.SocketAddr, err)
	}

	log.Info().
		Str("http", cfg.HTTPAddr).
		Str("socket", sockListener.ListenAddr().String()).
		Str("shm_dir", cfg.ShmDir).
		Str("qnx_mode", cfg.QNXMode).
		Msg("frame bridge starting")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		shmRunner.Run(ctx)
		return nil
	})

	g.Go(func() error {
		return sockListener.Serve(ctx)
	})

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
