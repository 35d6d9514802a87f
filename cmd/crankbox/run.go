package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/banshee-data/crankbox/internal/config"
	"github.com/banshee-data/crankbox/internal/control"
	"github.com/banshee-data/crankbox/internal/fsutil"
	"github.com/banshee-data/crankbox/internal/monitoring"
	"github.com/banshee-data/crankbox/internal/player"
	"github.com/banshee-data/crankbox/internal/playlist"
	"github.com/banshee-data/crankbox/internal/serialmux"
	"github.com/banshee-data/crankbox/internal/telemetry"
)

// defaultFixtureInterval paces fixture replay roughly like the real sensor.
const defaultFixtureInterval = 500 * time.Millisecond

// sensorMux is satisfied by both the hardware and the fixture SerialMux.
type sensorMux interface {
	serialmux.SerialMuxInterface
	AttachAdminRoutes(*http.ServeMux)
}

type runOptions struct {
	// Fixture, when set, is replayed instead of opening the serial device.
	Fixture         string
	FixtureInterval time.Duration
	// Spawner overrides how the player is started.
	Spawner player.Spawner
	Logger  *zap.Logger
}

// run wires the reader, output monitor and control loop and blocks until ctx
// is cancelled or the sensor link fails. Failing to open the sensor is fatal.
func run(ctx context.Context, cfg *config.Config, opts runOptions) error {
	logger := monitoring.OrNop(opts.Logger)

	src := &playlist.DirSource{
		Root:         cfg.GetMusicDir(),
		Pattern:      cfg.GetPlaylistPattern(),
		SniffUnknown: true,
		Logger:       logger.Named("playlist"),
	}
	pl, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to build playlist: %w", err)
	}

	sensor, err := openSensor(cfg, opts, logger.Named("serial"))
	if err != nil {
		return err
	}
	defer sensor.Close()

	shared := control.NewShared(control.DefaultTelemetryBacklog)
	seq := control.NewSequencer(shared, pl, logger.Named("sequencer"))

	var transforms []player.PathTransform
	for _, rw := range cfg.PathRewrites {
		transforms = append(transforms, player.RewritePrefix(rw.From, rw.To))
	}
	driver := player.NewDriver(player.Options{
		Command:     cfg.GetPlayerCommand(),
		Args:        cfg.GetPlayerArgs(),
		Dir:         cfg.GetMusicDir(),
		Transforms:  transforms,
		Spawner:     opts.Spawner,
		StopTimeout: cfg.GetStopTimeout(),
		Logger:      logger.Named("player"),
	})
	outputMonitor := player.NewOutputMonitor(driver, shared, player.MonitorOptions{
		Marker: cfg.GetEndOfTrackMarker(),
		Logger: logger.Named("player"),
	})
	reader := telemetry.NewReader(telemetry.ReaderConfig{
		Debouncer: telemetry.NewDebouncer(cfg.GetDebounceInterval()),
		Samples:   shared,
		Buttons:   seq,
		Logger:    logger.Named("telemetry"),
	})
	loop := control.NewLoop(shared, seq, driver, control.LoopOptions{
		TickInterval: cfg.GetTickInterval(),
		Curve:        control.SpeedCurve{ReferenceRPM: cfg.GetReferenceRPMFor1x(), Damping: cfg.GetDampingFactor()},
		DefaultRPM:   cfg.GetDefaultRPM(),
		Logger:       logger.Named("loop"),
	})
	if cfg.GetAutoplay() {
		seq.Begin()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	// fatal records a failure that must end the process and stops the rest.
	fatal := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
		cancel()
	}

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sensor.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fatal(fmt.Errorf("serial link lost: %w", err))
		}
		logger.Info("serial monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		id, lines := sensor.Subscribe()
		defer sensor.Unsubscribe(id)
		_ = reader.Run(ctx, lines)
		logger.Info("telemetry routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = outputMonitor.Run(ctx)
		logger.Info("player output routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = loop.Run(ctx)
	}()

	if addr := cfg.GetListen(); addr != "" {
		mux := http.NewServeMux()
		sensor.AttachAdminRoutes(mux)
		loop.AttachAdminRoutes(mux,
			control.Section{Name: "player", Fn: func() any { return driver.Status() }},
			control.Section{Name: "telemetry", Fn: func() any { return reader.Stats() }},
			control.Section{Name: "playlist", Fn: func() any { return pl.Tracks() }},
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveDebug(ctx, addr, mux, logger.Named("http"), fatal)
		}()
	}

	wg.Wait()
	return firstErr
}

func openSensor(cfg *config.Config, opts runOptions, logger *zap.Logger) (sensorMux, error) {
	if opts.Fixture != "" {
		lines, err := serialmux.LoadFixture(fsutil.OSFileSystem{}, opts.Fixture)
		if err != nil {
			return nil, err
		}
		interval := opts.FixtureInterval
		if interval <= 0 {
			interval = defaultFixtureInterval
		}
		logger.Info("replaying sensor fixture", zap.String("path", opts.Fixture), zap.Int("lines", len(lines)))
		return serialmux.NewFixtureSerialMux(lines, interval, logger), nil
	}

	path := cfg.GetSerialDevicePath()
	m, err := serialmux.NewRealSerialMux(path, serialmux.PortOptions{BaudRate: cfg.GetBaudRate()}, logger)
	if err != nil {
		return nil, fmt.Errorf("sensor unavailable: %w", err)
	}
	logger.Info("opened sensor", zap.String("device", path), zap.Int("baud", cfg.GetBaudRate()))
	return m, nil
}

func serveDebug(ctx context.Context, addr string, mux *http.ServeMux, logger *zap.Logger, fatal func(error)) {
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("debug server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(fmt.Errorf("debug server: %w", err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("debug server shutdown", zap.Error(err))
		if err := server.Close(); err != nil {
			logger.Warn("debug server force close", zap.Error(err))
		}
	}
	logger.Info("debug server routine stopped")
}
