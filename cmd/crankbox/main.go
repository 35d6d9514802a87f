package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/banshee-data/crankbox/internal/config"
	"github.com/banshee-data/crankbox/internal/fsutil"
	"github.com/banshee-data/crankbox/internal/monitoring"
	"github.com/banshee-data/crankbox/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Path to the JSON configuration file")
	port        = flag.String("port", "", "Serial device of the crank sensor (overrides serial_device_path)")
	musicDir    = flag.String("music", "", "Directory to build the playlist from (overrides music_dir)")
	fixture     = flag.String("fixture", "", "Replay this serial transcript instead of opening the device")
	listen      = flag.String("listen", "", "Address for the read-only debug server, e.g. localhost:8080 (overrides listen)")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn or error (overrides log_level)")
	devMode     = flag.Bool("dev", false, "Run in dev mode: console logs and the bundled sensor fixture")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

// defaultFixture is replayed in dev mode when -fixture is not given.
const defaultFixture = "config/crank-fixture.txt"

// Main
func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nPlays the music directory at the speed of the hand crank.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	cfg, err := loadConfig(fsutil.OSFileSystem{}, *configPath, explicit["config"])
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	applyFlags(cfg, flagOverrides{Port: *port, MusicDir: *musicDir, Listen: *listen, LogLevel: *logLevel})

	logger, err := monitoring.New(monitoring.Config{Level: cfg.GetLogLevel(), Development: *devMode})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	replay := *fixture
	if replay == "" && *devMode {
		replay = defaultFixture
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", zap.String("version", version.String()))
	if err := run(ctx, cfg, runOptions{Fixture: replay, Logger: logger}); err != nil {
		logger.Fatal("crankbox failed", zap.Error(err))
	}
	logger.Info("graceful shutdown complete")
}

// loadConfig reads path. A missing file is only an error when the path was
// given explicitly; otherwise defaults plus environment overrides are used.
func loadConfig(fsys fsutil.FileSystem, path string, explicit bool) (*config.Config, error) {
	if _, err := fsys.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		return config.FromEnv()
	}
	return config.Load(fsys, path)
}

// flagOverrides holds the command-line values that take precedence over the
// file and the environment. Empty strings leave the config untouched.
type flagOverrides struct {
	Port     string
	MusicDir string
	Listen   string
	LogLevel string
}

func applyFlags(cfg *config.Config, o flagOverrides) {
	set := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	set(&cfg.SerialDevicePath, o.Port)
	set(&cfg.MusicDir, o.MusicDir)
	set(&cfg.Listen, o.Listen)
	set(&cfg.LogLevel, o.LogLevel)
}
