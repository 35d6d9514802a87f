package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/crankbox/internal/config"
	"github.com/banshee-data/crankbox/internal/fsutil"
)

// TestFlagDefaults verifies every flag exists with a default that defers to
// the configuration file.
func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, config.DefaultConfigPath, *configPath)
	assert.Empty(t, *port)
	assert.Empty(t, *musicDir)
	assert.Empty(t, *fixture)
	assert.Empty(t, *listen)
	assert.Empty(t, *logLevel)
	assert.False(t, *devMode)
	assert.False(t, *showVersion)
}

func TestLoadConfig_MissingDefaultFileUsesDefaults(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()

	cfg, err := loadConfig(fsys, config.DefaultConfigPath, false)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", cfg.GetSerialDevicePath())
}

func TestLoadConfig_MissingExplicitFileFails(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()

	_, err := loadConfig(fsys, "/etc/crankbox/crankbox.json", true)
	assert.Error(t, err)
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("box.json", []byte(`{"music_dir": "/srv/musik", "damping_factor": 0.5}`))

	cfg, err := loadConfig(fsys, "box.json", true)
	require.NoError(t, err)
	assert.Equal(t, "/srv/musik", cfg.GetMusicDir())
	assert.Equal(t, 0.5, cfg.GetDampingFactor())
}

func TestApplyFlags(t *testing.T) {
	dir := "/from/file"
	cfg := &config.Config{MusicDir: &dir}

	applyFlags(cfg, flagOverrides{Port: "/dev/ttyACM0", Listen: "localhost:8080"})

	assert.Equal(t, "/dev/ttyACM0", cfg.GetSerialDevicePath())
	assert.Equal(t, "/from/file", cfg.GetMusicDir(), "empty flag keeps the file value")
	assert.Equal(t, "localhost:8080", cfg.GetListen())
	assert.Equal(t, "info", cfg.GetLogLevel())
}
