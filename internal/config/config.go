package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/banshee-data/crankbox/internal/fsutil"
)

// DefaultConfigPath is where the service looks for its configuration when no
// -config flag is given. A missing file at this path is not an error.
const DefaultConfigPath = "config/crankbox.json"

// EnvPrefix prefixes every environment override, e.g. CRANKBOX_BAUD_RATE.
const EnvPrefix = "CRANKBOX"

// Config is the runtime configuration. Every field is optional: nil fields
// fall back to the defaults returned by the Get* accessors, so a partial file
// (or no file at all) is valid.
type Config struct {
	// Sensor link
	SerialDevicePath *string `json:"serial_device_path,omitempty" envconfig:"SERIAL_DEVICE_PATH"`
	BaudRate         *int    `json:"baud_rate,omitempty" envconfig:"BAUD_RATE"`

	// Speed response
	ReferenceRPMFor1x  *float64 `json:"reference_rpm_for_1x,omitempty" envconfig:"REFERENCE_RPM_FOR_1X"`
	DampingFactor      *float64 `json:"damping_factor,omitempty" envconfig:"DAMPING_FACTOR"`
	DefaultRPM         *float64 `json:"default_rpm,omitempty" envconfig:"DEFAULT_RPM"`
	DebounceIntervalMs *int     `json:"debounce_interval_ms,omitempty" envconfig:"DEBOUNCE_INTERVAL_MS"`
	TickIntervalMs     *int     `json:"tick_interval_ms,omitempty" envconfig:"TICK_INTERVAL_MS"`

	// Playlist
	MusicDir        *string `json:"music_dir,omitempty" envconfig:"MUSIC_DIR"`
	PlaylistPattern *string `json:"playlist_pattern,omitempty" envconfig:"PLAYLIST_PATTERN"`
	Autoplay        *bool   `json:"autoplay,omitempty" envconfig:"AUTOPLAY"`

	// External player
	PlayerCommand    *string       `json:"player_command,omitempty" envconfig:"PLAYER_COMMAND"`
	PlayerArgs       *[]string     `json:"player_args,omitempty" envconfig:"PLAYER_ARGS"`
	EndOfTrackMarker *string       `json:"end_of_track_marker,omitempty" envconfig:"END_OF_TRACK_MARKER"`
	StopTimeoutMs    *int          `json:"stop_timeout_ms,omitempty" envconfig:"STOP_TIMEOUT_MS"`
	PathRewrites     []PathRewrite `json:"path_rewrites,omitempty" ignored:"true"`

	// Diagnostics
	Listen   *string `json:"listen,omitempty" envconfig:"LISTEN"`
	LogLevel *string `json:"log_level,omitempty" envconfig:"LOG_LEVEL"`
}

// PathRewrite replaces a leading From with To on every track path handed to
// the player, e.g. to map a host mount onto the path the player sees.
type PathRewrite struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Load reads the JSON file at path from fsys, overlays CRANKBOX_* environment
// variables and validates the result. The file must have a .json extension
// and be at most 1MB.
func Load(fsys fsutil.FileSystem, path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a configuration from environment variables alone.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overwrites fields whose CRANKBOX_* variable is set. Unset
// variables leave the field untouched.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to load environment overrides: %w", err)
	}
	return nil
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}
	if c.ReferenceRPMFor1x != nil && *c.ReferenceRPMFor1x <= 0 {
		return fmt.Errorf("reference_rpm_for_1x must be positive, got %f", *c.ReferenceRPMFor1x)
	}
	// Above 1 the lower half of the curve would produce negative speeds.
	if c.DampingFactor != nil && (*c.DampingFactor < 0 || *c.DampingFactor > 1) {
		return fmt.Errorf("damping_factor must be between 0 and 1, got %f", *c.DampingFactor)
	}
	if c.DefaultRPM != nil && *c.DefaultRPM < 0 {
		return fmt.Errorf("default_rpm must be non-negative, got %f", *c.DefaultRPM)
	}
	if c.DebounceIntervalMs != nil && *c.DebounceIntervalMs < 0 {
		return fmt.Errorf("debounce_interval_ms must be non-negative, got %d", *c.DebounceIntervalMs)
	}
	if c.TickIntervalMs != nil && *c.TickIntervalMs <= 0 {
		return fmt.Errorf("tick_interval_ms must be positive, got %d", *c.TickIntervalMs)
	}
	if c.StopTimeoutMs != nil && *c.StopTimeoutMs <= 0 {
		return fmt.Errorf("stop_timeout_ms must be positive, got %d", *c.StopTimeoutMs)
	}
	if c.PlayerCommand != nil && *c.PlayerCommand == "" {
		return fmt.Errorf("player_command must not be empty")
	}
	for i, rw := range c.PathRewrites {
		if rw.From == "" {
			return fmt.Errorf("path_rewrites[%d].from must not be empty", i)
		}
	}
	return nil
}

// GetSerialDevicePath returns the sensor device path or the default.
func (c *Config) GetSerialDevicePath() string {
	if c.SerialDevicePath == nil || *c.SerialDevicePath == "" {
		return "/dev/ttyUSB1"
	}
	return *c.SerialDevicePath
}

// GetBaudRate returns the serial baud rate or the default.
func (c *Config) GetBaudRate() int {
	if c.BaudRate == nil {
		return 115200
	}
	return *c.BaudRate
}

// GetReferenceRPMFor1x returns the crank speed that maps to 1x playback.
func (c *Config) GetReferenceRPMFor1x() float64 {
	if c.ReferenceRPMFor1x == nil {
		return 20
	}
	return *c.ReferenceRPMFor1x
}

// GetDampingFactor returns the damping factor or the default.
func (c *Config) GetDampingFactor() float64 {
	if c.DampingFactor == nil {
		return 0.25
	}
	return *c.DampingFactor
}

// GetDefaultRPM returns the RPM assumed before the first sample arrives.
func (c *Config) GetDefaultRPM() float64 {
	if c.DefaultRPM == nil {
		return 20
	}
	return *c.DefaultRPM
}

// GetDebounceInterval returns the minimum spacing of accepted samples.
func (c *Config) GetDebounceInterval() time.Duration {
	if c.DebounceIntervalMs == nil {
		return 500 * time.Millisecond
	}
	return time.Duration(*c.DebounceIntervalMs) * time.Millisecond
}

// GetTickInterval returns the control loop period.
func (c *Config) GetTickInterval() time.Duration {
	if c.TickIntervalMs == nil {
		return 50 * time.Millisecond
	}
	return time.Duration(*c.TickIntervalMs) * time.Millisecond
}

// GetMusicDir returns the playlist directory or the default.
func (c *Config) GetMusicDir() string {
	if c.MusicDir == nil || *c.MusicDir == "" {
		return "../musik"
	}
	return *c.MusicDir
}

// GetPlaylistPattern returns the doublestar include pattern.
func (c *Config) GetPlaylistPattern() string {
	if c.PlaylistPattern == nil || *c.PlaylistPattern == "" {
		return "**/*"
	}
	return *c.PlaylistPattern
}

// GetAutoplay reports whether the first track starts without a button press.
func (c *Config) GetAutoplay() bool {
	if c.Autoplay == nil {
		return true
	}
	return *c.Autoplay
}

// GetPlayerCommand returns the player executable.
func (c *Config) GetPlayerCommand() string {
	if c.PlayerCommand == nil {
		return "mplayer"
	}
	return *c.PlayerCommand
}

// GetPlayerArgs returns the arguments placed before the track path.
func (c *Config) GetPlayerArgs() []string {
	if c.PlayerArgs == nil {
		return []string{"-quiet", "-noautosub", "-slave"}
	}
	return append([]string(nil), (*c.PlayerArgs)...)
}

// GetEndOfTrackMarker returns the phrase the player prints when a file ends.
func (c *Config) GetEndOfTrackMarker() string {
	if c.EndOfTrackMarker == nil || *c.EndOfTrackMarker == "" {
		return "(End of file)"
	}
	return *c.EndOfTrackMarker
}

// GetStopTimeout returns how long Stop waits before killing the player.
func (c *Config) GetStopTimeout() time.Duration {
	if c.StopTimeoutMs == nil {
		return time.Second
	}
	return time.Duration(*c.StopTimeoutMs) * time.Millisecond
}

// GetListen returns the debug listen address; empty disables the server.
func (c *Config) GetListen() string {
	if c.Listen == nil {
		return ""
	}
	return *c.Listen
}

// GetLogLevel returns the zap level name.
func (c *Config) GetLogLevel() string {
	if c.LogLevel == nil || *c.LogLevel == "" {
		return "info"
	}
	return *c.LogLevel
}
