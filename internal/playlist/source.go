package playlist

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/banshee-data/crankbox/internal/monitoring"
)

// AudioExtensions lists the file extensions treated as audio without
// inspecting the file contents.
var AudioExtensions = map[string]bool{
	"3gp":  true,
	"flac": true,
	"m4a":  true,
	"mp3":  true,
	"oga":  true,
	"ogg":  true,
	"opus": true,
	"spx":  true,
	"wav":  true,
}

// Source supplies the playlist at startup.
type Source interface {
	Load(ctx context.Context) (*Playlist, error)
}

// DirSource builds a playlist from the audio files under a directory.
type DirSource struct {
	Root string
	// Pattern is a doublestar pattern matched against slash-separated paths
	// relative to Root. Empty means "**/*".
	Pattern string
	// SniffUnknown enables content sniffing for files whose extension is not
	// in AudioExtensions.
	SniffUnknown bool
	Logger       *zap.Logger
}

// Load walks Root and returns every matching audio file, sorted by relative
// path. Track paths are relative to Root, which is also the player's working
// directory.
func (s *DirSource) Load(ctx context.Context) (*Playlist, error) {
	logger := monitoring.OrNop(s.Logger)
	pattern := s.Pattern
	if pattern == "" {
		pattern = "**/*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid playlist pattern %q", pattern)
	}
	info, err := os.Stat(s.Root)
	if err != nil {
		return nil, fmt.Errorf("music dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("music dir %s is not a directory", s.Root)
	}

	var mu sync.Mutex
	var found []string
	conf := fastwalk.Config{Follow: false}

	err = fastwalk.Walk(&conf, s.Root, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			logger.Warn("skipping unreadable entry", zap.String("path", p), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ok, _ := doublestar.Match(pattern, rel); !ok {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if err := withinRoot(p, s.Root); err != nil {
				logger.Warn("skipping symlink", zap.String("path", rel), zap.Error(err))
				return nil
			}
			if target, err := os.Stat(p); err != nil || !target.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		if !s.isAudio(p) {
			return nil
		}
		mu.Lock()
		found = append(found, rel)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk music dir %s: %w", s.Root, err)
	}

	sort.Strings(found)
	logger.Info("playlist loaded", zap.String("root", s.Root), zap.Int("tracks", len(found)))
	return New(found)
}

func (s *DirSource) isAudio(path string) bool {
	if IsAudioFile(path) {
		return true
	}
	if !s.SniffUnknown {
		return false
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt.String(), "audio/")
}

// IsAudioFile reports whether name has one of AudioExtensions, ignoring case.
func IsAudioFile(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return AudioExtensions[strings.ToLower(ext)]
}

// StaticSource returns a fixed list of paths.
type StaticSource []string

func (s StaticSource) Load(context.Context) (*Playlist, error) {
	return New(s)
}
