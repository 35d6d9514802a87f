package serialmux

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/banshee-data/crankbox/internal/fsutil"
)

// FixturePort replays a transcript of sensor output through a pipe, one line
// per interval, looping until it is closed.
type FixturePort struct {
	*io.PipeReader
}

// NewFixtureSerialMux creates a SerialMux that replays lines instead of
// reading hardware. It is used in dev mode to run the whole service on a
// machine without the crank attached.
func NewFixtureSerialMux(lines []string, interval time.Duration, logger *zap.Logger) *SerialMux[FixturePort] {
	r, w := io.Pipe()
	go func() {
		defer w.Close()
		if len(lines) == 0 {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; ; i = (i + 1) % len(lines) {
			if _, err := io.WriteString(w, lines[i]+"\n"); err != nil {
				// reader closed
				return
			}
			<-ticker.C
		}
	}()
	return NewSerialMux(FixturePort{r}, logger)
}

// LoadFixture reads a transcript file and returns its non-empty lines.
func LoadFixture(fsys fsutil.FileSystem, path string) ([]string, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimRight(line, "\r"); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("fixture %s contains no lines", path)
	}
	return lines, nil
}
