package player

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/banshee-data/crankbox/internal/lineio"
	"github.com/banshee-data/crankbox/internal/monitoring"
	"github.com/banshee-data/crankbox/internal/timeutil"
)

// DefaultEndOfTrackMarker is what mplayer prints when a file plays out.
const DefaultEndOfTrackMarker = "(End of file)"

// DefaultPollInterval is how often the monitor checks for a new process.
const DefaultPollInterval = 100 * time.Millisecond

// OutputSource exposes the current player process.
type OutputSource interface {
	Current() (Handle, bool)
}

// TrackEndSink receives end-of-track notifications. Implementations coalesce
// repeated signals.
type TrackEndSink interface {
	SignalTrackEnded()
}

// MonitorOptions configures an OutputMonitor.
type MonitorOptions struct {
	Marker       string
	PollInterval time.Duration
	Clock        timeutil.Clock
	Logger       *zap.Logger
}

// OutputMonitor reads the player's output and reports when a track ends.
type OutputMonitor struct {
	source OutputSource
	sink   TrackEndSink
	marker string
	poll   time.Duration
	clock  timeutil.Clock
	logger *zap.Logger
}

// NewOutputMonitor creates an OutputMonitor.
func NewOutputMonitor(source OutputSource, sink TrackEndSink, opts MonitorOptions) *OutputMonitor {
	m := &OutputMonitor{
		source: source,
		sink:   sink,
		marker: opts.Marker,
		poll:   opts.PollInterval,
		clock:  opts.Clock,
		logger: monitoring.OrNop(opts.Logger),
	}
	if m.marker == "" {
		m.marker = DefaultEndOfTrackMarker
	}
	if m.poll <= 0 {
		m.poll = DefaultPollInterval
	}
	if m.clock == nil {
		m.clock = timeutil.RealClock{}
	}
	return m
}

// Run follows each new process's output until ctx is cancelled. Between
// processes, or while none is running, it polls.
//
// A read from the player's output cannot be interrupted: once ctx is
// cancelled, Run returns after the next line arrives or the stream closes.
// Stopping the driver closes the stream.
func (m *OutputMonitor) Run(ctx context.Context) error {
	var last uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, ok := m.source.Current()
		if !ok || h.Generation == last {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-m.clock.After(m.poll):
			}
			continue
		}
		last = h.Generation
		m.follow(ctx, h)
	}
}

// follow drains h.Output until it closes. The status line mplayer redraws
// with '\r' counts as a line of its own.
func (m *OutputMonitor) follow(ctx context.Context, h Handle) {
	log := m.logger.With(zap.Stringer("session", h.Session), zap.Int("pid", h.Pid))
	scanner := lineio.NewScanner(h.Output, lineio.Options{
		BreakOnCR: true,
		OnDiscard: func(n int) { log.Debug("skipped overlong player output", zap.Int("bytes", n)) },
	})
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if strings.Contains(line, m.marker) {
			log.Info("track ended", zap.String("track", h.Track.Path))
			m.sink.SignalTrackEnded()
			continue
		}
		log.Debug("player output", zap.String("line", line))
	}
	if err := scanner.Err(); err != nil {
		log.Debug("player output closed", zap.Error(err))
	}
}
