package telemetry

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/banshee-data/crankbox/internal/monitoring"
	"github.com/banshee-data/crankbox/internal/timeutil"
)

// SampleSink receives debounced samples.
type SampleSink interface {
	PushTelemetry(Sample)
}

// ButtonHandler receives button transitions.
type ButtonHandler interface {
	HandleButton(Button)
}

// ReaderConfig wires a Reader to its collaborators.
type ReaderConfig struct {
	Debouncer *Debouncer
	Samples   SampleSink
	Buttons   ButtonHandler
	Clock     timeutil.Clock
	Logger    *zap.Logger
}

// Reader consumes raw serial lines, parses them and routes the results.
// Parse failures are logged and skipped; nothing a line contains can stop it.
type Reader struct {
	debouncer *Debouncer
	samples   SampleSink
	buttons   ButtonHandler
	clock     timeutil.Clock
	logger    *zap.Logger

	lines        atomic.Uint64
	decodeErrors atomic.Uint64
}

// NewReader creates a Reader. A nil Debouncer uses the default interval and a
// nil Clock uses the wall clock.
func NewReader(cfg ReaderConfig) *Reader {
	r := &Reader{
		debouncer: cfg.Debouncer,
		samples:   cfg.Samples,
		buttons:   cfg.Buttons,
		clock:     cfg.Clock,
		logger:    monitoring.OrNop(cfg.Logger),
	}
	if r.debouncer == nil {
		r.debouncer = NewDebouncer(DefaultDebounceInterval)
	}
	if r.clock == nil {
		r.clock = timeutil.RealClock{}
	}
	return r
}

// Run handles lines until ctx is cancelled or lines is closed.
func (r *Reader) Run(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			r.HandleLine(line)
		}
	}
}

// HandleLine processes a single line.
func (r *Reader) HandleLine(line string) {
	r.lines.Add(1)
	ev, err := ParseLine(line, r.clock.Now())
	if err != nil {
		if errors.Is(err, ErrDecode) {
			r.decodeErrors.Add(1)
		}
		r.logger.Warn("skipping unreadable sensor line", zap.Error(err), zap.ByteString("line", []byte(line)))
		return
	}

	switch ev.Kind {
	case KindSample:
		if !r.debouncer.Accept(ev.Sample) {
			return
		}
		r.logger.Debug("rpm sample",
			zap.Float64("rpm", ev.Sample.RPM),
			zap.Int("window_ms", ev.Sample.IntervalMs),
			zap.Stringer("direction", ev.Sample.Direction))
		if r.samples != nil {
			r.samples.PushTelemetry(ev.Sample)
		}
	case KindButton:
		r.logger.Info("button", zap.Stringer("state", ev.Button))
		if r.buttons != nil {
			r.buttons.HandleButton(ev.Button)
		}
	default:
		r.logger.Debug("ignoring sensor line", zap.String("line", line))
	}
}

// Stats is a point-in-time view of the reader counters.
type Stats struct {
	Lines           uint64 `json:"lines"`
	DecodeErrors    uint64 `json:"decode_errors"`
	SamplesAccepted uint64 `json:"samples_accepted"`
	SamplesDropped  uint64 `json:"samples_dropped"`
}

// Stats returns the current counters.
func (r *Reader) Stats() Stats {
	accepted, dropped := r.debouncer.Counts()
	return Stats{
		Lines:           r.lines.Load(),
		DecodeErrors:    r.decodeErrors.Load(),
		SamplesAccepted: accepted,
		SamplesDropped:  dropped,
	}
}
