package telemetry

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultDebounceInterval is the minimum spacing of accepted samples.
const DefaultDebounceInterval = 500 * time.Millisecond

// Debouncer drops samples that arrive sooner than the configured interval
// after the previously accepted one. It is a token bucket of depth one
// refilled once per interval, so the first sample is always accepted.
type Debouncer struct {
	interval time.Duration
	limiter  *rate.Limiter

	mu             sync.Mutex
	lastAcceptedAt time.Time
	accepted       uint64
	dropped        uint64
}

// NewDebouncer creates a Debouncer. An interval of zero accepts everything.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Accept reports whether s should be forwarded, judged at s.ObservedAt.
func (d *Debouncer) Accept(s Sample) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.limiter.AllowN(s.ObservedAt, 1) {
		d.dropped++
		return false
	}
	d.lastAcceptedAt = s.ObservedAt
	d.accepted++
	return true
}

// Interval returns the configured debounce interval.
func (d *Debouncer) Interval() time.Duration { return d.interval }

// LastAcceptedAt returns the observation time of the last accepted sample,
// or the zero time if none has been accepted.
func (d *Debouncer) LastAcceptedAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastAcceptedAt
}

// Counts returns the number of accepted and dropped samples.
func (d *Debouncer) Counts() (accepted, dropped uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accepted, d.dropped
}
