package control

import (
	"sync"

	"github.com/banshee-data/crankbox/internal/telemetry"
)

// DefaultTelemetryBacklog bounds the telemetry queue. The debouncer keeps
// production below the tick rate, so the bound is only reached if the loop
// stalls; the oldest samples are discarded first.
const DefaultTelemetryBacklog = 64

// State is the coarse playback state.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// PlaybackState is the single mutable playback record. CurrentIndex is
// always in [0, playlist length).
type PlaybackState struct {
	CurrentIndex int   `json:"current_index"`
	Paused       bool  `json:"paused"`
	State        State `json:"-"`
}

// Shared holds everything the three loops exchange, behind one lock: the
// telemetry queue, the command queue, the end-of-track signal and the
// playback state.
type Shared struct {
	mu         sync.Mutex
	telemetry  []telemetry.Sample
	backlog    int
	commands   []Command
	trackEnded bool
	playback   PlaybackState

	telemetryDropped uint64
	endSignals       uint64
}

// NewShared creates the shared state in its startup form: Idle and paused.
func NewShared(backlog int) *Shared {
	if backlog <= 0 {
		backlog = DefaultTelemetryBacklog
	}
	return &Shared{
		backlog:  backlog,
		playback: PlaybackState{Paused: true, State: StateIdle},
	}
}

// PushTelemetry enqueues an accepted sample.
func (s *Shared) PushTelemetry(sample telemetry.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.telemetry) >= s.backlog {
		s.telemetry = s.telemetry[1:]
		s.telemetryDropped++
	}
	s.telemetry = append(s.telemetry, sample)
}

// SignalTrackEnded records that the current track played out. Signals that
// arrive before the pending one is consumed are merged into it.
func (s *Shared) SignalTrackEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackEnded = true
	s.endSignals++
}

// Playback returns a copy of the playback state.
func (s *Shared) Playback() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playback
}

// Pending returns the queue lengths and whether a track end is pending.
func (s *Shared) Pending() (samples, commands int, trackEnded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.telemetry), len(s.commands), s.trackEnded
}

// The methods below require s.mu.

func (s *Shared) enqueueLocked(c Command) {
	s.commands = append(s.commands, c)
}

func (s *Shared) popSampleLocked() (telemetry.Sample, bool) {
	if len(s.telemetry) == 0 {
		return telemetry.Sample{}, false
	}
	sample := s.telemetry[0]
	s.telemetry[0] = telemetry.Sample{}
	s.telemetry = s.telemetry[1:]
	return sample, true
}

func (s *Shared) popCommandLocked() (Command, bool) {
	if len(s.commands) == 0 {
		return nil, false
	}
	c := s.commands[0]
	s.commands[0] = nil
	s.commands = s.commands[1:]
	return c, true
}

func (s *Shared) takeTrackEndedLocked() bool {
	ended := s.trackEnded
	s.trackEnded = false
	return ended
}
