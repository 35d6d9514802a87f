package control

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/banshee-data/crankbox/internal/monitoring"
	"github.com/banshee-data/crankbox/internal/player"
	"github.com/banshee-data/crankbox/internal/playlist"
	"github.com/banshee-data/crankbox/internal/timeutil"
)

// DefaultTickInterval is the control loop period.
const DefaultTickInterval = 50 * time.Millisecond

// rpmHistorySize is how many accepted samples the status summary covers.
const rpmHistorySize = 32

// Player is the part of the player driver the loop commands.
type Player interface {
	Spawn(track playlist.TrackRef) error
	Load(track playlist.TrackRef) player.Result
	TogglePause() player.Result
	SetSpeed(speed float64) player.Result
	Alive() bool
	Stop() error
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	TickInterval time.Duration
	Curve        SpeedCurve
	// DefaultRPM is the crank speed assumed until the first sample arrives.
	DefaultRPM float64
	Clock      timeutil.Clock
	Logger     *zap.Logger
}

// Loop is the fixed-period control loop. It is the only goroutine that
// commands the player or changes the playback state.
type Loop struct {
	shared *Shared
	seq    *Sequencer
	player Player
	curve  SpeedCurve
	tick   time.Duration
	clock  timeutil.Clock
	logger *zap.Logger

	statsMu    sync.Mutex
	currentRPM float64
	lastSpeed  float64
	rpmHistory []float64
	ticks      uint64
	executed   uint64
	failures   uint64
	lastError  string
}

// NewLoop creates a Loop.
func NewLoop(shared *Shared, seq *Sequencer, p Player, opts LoopOptions) *Loop {
	l := &Loop{
		shared:     shared,
		seq:        seq,
		player:     p,
		curve:      opts.Curve,
		tick:       opts.TickInterval,
		clock:      opts.Clock,
		logger:     monitoring.OrNop(opts.Logger),
		currentRPM: opts.DefaultRPM,
	}
	if l.curve.ReferenceRPM <= 0 {
		l.curve = DefaultSpeedCurve()
	}
	if l.tick <= 0 {
		l.tick = DefaultTickInterval
	}
	if l.clock == nil {
		l.clock = timeutil.RealClock{}
	}
	return l
}

// Run ticks until ctx is cancelled, then stops the player. The player is
// stopped on every return path.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.NewTicker(l.tick)
	defer ticker.Stop()
	defer l.shutdown()

	l.logger.Info("control loop started", zap.Duration("tick", l.tick))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			l.Tick()
		}
	}
}

func (l *Loop) shutdown() {
	if err := l.player.Stop(); err != nil {
		l.logger.Error("stop player", zap.Error(err))
	}
	l.setState(StateIdle, true)
	l.logger.Info("control loop stopped")
}

// Tick runs one iteration: take at most one sample, execute at most one
// command, turn a pending track end into an advance, then set the speed.
func (l *Loop) Tick() {
	l.shared.mu.Lock()
	sample, haveSample := l.shared.popSampleLocked()
	cmd, haveCmd := l.shared.popCommandLocked()
	if l.shared.takeTrackEndedLocked() {
		// queued behind cmd, so it runs on a later tick
		l.seq.requestAdvanceLocked(false)
	}
	l.shared.mu.Unlock()

	l.statsMu.Lock()
	l.ticks++
	if haveSample {
		l.currentRPM = sample.RPM
		l.rpmHistory = append(l.rpmHistory, sample.RPM)
		if len(l.rpmHistory) > rpmHistorySize {
			l.rpmHistory = l.rpmHistory[1:]
		}
	}
	rpm := l.currentRPM
	l.statsMu.Unlock()

	if haveCmd {
		l.execute(cmd)
	}

	if l.shared.Playback().Paused {
		return
	}
	speed := l.curve.Speed(rpm)
	if res := l.player.SetSpeed(speed); res.Err != nil {
		l.logger.Debug("speed not applied", zap.Float64("speed", speed), zap.Error(res.Err))
	}
	l.statsMu.Lock()
	l.lastSpeed = speed
	l.statsMu.Unlock()
}

func (l *Loop) execute(cmd Command) {
	target := cmd.Target()
	switch c := cmd.(type) {
	case SwitchTrack:
		if l.shared.Playback().State == StateIdle || !l.player.Alive() {
			// nothing to pause or load into
			l.start(cmd, target)
			return
		}
		if c.RequiresPauseFirst {
			if res := l.player.TogglePause(); res.Err != nil {
				l.fail(cmd, res.Err)
				return
			}
			l.setState(StatePaused, true)
		}
		if res := l.player.Load(target); res.Err != nil {
			l.fail(cmd, res.Err)
			return
		}
		l.setState(StatePlaying, false)
		l.succeed(cmd, target)
	case AdvanceOnEnd:
		l.start(cmd, target)
	}
}

func (l *Loop) start(cmd Command, target playlist.TrackRef) {
	if err := l.player.Spawn(target); err != nil {
		l.fail(cmd, err)
		return
	}
	l.setState(StatePlaying, false)
	l.succeed(cmd, target)
}

func (l *Loop) succeed(cmd Command, target playlist.TrackRef) {
	l.statsMu.Lock()
	l.executed++
	l.statsMu.Unlock()
	l.logger.Info("now playing", zap.String("track", target.Path), zap.Int("index", target.Index),
		zap.Bool("switched", isSwitch(cmd)))
}

// fail leaves the box with no active track until the next switch request.
// Whatever process is left is stopped so nothing plays while Idle.
func (l *Loop) fail(cmd Command, err error) {
	l.statsMu.Lock()
	l.failures++
	l.lastError = err.Error()
	l.statsMu.Unlock()
	if stopErr := l.player.Stop(); stopErr != nil {
		l.logger.Error("stop player after failure", zap.Error(stopErr))
	}
	l.setState(StateIdle, true)
	l.logger.Error("playback command failed", zap.String("track", cmd.Target().Path),
		zap.Bool("switched", isSwitch(cmd)), zap.Error(err))
}

func (l *Loop) setState(s State, paused bool) {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	l.shared.playback.State = s
	l.shared.playback.Paused = paused
}

func isSwitch(cmd Command) bool {
	_, ok := cmd.(SwitchTrack)
	return ok
}
