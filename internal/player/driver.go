// Package player drives an external media player running in slave mode: one
// child process at a time, commanded over its stdin, with end-of-track
// detection on its output.
package player

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/banshee-data/crankbox/internal/monitoring"
	"github.com/banshee-data/crankbox/internal/playlist"
	"github.com/banshee-data/crankbox/internal/timeutil"
)

var (
	// ErrNoProcess means no player process is running.
	ErrNoProcess = errors.New("player: no process")
	// ErrNoActiveTrack means recovery was needed but nothing was playing.
	ErrNoActiveTrack = errors.New("player: no active track")
	// ErrUnsupported means the player profile lacks the capability.
	ErrUnsupported = errors.New("player: unsupported command")
	// ErrStopTimeout means the process survived SIGTERM and SIGKILL.
	ErrStopTimeout = errors.New("player: process did not exit")
)

// DefaultStopTimeout bounds each wait in Stop.
const DefaultStopTimeout = time.Second

// CommandError is returned for an essential command that could not be
// delivered even after respawning the player.
type CommandError struct {
	Argv      []string
	Attempts  int
	Respawned bool
	Err       error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("player command %q failed after %d attempts (respawned=%t): %v",
		strings.Join(e.Argv, " "), e.Attempts, e.Respawned, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Options configures a Driver.
type Options struct {
	// Command and Args form the argv prefix; the track path is appended.
	Command string
	Args    []string
	// Env is the base environment, os.Environ() when nil.
	Env []string
	// Dir is the working directory of the player, usually the music dir.
	Dir        string
	Transforms []PathTransform
	Profile    Profile
	Spawner    Spawner
	Clock      timeutil.Clock
	Logger     *zap.Logger

	StopTimeout time.Duration
	Essential   Policy
	BestEffort  Policy
}

// Handle describes the current process for readers of its output.
type Handle struct {
	Generation uint64
	Session    uuid.UUID
	Pid        int
	Track      playlist.TrackRef
	Output     io.Reader
}

// Driver owns the single player process. Commands are expected from one
// goroutine (the control loop); Current and Status are safe from any.
type Driver struct {
	command     string
	args        []string
	env         []string
	dir         string
	transforms  []PathTransform
	profile     Profile
	spawner     Spawner
	clock       timeutil.Clock
	logger      *zap.Logger
	stopTimeout time.Duration
	essential   Policy
	bestEffort  Policy

	mu         sync.Mutex
	proc       Process
	session    uuid.UUID
	track      playlist.TrackRef
	hasTrack   bool
	generation uint64

	sent     atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
	respawns atomic.Uint64
}

// NewDriver creates a Driver. No process is started until Spawn.
func NewDriver(opts Options) *Driver {
	d := &Driver{
		command:     opts.Command,
		args:        append([]string(nil), opts.Args...),
		env:         PlayerEnv(opts.Env),
		dir:         opts.Dir,
		transforms:  append([]PathTransform(nil), opts.Transforms...),
		profile:     opts.Profile,
		spawner:     opts.Spawner,
		clock:       opts.Clock,
		logger:      monitoring.OrNop(opts.Logger),
		stopTimeout: opts.StopTimeout,
		essential:   opts.Essential,
		bestEffort:  opts.BestEffort,
	}
	if d.command == "" {
		d.command = "mplayer"
	}
	if d.profile == (Profile{}) {
		d.profile = MPlayer
	}
	if d.spawner == nil {
		d.spawner = ExecSpawner{}
	}
	if d.clock == nil {
		d.clock = timeutil.RealClock{}
	}
	if d.stopTimeout <= 0 {
		d.stopTimeout = DefaultStopTimeout
	}
	if d.essential == (Policy{}) {
		d.essential = EssentialPolicy
	}
	if d.bestEffort == (Policy{}) {
		d.bestEffort = BestEffortPolicy
	}
	return d
}

// PlayerEnv derives the child environment from base: LD_LIBRARY_PATH is
// removed and TERM is forced to xterm-256color.
func PlayerEnv(base []string) []string {
	if base == nil {
		base = os.Environ()
	}
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if strings.HasPrefix(kv, "LD_LIBRARY_PATH=") || strings.HasPrefix(kv, "TERM=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env, "TERM=xterm-256color")
}

// Argv returns the command line used to play track.
func (d *Driver) Argv(track playlist.TrackRef) []string {
	argv := make([]string, 0, len(d.args)+2)
	argv = append(argv, d.command)
	argv = append(argv, d.args...)
	return append(argv, applyTransforms(track.Path, d.transforms))
}

// Spawn starts a player for track. Any running process is stopped first so
// there is never more than one; if it cannot be stopped nothing is started.
func (d *Driver) Spawn(track playlist.TrackRef) error {
	d.mu.Lock()
	old := d.proc
	d.proc = nil
	d.hasTrack = false
	d.mu.Unlock()
	if old != nil {
		if err := d.terminate(old); err != nil {
			d.logger.Error("previous player did not exit", zap.Int("pid", old.Pid()), zap.Error(err))
			return fmt.Errorf("spawn player for %s: %w", track.Path, err)
		}
	}

	argv := d.Argv(track)
	p, err := d.spawner.Spawn(SpawnSpec{Argv: argv, Env: d.env, Dir: d.dir})
	if err != nil {
		return fmt.Errorf("spawn player for %s: %w", track.Path, err)
	}

	d.mu.Lock()
	d.proc = p
	d.track = track
	d.hasTrack = true
	d.session = uuid.New()
	d.generation++
	session := d.session
	d.mu.Unlock()

	d.logger.Info("player started",
		zap.String("track", track.Path),
		zap.Int("index", track.Index),
		zap.Int("pid", p.Pid()),
		zap.Stringer("session", session))
	return nil
}

// Current returns the running process, if any.
func (d *Driver) Current() (Handle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.proc == nil {
		return Handle{}, false
	}
	return Handle{
		Generation: d.generation,
		Session:    d.session,
		Pid:        d.proc.Pid(),
		Track:      d.track,
		Output:     d.proc.Output(),
	}, true
}

// ActiveTrack returns the track the current process was started with.
func (d *Driver) ActiveTrack() (playlist.TrackRef, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.track, d.hasTrack
}

// Alive reports whether a process is running and has not exited.
func (d *Driver) Alive() bool {
	d.mu.Lock()
	p := d.proc
	d.mu.Unlock()
	return p != nil && !exited(p)
}

func exited(p Process) bool {
	select {
	case <-p.Exited():
		return true
	default:
		return false
	}
}

// SendCommand writes argv as one space-separated line. Failures to deliver a
// best-effort command are absorbed and reported as Dropped. An essential
// command that exhausts its retries triggers one respawn on the active track
// and one more write; if that fails too the respawned process is stopped and
// the result carries a *CommandError.
func (d *Driver) SendCommand(crit Criticality, argv ...string) Result {
	line := strings.Join(argv, " ") + "\n"
	policy := d.bestEffort
	if crit == Essential {
		policy = d.essential
	}

	var res Result
	err := ErrNoProcess
	if d.Alive() {
		res.Attempts, err = Retry(d.clock, policy, IsBrokenPipe, func() error { return d.write(line) })
	}
	if err == nil {
		d.sent.Add(1)
		return res
	}

	if crit == BestEffort {
		d.dropped.Add(1)
		d.logger.Debug("dropped best-effort command",
			zap.Strings("argv", argv), zap.Int("attempts", res.Attempts), zap.Error(err))
		res.Dropped = true
		return res
	}
	if !IsBrokenPipe(err) {
		d.failed.Add(1)
		res.Err = &CommandError{Argv: argv, Attempts: res.Attempts, Err: err}
		return res
	}

	track, ok := d.ActiveTrack()
	if !ok {
		d.failed.Add(1)
		res.Err = &CommandError{Argv: argv, Attempts: res.Attempts, Err: fmt.Errorf("%w: %w", ErrNoActiveTrack, err)}
		return res
	}

	d.logger.Warn("player command channel broken, respawning",
		zap.Strings("argv", argv), zap.Int("attempts", res.Attempts), zap.String("track", track.Path))
	res.Respawned = true
	d.respawns.Add(1)
	if err := d.Spawn(track); err != nil {
		d.failed.Add(1)
		res.Err = &CommandError{Argv: argv, Attempts: res.Attempts, Respawned: true, Err: err}
		return res
	}
	res.Attempts++
	if err := d.write(line); err != nil {
		d.failed.Add(1)
		if stopErr := d.Stop(); stopErr != nil {
			d.logger.Error("stop respawned player", zap.Error(stopErr))
		}
		res.Err = &CommandError{Argv: argv, Attempts: res.Attempts, Respawned: true, Err: err}
		return res
	}
	d.sent.Add(1)
	return res
}

func (d *Driver) write(line string) error {
	d.mu.Lock()
	p := d.proc
	d.mu.Unlock()
	if p == nil {
		return ErrNoProcess
	}
	_, err := io.WriteString(p.Stdin(), line)
	return err
}

func (d *Driver) unsupported(c Capability) Result {
	return Result{Err: fmt.Errorf("%w: %s does not support %s", ErrUnsupported, d.profile.Name, c)}
}

// Load replaces the playing file with track.
func (d *Driver) Load(track playlist.TrackRef) Result {
	if !d.profile.Supports(CapLoad) {
		return d.unsupported(CapLoad)
	}
	res := d.SendCommand(Essential, "loadfile", quoteArg(applyTransforms(track.Path, d.transforms)), "0")
	if res.Err == nil {
		d.mu.Lock()
		d.track = track
		d.hasTrack = true
		d.mu.Unlock()
	}
	return res
}

// TogglePause pauses or resumes playback.
func (d *Driver) TogglePause() Result {
	if !d.profile.Supports(CapPause) {
		return d.unsupported(CapPause)
	}
	return d.SendCommand(Essential, "pause")
}

// SeekRelative jumps secs seconds forward, or back when negative.
func (d *Driver) SeekRelative(secs int) Result {
	if !d.profile.Supports(CapSeek) {
		return d.unsupported(CapSeek)
	}
	return d.SendCommand(BestEffort, "seek", strconv.Itoa(secs), "0")
}

// SetSpeed sets the playback speed factor.
func (d *Driver) SetSpeed(speed float64) Result {
	if !d.profile.Supports(CapSpeed) {
		return d.unsupported(CapSpeed)
	}
	return d.SendCommand(BestEffort, "speed_set", strconv.FormatFloat(speed, 'f', -1, 64))
}

// Stop terminates the running process, if any. It waits at most twice the
// stop timeout.
func (d *Driver) Stop() error {
	d.mu.Lock()
	p := d.proc
	d.proc = nil
	d.hasTrack = false
	d.mu.Unlock()
	if p == nil {
		return nil
	}
	return d.terminate(p)
}

func (d *Driver) terminate(p Process) error {
	defer p.Close()
	if !exited(p) {
		if err := p.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			d.logger.Debug("signal player", zap.Int("pid", p.Pid()), zap.Error(err))
		}
	}
	_ = p.Stdin().Close()

	select {
	case <-p.Exited():
		return nil
	case <-d.clock.After(d.stopTimeout):
	}

	d.logger.Warn("player ignored SIGTERM, killing", zap.Int("pid", p.Pid()))
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill player %d: %w", p.Pid(), err)
	}
	select {
	case <-p.Exited():
		return nil
	case <-d.clock.After(d.stopTimeout):
		return fmt.Errorf("%w: pid %d", ErrStopTimeout, p.Pid())
	}
}

// Status is a point-in-time view of the driver.
type Status struct {
	Alive    bool               `json:"alive"`
	Pid      int                `json:"pid,omitempty"`
	Session  string             `json:"session,omitempty"`
	Track    *playlist.TrackRef `json:"track,omitempty"`
	Sent     uint64             `json:"commands_sent"`
	Dropped  uint64             `json:"commands_dropped"`
	Failed   uint64             `json:"commands_failed"`
	Respawns uint64             `json:"respawns"`
}

// Status returns the current driver state and counters.
func (d *Driver) Status() Status {
	st := Status{
		Sent:     d.sent.Load(),
		Dropped:  d.dropped.Load(),
		Failed:   d.failed.Load(),
		Respawns: d.respawns.Load(),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.proc != nil {
		st.Alive = !exited(d.proc)
		st.Pid = d.proc.Pid()
		st.Session = d.session.String()
	}
	if d.hasTrack {
		t := d.track
		st.Track = &t
	}
	return st
}
