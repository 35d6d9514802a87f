package control

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/crankbox/internal/player"
	"github.com/banshee-data/crankbox/internal/playlist"
)

// fakePlayer records every call the loop makes, in order.
type fakePlayer struct {
	mu       sync.Mutex
	calls    []string
	alive    bool
	spawnErr error
	pauseErr error
	loadErr  error
}

func (f *fakePlayer) record(c string) {
	f.calls = append(f.calls, c)
}

func (f *fakePlayer) Spawn(t playlist.TrackRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("spawn " + t.Path)
	if f.spawnErr != nil {
		f.alive = false
		return f.spawnErr
	}
	f.alive = true
	return nil
}

func (f *fakePlayer) Load(t playlist.TrackRef) player.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("load " + t.Path)
	return player.Result{Attempts: 1, Err: f.loadErr}
}

func (f *fakePlayer) TogglePause() player.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("pause")
	return player.Result{Attempts: 1, Err: f.pauseErr}
}

func (f *fakePlayer) SetSpeed(speed float64) player.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("speed %.3f", speed))
	return player.Result{Attempts: 1}
}

func (f *fakePlayer) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakePlayer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stop")
	f.alive = false
	return nil
}

// take returns and clears the recorded calls.
func (f *fakePlayer) take() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.calls
	f.calls = nil
	return out
}

func threeTracks(t *testing.T) *playlist.Playlist {
	t.Helper()
	pl, err := playlist.New([]string{"one.mp3", "two.mp3", "three.mp3"})
	require.NoError(t, err)
	return pl
}

type fixture struct {
	shared *Shared
	seq    *Sequencer
	player *fakePlayer
	loop   *Loop
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	shared := NewShared(0)
	seq := NewSequencer(shared, threeTracks(t), nil)
	p := &fakePlayer{}
	loop := NewLoop(shared, seq, p, LoopOptions{DefaultRPM: DefaultReferenceRPM})
	return &fixture{shared: shared, seq: seq, player: p, loop: loop}
}
