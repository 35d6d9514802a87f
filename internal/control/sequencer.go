package control

import (
	"go.uber.org/zap"

	"github.com/banshee-data/crankbox/internal/monitoring"
	"github.com/banshee-data/crankbox/internal/playlist"
	"github.com/banshee-data/crankbox/internal/telemetry"
)

// Sequencer walks the playlist. It moves the current index as soon as an
// advance is requested, so back-to-back requests land on consecutive tracks
// no matter when the commands execute.
type Sequencer struct {
	shared   *Shared
	playlist *playlist.Playlist
	logger   *zap.Logger
}

// NewSequencer creates a Sequencer over a non-empty playlist.
func NewSequencer(shared *Shared, pl *playlist.Playlist, logger *zap.Logger) *Sequencer {
	return &Sequencer{shared: shared, playlist: pl, logger: monitoring.OrNop(logger)}
}

// Playlist returns the playlist being sequenced.
func (q *Sequencer) Playlist() *playlist.Playlist { return q.playlist }

// Begin queues the current track to start playing without moving the index.
func (q *Sequencer) Begin() {
	q.shared.mu.Lock()
	defer q.shared.mu.Unlock()
	target := q.playlist.At(q.shared.playback.CurrentIndex)
	q.shared.enqueueLocked(AdvanceOnEnd{To: target})
	q.logger.Info("queued first track", zap.String("track", target.Path))
}

// RequestAdvance moves to the next track, wrapping at the end, and queues
// the command that plays it.
func (q *Sequencer) RequestAdvance(mustPauseFirst bool) Command {
	q.shared.mu.Lock()
	defer q.shared.mu.Unlock()
	return q.requestAdvanceLocked(mustPauseFirst)
}

// requestAdvanceLocked is RequestAdvance for callers already holding the
// shared lock.
func (q *Sequencer) requestAdvanceLocked(mustPauseFirst bool) Command {
	next := q.playlist.Next(q.shared.playback.CurrentIndex)
	q.shared.playback.CurrentIndex = next
	target := q.playlist.At(next)

	var c Command
	if mustPauseFirst {
		c = SwitchTrack{To: target, RequiresPauseFirst: true}
	} else {
		c = AdvanceOnEnd{To: target}
	}
	q.shared.enqueueLocked(c)
	q.logger.Debug("advance requested", zap.Int("index", next), zap.Bool("pause_first", mustPauseFirst))
	return c
}

// HandleButton advances on release. Presses are ignored.
func (q *Sequencer) HandleButton(b telemetry.Button) {
	if b == telemetry.ButtonReleased {
		q.RequestAdvance(true)
	}
}
