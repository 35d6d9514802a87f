// Package playlist builds the immutable, ordered list of tracks the music box
// cycles through.
package playlist

import (
	"errors"
	"fmt"
)

// ErrEmptyPlaylist is returned when no playable tracks were found.
var ErrEmptyPlaylist = errors.New("playlist: no tracks")

// TrackRef identifies one track by its path and its position in the playlist.
// Index is an int like the slice index it mirrors; it is never negative.
type TrackRef struct {
	Path  string `json:"path"`
	Index int    `json:"index"`
}

func (t TrackRef) String() string {
	return fmt.Sprintf("#%d %s", t.Index, t.Path)
}

// Playlist is an immutable ordered list of tracks. It always holds at least
// one track.
type Playlist struct {
	tracks []TrackRef
}

// New creates a Playlist from paths in the given order.
func New(paths []string) (*Playlist, error) {
	if len(paths) == 0 {
		return nil, ErrEmptyPlaylist
	}
	tracks := make([]TrackRef, len(paths))
	for i, p := range paths {
		tracks[i] = TrackRef{Path: p, Index: i}
	}
	return &Playlist{tracks: tracks}, nil
}

// Len returns the number of tracks.
func (p *Playlist) Len() int { return len(p.tracks) }

// At returns the track at index i modulo the playlist length, so any index
// (including a negative one) maps to a valid track.
func (p *Playlist) At(i int) TrackRef {
	n := len(p.tracks)
	return p.tracks[((i%n)+n)%n]
}

// Next returns the index following i, wrapping to 0 after the last track.
func (p *Playlist) Next(i int) int {
	return (i + 1) % len(p.tracks)
}

// Tracks returns a copy of the tracks in order.
func (p *Playlist) Tracks() []TrackRef {
	out := make([]TrackRef, len(p.tracks))
	copy(out, p.tracks)
	return out
}
