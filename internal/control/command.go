// Package control runs the music box: it owns the queues shared between the
// sensor reader, the player output monitor and the fixed-period control loop,
// sequences the playlist and turns crank speed into playback speed.
package control

import (
	"fmt"

	"github.com/banshee-data/crankbox/internal/playlist"
)

// Command is a queued playback transition. It is either a SwitchTrack or an
// AdvanceOnEnd.
type Command interface {
	Target() playlist.TrackRef
	isCommand()
}

// SwitchTrack changes track while the current one may still be playing.
type SwitchTrack struct {
	To                 playlist.TrackRef
	RequiresPauseFirst bool
}

// AdvanceOnEnd starts the next track after the current one played out.
type AdvanceOnEnd struct {
	To playlist.TrackRef
}

func (c SwitchTrack) Target() playlist.TrackRef  { return c.To }
func (c AdvanceOnEnd) Target() playlist.TrackRef { return c.To }

func (SwitchTrack) isCommand()  {}
func (AdvanceOnEnd) isCommand() {}

func (c SwitchTrack) String() string {
	return fmt.Sprintf("switch to %s (pause first: %t)", c.To, c.RequiresPauseFirst)
}

func (c AdvanceOnEnd) String() string {
	return fmt.Sprintf("advance to %s", c.To)
}
