package player

import "strings"

// Capability is a set of slave-mode commands a player understands.
type Capability uint8

const (
	CapLoad Capability = 1 << iota
	CapPause
	CapSeek
	CapSpeed
)

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapLoad, "load"},
	{CapPause, "pause"},
	{CapSeek, "seek"},
	{CapSpeed, "speed"},
}

func (c Capability) String() string {
	var parts []string
	for _, n := range capabilityNames {
		if c&n.c != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Profile declares what an external player supports. Commands outside the
// profile fail with ErrUnsupported instead of being sent.
type Profile struct {
	Name string
	Caps Capability
}

// Supports reports whether every capability in c is available.
func (p Profile) Supports(c Capability) bool { return p.Caps&c == c }

// MPlayer is the profile of mplayer in -slave mode.
var MPlayer = Profile{Name: "mplayer", Caps: CapLoad | CapPause | CapSeek | CapSpeed}
