// Package telemetry turns lines from the crank sensor into typed events and
// rate-limits the RPM samples forwarded to the control loop.
package telemetry

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrDecode is returned for lines that are not valid UTF-8, typically
	// garbage clocked in while the sensor resets.
	ErrDecode = errors.New("telemetry: line is not valid UTF-8")
	// ErrMalformed is returned for rate reports whose numbers do not parse.
	ErrMalformed = errors.New("telemetry: malformed rate report")
)

// The firmware prints e.g. "Average RPM (Last 5000 ms): -12.50". Unanchored so
// a partially garbled line prefix still matches.
var rateReport = regexp.MustCompile(`Average RPM \(Last (\d+) ms\): ([-+]?\d+(?:\.\d+)?)`)

const (
	buttonPressedToken  = "button1_pressed"
	buttonReleasedToken = "button1_released"
)

// Kind discriminates the Event variants.
type Kind int

const (
	KindNone Kind = iota
	KindSample
	KindButton
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSample:
		return "sample"
	case KindButton:
		return "button"
	default:
		return "unknown"
	}
}

// Direction is the sense of rotation implied by the sign of a reading. It is
// recorded but not used for playback; speed follows the magnitude only.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Button is a discrete push-button transition.
type Button int

const (
	ButtonPressed Button = iota
	ButtonReleased
)

func (b Button) String() string {
	if b == ButtonReleased {
		return "released"
	}
	return "pressed"
}

// Sample is one averaged crank-rate report.
type Sample struct {
	RPM        float64 // magnitude, always >= 0
	ObservedAt time.Time
	IntervalMs int // averaging window reported by the sensor
	Direction  Direction
}

// Event is the result of parsing one line.
type Event struct {
	Kind   Kind
	Sample Sample // valid when Kind == KindSample
	Button Button // valid when Kind == KindButton
}

// ParseLine classifies a single line of sensor output observed at the given
// time. Lines that match nothing (boot banners, DIP switch reports) yield an
// Event with KindNone and a nil error. It performs no I/O.
func ParseLine(line string, at time.Time) (Event, error) {
	if !utf8.ValidString(line) {
		return Event{}, ErrDecode
	}
	line = strings.TrimSpace(line)

	switch line {
	case buttonPressedToken:
		return Event{Kind: KindButton, Button: ButtonPressed}, nil
	case buttonReleasedToken:
		return Event{Kind: KindButton, Button: ButtonReleased}, nil
	}

	m := rateReport.FindStringSubmatch(line)
	if m == nil {
		return Event{}, nil
	}
	interval, err := strconv.Atoi(m[1])
	if err != nil {
		return Event{}, fmt.Errorf("%w: window %q: %v", ErrMalformed, m[1], err)
	}
	value, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Event{}, fmt.Errorf("%w: rate %q: %v", ErrMalformed, m[2], err)
	}

	dir := Forward
	if math.Signbit(value) && value != 0 {
		dir = Reverse
	}
	return Event{
		Kind: KindSample,
		Sample: Sample{
			RPM:        math.Abs(value),
			ObservedAt: at,
			IntervalMs: interval,
			Direction:  dir,
		},
	}, nil
}
