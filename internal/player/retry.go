package player

import (
	"errors"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/banshee-data/crankbox/internal/timeutil"
)

// MaxAttempts caps the total number of writes any single command may make,
// whatever its Policy says.
const MaxAttempts = 1000

// Criticality decides what happens when a command cannot be delivered.
type Criticality int

const (
	// BestEffort commands are retried briefly and then dropped.
	BestEffort Criticality = iota
	// Essential commands are retried, then the player is respawned on the
	// active track and the command is sent once more.
	Essential
)

func (c Criticality) String() string {
	if c == Essential {
		return "essential"
	}
	return "best-effort"
}

// Policy is a bounded retry budget: one initial attempt, Rapid immediate
// retries, then Delayed retries each preceded by Backoff.
type Policy struct {
	Rapid   int
	Delayed int
	Backoff time.Duration
}

var (
	// EssentialPolicy is used for load and pause.
	EssentialPolicy = Policy{Rapid: 2, Delayed: 3, Backoff: 500 * time.Millisecond}
	// BestEffortPolicy is used for speed and seek.
	BestEffortPolicy = Policy{Rapid: 1, Delayed: 2, Backoff: 20 * time.Millisecond}
)

// Attempts returns the total number of attempts the policy allows, clamped
// to [1, MaxAttempts].
func (p Policy) Attempts() int {
	n := 1 + max(p.Rapid, 0) + max(p.Delayed, 0)
	return min(n, MaxAttempts)
}

// Retry calls op until it succeeds, returns an error retryable rejects, or
// the policy is exhausted. It returns the number of calls made and the last
// error.
func Retry(clock timeutil.Clock, p Policy, retryable func(error) bool, op func() error) (int, error) {
	budget := p.Attempts()
	rapid := max(p.Rapid, 0)
	var err error
	for attempt := 1; attempt <= budget; attempt++ {
		if attempt > 1+rapid && p.Backoff > 0 {
			clock.Sleep(p.Backoff)
		}
		if err = op(); err == nil {
			return attempt, nil
		}
		if !retryable(err) {
			return attempt, err
		}
	}
	return budget, err
}

// IsBrokenPipe reports whether err means the command channel is gone: the
// child closed its end, the channel was already closed, or there is no
// process at all.
func IsBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, ErrNoProcess)
}

// Result is the outcome of one command.
type Result struct {
	// Attempts counts every write, including the one after a respawn.
	Attempts int
	// Respawned is set when the player was restarted to recover.
	Respawned bool
	// Dropped is set when a best-effort command was given up on.
	Dropped bool
	Err     error
}

// OK reports whether the command was delivered.
func (r Result) OK() bool { return r.Err == nil && !r.Dropped }
