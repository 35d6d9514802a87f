// Package lineio frames byte streams from devices and child processes into
// bounded records. Unlike bufio.ScanLines, a record longer than the limit
// does not end the scan: its head is dropped and only its last bytes are
// kept, so a burst of line noise costs at most one record.
package lineio

import (
	"bufio"
	"bytes"
	"io"
)

// DefaultMaxRecord is the longest record kept whole. Sensor and player lines
// are well under 200 bytes.
const DefaultMaxRecord = 4096

// TailKeep is how many trailing bytes of an overlong record are returned.
// A reading printed straight after noise still ends the record.
const TailKeep = 256

// minBuffer is the initial scanner buffer and the smallest record limit.
const minBuffer = 512

// Options configures a Scanner.
type Options struct {
	// MaxRecord bounds a record, DefaultMaxRecord when zero.
	MaxRecord int
	// BreakOnCR ends a record at a bare '\r' as well as at '\n'. Empty
	// records are skipped in this mode, so "\r\n" yields nothing extra.
	BreakOnCR bool
	// OnDiscard is called once per overlong record with the number of bytes
	// dropped from its head.
	OnDiscard func(n int)
}

// NewScanner returns a bufio.Scanner over r that never fails with
// bufio.ErrTooLong. Records exclude the terminator and a trailing '\r'.
func NewScanner(r io.Reader, opts Options) *bufio.Scanner {
	max := opts.MaxRecord
	if max <= 0 {
		max = DefaultMaxRecord
	}
	if max < minBuffer {
		max = minBuffer
	}
	s := &splitter{max: max, breakOnCR: opts.BreakOnCR, onDiscard: opts.OnDiscard}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, minBuffer), max)
	scanner.Split(s.split)
	return scanner
}

type splitter struct {
	max       int
	breakOnCR bool
	onDiscard func(n int)

	// discarding is set while an overlong record is being consumed.
	discarding bool
	skipped    int
}

func (s *splitter) terminator(data []byte) int {
	if s.breakOnCR {
		return bytes.IndexAny(data, "\r\n")
	}
	return bytes.IndexByte(data, '\n')
}

// finish ends an overlong record and returns what is kept of it.
func (s *splitter) finish(rest []byte) []byte {
	rest = bytes.TrimSuffix(rest, []byte{'\r'})
	if n := len(rest) - TailKeep; n > 0 {
		s.skipped += n
		rest = rest[n:]
	}
	if s.onDiscard != nil {
		s.onDiscard(s.skipped)
	}
	s.discarding = false
	s.skipped = 0
	if len(rest) == 0 {
		return nil
	}
	return rest
}

// skip drops all but the last TailKeep bytes of data.
func (s *splitter) skip(data []byte) (int, []byte, error) {
	n := len(data) - TailKeep
	if n <= 0 {
		return 0, nil, nil
	}
	s.skipped += n
	return n, nil, nil
}

func (s *splitter) split(data []byte, atEOF bool) (int, []byte, error) {
	i := s.terminator(data)

	if s.discarding {
		switch {
		case i >= 0:
			return i + 1, s.finish(data[:i]), nil
		case atEOF:
			return len(data), s.finish(data), nil
		}
		return s.skip(data)
	}

	switch {
	case i >= 0:
		if s.breakOnCR && i == 0 {
			return 1, nil, nil
		}
		return i + 1, bytes.TrimSuffix(data[:i], []byte{'\r'}), nil
	case len(data) >= s.max:
		s.discarding = true
		return s.skip(data)
	case atEOF && len(data) > 0:
		return len(data), bytes.TrimSuffix(data, []byte{'\r'}), nil
	}
	return 0, nil, nil
}
