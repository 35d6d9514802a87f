// Package serialmux reads newline-delimited records from the crank sensor's
// serial port and fans each line out to any number of subscribers.
package serialmux

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/banshee-data/crankbox/internal/lineio"
	"github.com/banshee-data/crankbox/internal/monitoring"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind starts losing lines rather than stalling the reader.
const subscriberBuffer = 64

// SerialMux multiplexes the lines read from a single serial port onto
// subscriber channels.
type SerialMux[T SerialPorter] struct {
	port         T
	logger       *zap.Logger
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	closing      bool
	closingMu    sync.Mutex
	dropped      uint64
	discarded    atomic.Uint64
}

// SerialMuxInterface is the view of a SerialMux the rest of the service uses.
type SerialMuxInterface interface {
	// Subscribe creates a new channel for receiving lines from the serial
	// port. The ID identifies the channel when unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe closes and removes a subscriber channel.
	Unsubscribe(string)
	// Monitor reads lines from the port and forwards them to subscribers
	// until the context is cancelled or the port is closed.
	Monitor(context.Context) error
	// Close closes all subscriber channels and the serial port.
	Close() error
}

// NewSerialMux creates a SerialMux reading from port.
func NewSerialMux[T SerialPorter](port T, logger *zap.Logger) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		logger:      monitoring.OrNop(logger),
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, subscriberBuffer)

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.isClosing() {
		// already closed: hand back a closed channel so callers don't block
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Dropped returns how many line deliveries were skipped because a subscriber
// channel was full.
func (s *SerialMux[T]) Dropped() uint64 {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	return s.dropped
}

// Discarded returns how many overlong records were skipped as line noise.
func (s *SerialMux[T]) Discarded() uint64 {
	return s.discarded.Load()
}

// Monitor monitors the serial port for lines and sends them to subscribers.
// A record longer than lineio.DefaultMaxRecord is logged and skipped.
//
// The blocking read happens on a separate goroutine so that Monitor itself
// returns as soon as ctx is cancelled. That goroutine stays parked in Read
// until the next line arrives or Close unblocks it; the serial driver offers
// no portable way to interrupt a read in flight.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := lineio.NewScanner(s.port, lineio.Options{OnDiscard: func(n int) {
		s.discarded.Add(1)
		s.logger.Warn("discarding overlong serial record", zap.Int("bytes", n))
	}})

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if s.isClosing() {
				return nil
			}
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !s.isClosing() {
						return err
					}
				default:
				}
				return nil
			}
			if s.isClosing() {
				return nil
			}
			s.publish(line)
		}
	}
}

func (s *SerialMux[T]) publish(line string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
			s.dropped++
			s.logger.Warn("subscriber full, dropping serial line",
				zap.String("subscriber", id), zap.String("line", line))
		}
	}
}

func (s *SerialMux[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

// Close closes every subscriber channel and then the port. It is safe to
// call more than once.
func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	if s.closing {
		s.closingMu.Unlock()
		return nil
	}
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()
	return s.port.Close()
}
