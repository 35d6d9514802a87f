package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/banshee-data/crankbox/internal/timeutil"
)

type recordingSink struct {
	mu      sync.Mutex
	samples []Sample
	buttons []Button
}

func (r *recordingSink) PushTelemetry(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func (r *recordingSink) HandleButton(b Button) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buttons = append(r.buttons, b)
}

func newTestReader(clock timeutil.Clock, sink *recordingSink, logger *zap.Logger) *Reader {
	return NewReader(ReaderConfig{
		Debouncer: NewDebouncer(500 * time.Millisecond),
		Samples:   sink,
		Buttons:   sink,
		Clock:     clock,
		Logger:    logger,
	})
}

func TestReader_RoutesAndDebounces(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC))
	sink := &recordingSink{}
	r := newTestReader(clock, sink, nil)

	r.HandleLine("Average RPM (Last 5000 ms): 20.00")
	clock.Advance(100 * time.Millisecond)
	r.HandleLine("Average RPM (Last 5000 ms): 25.00")
	r.HandleLine("button1_pressed")
	r.HandleLine("button1_released")
	clock.Advance(500 * time.Millisecond)
	r.HandleLine("Average RPM (Last 5000 ms): 30.00")
	r.HandleLine("dip1_state off")

	require.Len(t, sink.samples, 2)
	assert.Equal(t, 20.0, sink.samples[0].RPM)
	assert.Equal(t, 30.0, sink.samples[1].RPM)
	assert.Equal(t, []Button{ButtonPressed, ButtonReleased}, sink.buttons)

	assert.Equal(t, Stats{Lines: 6, SamplesAccepted: 2, SamplesDropped: 1}, r.Stats())
}

func TestReader_DecodeErrorIsSoft(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := &recordingSink{}
	r := newTestReader(timeutil.NewMockClock(time.Unix(0, 0)), sink, zap.New(core))

	lines := make(chan string, 3)
	lines <- "\xff\xfe\xfd"
	lines <- "button1_released"
	close(lines)

	require.NoError(t, r.Run(context.Background(), lines))
	assert.Equal(t, []Button{ButtonReleased}, sink.buttons)
	assert.Equal(t, uint64(1), r.Stats().DecodeErrors)
	assert.Equal(t, 1, logs.FilterMessage("skipping unreadable sensor line").Len())
}

func TestReader_RunStopsOnCancel(t *testing.T) {
	r := NewReader(ReaderConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, make(chan string)) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
