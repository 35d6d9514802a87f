package serialmux

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startMonitor(t *testing.T, mux *SerialMux[*TestableSerialPort]) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return line
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for line")
		return ""
	}
}

func TestSerialMux_SubscribeUnique(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort(), nil)

	id1, ch1 := mux.Subscribe()
	id2, ch2 := mux.Subscribe()

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
	assert.NotNil(t, ch1)
	assert.NotNil(t, ch2)
	assert.Len(t, mux.subscribers, 2)
}

func TestSerialMux_Unsubscribe(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort(), nil)
	id, ch := mux.Subscribe()

	mux.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
	assert.Empty(t, mux.subscribers)

	// unknown IDs are ignored
	mux.Unsubscribe("non-existent-id")
}

func TestSerialMux_MonitorFansOutLines(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, nil)
	_, a := mux.Subscribe()
	_, b := mux.Subscribe()
	startMonitor(t, mux)

	port.AddLines("Average RPM (Last 5000 ms): 21.50", "button1_pressed")

	assert.Equal(t, "Average RPM (Last 5000 ms): 21.50", receive(t, a))
	assert.Equal(t, "button1_pressed", receive(t, a))
	assert.Equal(t, "Average RPM (Last 5000 ms): 21.50", receive(t, b))
	assert.Equal(t, "button1_pressed", receive(t, b))
}

func TestSerialMux_MonitorReturnsOnCancel(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, nil)
	cancel, done := startMonitor(t, mux)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	require.NoError(t, mux.Close())
}

func TestSerialMux_MonitorReturnsReadError(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, nil)
	_, done := startMonitor(t, mux)

	readErr := errors.New("device unplugged")
	port.FailNextRead(readErr)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, readErr)
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return the read error")
	}
}

func TestSerialMux_LineNoiseIsSkipped(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, nil)
	_, ch := mux.Subscribe()
	_, done := startMonitor(t, mux)

	port.AddReadData(bytes.Repeat([]byte{0xff}, 70*1024))
	port.AddLines("Average RPM (Last 5000 ms): 20.00", "button1_released")

	tail := receive(t, ch)
	assert.True(t, strings.HasSuffix(tail, "Average RPM (Last 5000 ms): 20.00"), "got %q", tail)
	assert.Equal(t, "button1_released", receive(t, ch))
	assert.Equal(t, uint64(1), mux.Discarded())
	select {
	case err := <-done:
		t.Fatalf("Monitor returned on line noise: %v", err)
	default:
	}
}

func TestSerialMux_CloseStopsMonitorCleanly(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, nil)
	_, ch := mux.Subscribe()
	_, done := startMonitor(t, mux)

	require.NoError(t, mux.Close())
	assert.True(t, port.Closed())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return after Close")
	}

	_, ok := <-ch
	assert.False(t, ok)

	// idempotent
	assert.NoError(t, mux.Close())

	// subscribing after close yields a closed channel
	_, late := mux.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestSerialMux_FullSubscriberDropsLines(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, nil)
	_, slow := mux.Subscribe()
	_, fast := mux.Subscribe()
	startMonitor(t, mux)

	total := subscriberBuffer + 5
	for i := 0; i < total; i++ {
		port.AddLines("button1_released")
		receive(t, fast)
	}

	assert.Len(t, slow, subscriberBuffer)
	assert.Equal(t, uint64(5), mux.Dropped())
}
