package serialmux

import (
	"bytes"
	"errors"
	"sync"
)

// ErrPortClosed is returned by TestableSerialPort after Close.
var ErrPortClosed = errors.New("serial port closed")

// TestableSerialPort implements SerialPorter with configurable behaviour for
// tests. Reads block until data is added or the port is closed, like a real
// device with no read timeout.
type TestableSerialPort struct {
	mu sync.Mutex

	buf *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// CloseError is returned by Close if set
	CloseError error

	closed    bool
	readCalls int
	readCond  *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{buf: bytes.NewBuffer(nil)}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read returns buffered data, blocking while the buffer is empty.
func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.readCalls++
	for {
		if t.closed {
			return 0, ErrPortClosed
		}
		if t.ReadError != nil {
			err := t.ReadError
			t.ReadError = nil
			return 0, err
		}
		if t.buf.Len() > 0 {
			return t.buf.Read(p)
		}
		t.readCond.Wait()
	}
}

// Close marks the port as closed and wakes any blocked reader.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf.Write(data)
	t.readCond.Broadcast()
}

// AddLines appends each line followed by CRLF, as the firmware prints them.
func (t *TestableSerialPort) AddLines(lines ...string) {
	var b bytes.Buffer
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	t.AddReadData(b.Bytes())
}

// FailNextRead makes the next Read return err.
func (t *TestableSerialPort) FailNextRead(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadError = err
	t.readCond.Broadcast()
}

// Closed reports whether Close has been called.
func (t *TestableSerialPort) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// ReadCalls returns the number of Read calls so far.
func (t *TestableSerialPort) ReadCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readCalls
}
