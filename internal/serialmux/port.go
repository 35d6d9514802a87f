package serialmux

import "io"

// SerialPorter defines the minimal interface needed for a serial port. The
// sensor only talks; nothing is ever written back to it.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.Reader
	io.Closer
}
