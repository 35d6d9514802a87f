package serialmux

import (
	"fmt"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// NewRealSerialMux opens the serial device at path and wraps it in a
// SerialMux. Failing to open the device is reported with the path so the
// caller can abort with a clear diagnostic.
func NewRealSerialMux(path string, opts PortOptions, logger *zap.Logger) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial device %s: %w", path, err)
	}

	return NewSerialMux[serial.Port](port, logger), nil
}
