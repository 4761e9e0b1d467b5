package serialport

import (
	"go.bug.st/serial"
)

// RealFactory opens physical serial ports via go.bug.st/serial.
type RealFactory struct{}

// NewRealFactory returns a factory backed by the operating system's serial
// devices.
func NewRealFactory() *RealFactory {
	return &RealFactory{}
}

// Open opens the device at path with the given options.
func (f *RealFactory) Open(path string, opts PortOptions) (Porter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}
