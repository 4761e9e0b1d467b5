// Package serialport abstracts the serial transport so the acquisition
// channel can run against real hardware or a scripted mock.
package serialport

import (
	"io"
	"time"
)

// Porter is the minimal interface the channel needs from a serial port.
// go.bug.st/serial ports satisfy it, as does the mock in this package.
type Porter interface {
	io.ReadWriter
	io.Closer

	// SetReadTimeout bounds how long Read blocks. The channel sets a
	// short timeout (defaults to 10ms) so the stop flag is observed
	// promptly; a timed-out Read returns n == 0 with a nil error.
	SetReadTimeout(timeout time.Duration) error
}

// Factory opens serial ports. Injected into the channel so tests substitute
// mocks without touching device nodes.
type Factory interface {
	Open(path string, opts PortOptions) (Porter, error)
}
