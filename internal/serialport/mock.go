package serialport

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrPortClosed is returned by mock reads and writes after Close.
var ErrPortClosed = errors.New("serial port closed")

// MockPort implements Porter with scripted data, injectable errors, and
// timeout-aware reads, so channel lifecycle and decoder behaviour are
// testable without hardware.
//
// Read mimics go.bug.st/serial timeout semantics: with a read timeout set
// and no buffered data, Read waits up to the timeout and then returns
// (0, nil). With no timeout it blocks until data arrives or the port closes.
type MockPort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	readTimeout time.Duration
	closed      bool

	// ReadErr is returned (once) by the next Read call when set.
	ReadErr error

	// ChunkSize caps how many bytes a single Read returns, to exercise
	// decoder behaviour across fragmented reads. Zero means no cap.
	ChunkSize int

	readCalls int
}

// NewMockPort returns an empty mock port.
func NewMockPort() *MockPort {
	p := &MockPort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// Read returns buffered data, honouring the configured timeout and chunk cap.
func (p *MockPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readCalls++

	if p.closed {
		return 0, ErrPortClosed
	}
	if p.ReadErr != nil {
		err := p.ReadErr
		p.ReadErr = nil
		return 0, err
	}

	if p.readBuf.Len() == 0 {
		if p.readTimeout > 0 {
			// Emulate a timed-out hardware read without holding the
			// lock across the sleep so Push and Close stay usable.
			deadline := time.Now().Add(p.readTimeout)
			for p.readBuf.Len() == 0 && !p.closed && p.ReadErr == nil {
				p.mu.Unlock()
				time.Sleep(time.Millisecond)
				p.mu.Lock()
				if time.Now().After(deadline) {
					return 0, nil
				}
			}
		} else {
			for p.readBuf.Len() == 0 && !p.closed && p.ReadErr == nil {
				p.readCond.Wait()
			}
		}
		if p.closed {
			return 0, ErrPortClosed
		}
		if p.ReadErr != nil {
			err := p.ReadErr
			p.ReadErr = nil
			return 0, err
		}
	}

	if p.ChunkSize > 0 && len(b) > p.ChunkSize {
		b = b[:p.ChunkSize]
	}
	return p.readBuf.Read(b)
}

// Write captures data written to the port.
func (p *MockPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	return p.writeBuf.Write(b)
}

// Close marks the port closed and wakes blocked readers.
func (p *MockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readCond.Broadcast()
	return nil
}

// SetReadTimeout implements Porter.
func (p *MockPort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = timeout
	return nil
}

// Push appends bytes for subsequent reads to return.
func (p *MockPort) Push(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuf.Write(data)
	p.readCond.Broadcast()
}

// FailNextRead arranges for the next Read to return err, simulating a
// device unplug mid-stream.
func (p *MockPort) FailNextRead(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadErr = err
	p.readCond.Broadcast()
}

// Written returns everything written to the port.
func (p *MockPort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeBuf.Bytes()
}

// ReadCalls reports how many Read calls the port has served.
func (p *MockPort) ReadCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readCalls
}

// Closed reports whether Close has been called.
func (p *MockPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// MockFactory implements Factory for tests.
type MockFactory struct {
	mu sync.Mutex

	// Port is handed out by Open when Err is nil.
	Port Porter

	// Err is returned by Open when set (device busy, missing node).
	Err error

	// Opens records the paths passed to Open.
	Opens []string
}

// NewMockFactory returns a factory that always opens port.
func NewMockFactory(port Porter) *MockFactory {
	return &MockFactory{Port: port}
}

// Open records the call and returns the configured port or error.
func (f *MockFactory) Open(path string, opts PortOptions) (Porter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Opens = append(f.Opens, path)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Port, nil
}
