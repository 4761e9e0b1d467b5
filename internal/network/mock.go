package network

import (
	"net"
	"sync"
	"time"
)

// timeoutError satisfies net.Error with Timeout() == true, matching what a
// real socket returns when a read deadline expires.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// MockSocket implements UDPSocket over an in-memory datagram queue with
// deadline semantics, so the channel's read loop runs unmodified in tests.
type MockSocket struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    [][]byte
	deadline time.Time
	closed   bool

	// ReadErr is returned (once) by the next ReadFromUDP when set.
	ReadErr error
}

// NewMockSocket returns an empty mock socket.
func NewMockSocket() *MockSocket {
	s := &MockSocket{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Send queues one datagram for a future ReadFromUDP.
func (s *MockSocket) Send(pkt []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(pkt))
	copy(cp, pkt)
	s.queue = append(s.queue, cp)
	s.cond.Broadcast()
}

// FailNextRead arranges for the next read to return err.
func (s *MockSocket) FailNextRead(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReadErr = err
	s.cond.Broadcast()
}

// ReadFromUDP pops the next queued datagram, waiting until the deadline when
// the queue is empty.
func (s *MockSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.closed {
			return 0, nil, net.ErrClosed
		}
		if s.ReadErr != nil {
			err := s.ReadErr
			s.ReadErr = nil
			return 0, nil, err
		}
		if len(s.queue) > 0 {
			pkt := s.queue[0]
			s.queue = s.queue[1:]
			n := copy(b, pkt)
			return n, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 49152}, nil
		}
		deadline := s.deadline
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return 0, nil, timeoutError{}
		}
		// Poll rather than track per-deadline timers; test deadlines
		// are tens of milliseconds.
		s.mu.Unlock()
		time.Sleep(time.Millisecond)
		s.mu.Lock()
	}
}

// SetReadBuffer is a no-op for the mock.
func (s *MockSocket) SetReadBuffer(bytes int) error { return nil }

// SetReadDeadline records the deadline applied to empty-queue reads.
func (s *MockSocket) SetReadDeadline(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline = t
	return nil
}

// Close marks the socket closed and wakes blocked readers.
func (s *MockSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}

// LocalAddr reports a fixed loopback address.
func (s *MockSocket) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

// MockSocketFactory implements SocketFactory for tests.
type MockSocketFactory struct {
	mu sync.Mutex

	// Socket is handed out by ListenUDP when Err is nil.
	Socket UDPSocket

	// Err simulates a bind failure (port in use).
	Err error

	// Binds records the addresses passed to ListenUDP.
	Binds []string
}

// NewMockSocketFactory returns a factory that always yields sock.
func NewMockSocketFactory(sock UDPSocket) *MockSocketFactory {
	return &MockSocketFactory{Socket: sock}
}

// ListenUDP records the call and returns the configured socket or error.
func (f *MockSocketFactory) ListenUDP(netw string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Binds = append(f.Binds, laddr.String())
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Socket, nil
}
