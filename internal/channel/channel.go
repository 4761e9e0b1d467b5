package channel

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spectra-data/linescan/internal/decode"
	"github.com/spectra-data/linescan/internal/frame"
	"github.com/spectra-data/linescan/internal/monitoring"
	"github.com/spectra-data/linescan/internal/network"
	"github.com/spectra-data/linescan/internal/serialport"
)

var (
	// ErrTransportUnavailable is returned by Start when the serial device
	// cannot be opened or the UDP port cannot be bound.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrBusy is returned by Start while a channel is Connecting or
	// Streaming. Stop must complete before a new transport starts.
	ErrBusy = errors.New("channel busy")

	// ErrUnknownKind is returned by Start for a transport kind that is
	// neither serial nor udp.
	ErrUnknownKind = errors.New("unknown transport kind")
)

const (
	// defaultReadTimeout bounds each transport read so the stop flag is
	// observed promptly; Stop blocks for at most about one interval.
	defaultReadTimeout = 10 * time.Millisecond

	// defaultRcvBuf is the UDP receive buffer request; full-capacity
	// frames are ~7.4KB so this rides out consumer stalls.
	defaultRcvBuf = 256 * 1024

	serialReadChunk = 4096
)

// Config selects and parameterizes the transport for one Start call.
type Config struct {
	Kind Kind

	// Serial transport.
	SerialPath    string
	SerialOptions serialport.PortOptions

	// UDP transport.
	UDPAddress string
	RcvBuf     int

	// ReadTimeout bounds individual transport reads. Defaults to 10ms.
	ReadTimeout time.Duration
}

// Deps are the collaborators a Channel is wired with at construction.
// Factories default to the real transports when nil.
type Deps struct {
	Slot  *frame.Slot
	Stats *frame.Stats

	SerialFactory serialport.Factory
	SocketFactory network.SocketFactory

	// OnPublish, when set, is invoked after every publish with the
	// sequence number and sample count. It must not block; the API's
	// event stream hangs off it.
	OnPublish func(sequence uint32, sampleCount int)
}

// Channel owns the transport handle and drives exactly one decoder in a
// dedicated goroutine until stopped. The transport handle is touched only by
// that goroutine; consumers interact through the slot and stats.
type Channel struct {
	slot  *frame.Slot
	stats *frame.Stats

	serialFactory serialport.Factory
	socketFactory network.SocketFactory
	onPublish     func(uint32, int)

	mu        sync.Mutex
	state     State
	lastErr   error
	kind      Kind
	sessionID string
	stop      chan struct{}
	stopped   bool
	done      chan struct{}
}

// New returns a disconnected channel wired to deps.
func New(deps Deps) *Channel {
	if deps.Slot == nil {
		deps.Slot = frame.NewSlot(frame.DefaultCapacity)
	}
	if deps.Stats == nil {
		deps.Stats = frame.NewStats()
	}
	if deps.SerialFactory == nil {
		deps.SerialFactory = serialport.NewRealFactory()
	}
	if deps.SocketFactory == nil {
		deps.SocketFactory = network.NewRealSocketFactory()
	}
	return &Channel{
		slot:          deps.Slot,
		stats:         deps.Stats,
		serialFactory: deps.SerialFactory,
		socketFactory: deps.SocketFactory,
		onPublish:     deps.OnPublish,
		state:         Disconnected,
	}
}

// Slot returns the shared frame slot consumers read from.
func (c *Channel) Slot() *frame.Slot { return c.slot }

// Stats returns the throughput tracker.
func (c *Channel) Stats() *frame.Stats { return c.stats }

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the transport failure recorded by the decode goroutine, if the
// channel is in the Error state.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Kind returns the transport kind of the current or most recent session.
func (c *Channel) Kind() Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kind
}

// SessionID returns the ID minted for the current or most recent session,
// or "" before the first Start.
func (c *Channel) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Start opens the transport for cfg.Kind and spawns the decode goroutine.
// It fails with ErrBusy unless the channel is Disconnected, and with
// ErrTransportUnavailable (wrapped around the underlying cause) when the
// device cannot be opened or the port cannot be bound.
func (c *Channel) Start(cfg Config) error {
	if !cfg.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.RcvBuf <= 0 {
		cfg.RcvBuf = defaultRcvBuf
	}

	c.mu.Lock()
	if !canTransition(c.state, Connecting) {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrBusy, state)
	}
	c.state = Connecting
	c.mu.Unlock()

	var run func(stop chan struct{}, done chan struct{})
	var err error
	switch cfg.Kind {
	case KindSerial:
		run, err = c.openSerial(cfg)
	case KindUDP:
		run, err = c.openUDP(cfg)
	}
	if err != nil {
		c.mu.Lock()
		c.state = Disconnected
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}

	c.mu.Lock()
	c.kind = cfg.Kind
	c.sessionID = uuid.New().String()
	c.lastErr = nil
	c.stop = make(chan struct{})
	c.stopped = false
	c.done = make(chan struct{})
	c.state = Streaming
	stop, done := c.stop, c.done
	c.mu.Unlock()

	c.stats.Reset()
	monitoring.Logf("channel started: kind=%s session=%s", cfg.Kind, c.SessionID())
	go run(stop, done)
	return nil
}

// Stop signals the decode goroutine, waits for it to exit (bounded by one
// read timeout), resets the slot, and returns to Disconnected. Always safe
// to call, including when never started.
func (c *Channel) Stop() {
	c.mu.Lock()
	if c.state == Disconnected {
		c.mu.Unlock()
		return
	}
	if c.stop != nil && !c.stopped {
		close(c.stop)
		c.stopped = true
	}
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}

	c.mu.Lock()
	c.state = Disconnected
	c.mu.Unlock()

	c.slot.Reset()
	monitoring.Logf("channel stopped")
}

// fail records a mid-stream transport loss. Called only from the decode
// goroutine, which exits immediately after; the error is surfaced through
// State/Err, never thrown across the goroutine boundary.
func (c *Channel) fail(err error) {
	c.mu.Lock()
	if canTransition(c.state, Error) {
		c.state = Error
		c.lastErr = err
	}
	c.mu.Unlock()
	monitoring.Logf("transport lost: %v", err)
}

// publish hands one completed frame to the slot and updates statistics.
func (c *Channel) publish(f *frame.Frame, wireBytes int) {
	c.slot.Publish(f)
	c.stats.RecordPublish(f.Sequence, f.SampleCount, wireBytes)
	if c.onPublish != nil {
		c.onPublish(f.Sequence, f.SampleCount)
	}
}

// openSerial opens the serial device and returns its decode loop.
func (c *Channel) openSerial(cfg Config) (func(chan struct{}, chan struct{}), error) {
	port, err := c.serialFactory.Open(cfg.SerialPath, cfg.SerialOptions)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, err
	}

	capacity := c.slot.Capacity()
	return func(stop, done chan struct{}) {
		defer close(done)
		defer port.Close()

		dec := decode.NewSerialDecoder(capacity)
		buf := make([]byte, serialReadChunk)
		for {
			select {
			case <-stop:
				return
			default:
			}

			n, err := port.Read(buf)
			if err != nil {
				if errors.Is(err, io.EOF) {
					// Device unplugged: reads collapse to EOF.
					c.fail(fmt.Errorf("serial read: %w", err))
					return
				}
				select {
				case <-stop:
					return
				default:
				}
				c.fail(fmt.Errorf("serial read: %w", err))
				return
			}
			if n == 0 {
				// Read timeout; check the stop flag and the
				// stats window.
				if c.stats.Tick() {
					c.stats.LogRate()
				}
				continue
			}

			for _, f := range dec.Feed(buf[:n]) {
				c.publish(f, f.SampleCount*4+1)
			}
			if c.stats.Tick() {
				c.stats.LogRate()
			}
		}
	}, nil
}

// openUDP binds the socket and returns its decode loop.
func (c *Channel) openUDP(cfg Config) (func(chan struct{}, chan struct{}), error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.UDPAddress)
	if err != nil {
		return nil, err
	}
	sock, err := c.socketFactory.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	if err := sock.SetReadBuffer(cfg.RcvBuf); err != nil {
		monitoring.Logf("warning: failed to set UDP receive buffer to %d: %v", cfg.RcvBuf, err)
	}

	capacity := c.slot.Capacity()
	readTimeout := cfg.ReadTimeout
	return func(stop, done chan struct{}) {
		defer close(done)
		defer sock.Close()

		// Scratch frame reused across datagrams so unreceived tail
		// indices keep their previous values, matching the serial
		// decoder's partial-update semantics.
		scratch := frame.New(capacity)
		buf := make([]byte, decode.HeaderSize+2*capacity+128)
		var deadlineErrLogged bool

		for {
			select {
			case <-stop:
				return
			default:
			}

			if err := sock.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
				if !deadlineErrLogged {
					monitoring.Logf("failed to set read deadline: %v", err)
					deadlineErrLogged = true
				}
			}

			n, _, err := sock.ReadFromUDP(buf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					if c.stats.Tick() {
						c.stats.LogRate()
					}
					continue
				}
				select {
				case <-stop:
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				c.fail(fmt.Errorf("udp read: %w", err))
				return
			}

			if err := decode.DecodeDatagram(buf[:n], scratch); err != nil {
				// Malformed datagrams are dropped without
				// surfacing an error; the next one stands alone.
				continue
			}
			c.publish(scratch, n)

			if c.stats.Tick() {
				c.stats.LogRate()
			}
		}
	}, nil
}
