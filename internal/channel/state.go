// Package channel runs one transport decoder on a dedicated goroutine and
// publishes completed frames to the shared slot.
package channel

import "fmt"

// State is the lifecycle of an acquisition channel. Exactly one channel is
// active at a time; switching transport kind requires reaching Disconnected
// first.
type State int

const (
	// Disconnected: no transport open. The only state Start accepts.
	Disconnected State = iota
	// Connecting: Start is opening the transport handle.
	Connecting
	// Streaming: the decode goroutine is running.
	Streaming
	// Error: the decode goroutine exited on a transport failure. The
	// reason is held alongside; Stop acknowledges and returns to
	// Disconnected.
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// validTransitions enumerates every legal state change. Transitions are
// total: anything not listed is rejected, which keeps the lifecycle
// exhaustively testable.
var validTransitions = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Streaming, Disconnected, Error},
	Streaming:    {Disconnected, Error},
	Error:        {Disconnected},
}

// canTransition reports whether from -> to is a legal lifecycle step.
func canTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Kind selects the transport a channel runs.
type Kind string

const (
	// KindSerial reads the byte-oriented serial link.
	KindSerial Kind = "serial"
	// KindUDP reads self-contained datagrams from a bound socket.
	KindUDP Kind = "udp"
)

// Valid reports whether k names a known transport.
func (k Kind) Valid() bool {
	return k == KindSerial || k == KindUDP
}
