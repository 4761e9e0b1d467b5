// Package frame holds the acquisition frame type and the shared slot that
// hands completed frames from the decode goroutine to consumers.
package frame

import "time"

// DefaultCapacity is the pixel count of the TCD-series line sensors the
// reference hardware ships with. Deployments with other sensors override it
// via configuration.
const DefaultCapacity = 3694

// Frame is one complete acquisition cycle of a line sensor: a fixed-capacity
// array of 16-bit samples plus arrival metadata. A Frame is owned exclusively
// by whichever component last produced it; the Slot copies on hand-off.
type Frame struct {
	// Samples always has length == capacity. Indices at or beyond
	// SampleCount carry the previous frame's values rather than zeros, so
	// a truncated transmission updates only the leading samples.
	Samples []uint16

	// SampleCount is how many leading samples were actually received for
	// this frame. Always <= len(Samples).
	SampleCount int

	// Sequence is the source-assigned sequence number for datagram
	// transports, or a locally incremented counter for serial.
	Sequence uint32

	// CapturedAt is when the frame completed decoding (serial) or the
	// sender timestamp mapped to wall time (datagram).
	CapturedAt time.Time
}

// New returns a zero-filled frame with the given sample capacity.
func New(capacity int) *Frame {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Frame{Samples: make([]uint16, capacity)}
}

// Capacity returns the fixed sample capacity of the frame.
func (f *Frame) Capacity() int { return len(f.Samples) }

// CopyInto copies f's contents into dst, which must have the same capacity.
// Metadata is copied along with the samples.
func (f *Frame) CopyInto(dst *Frame) {
	copy(dst.Samples, f.Samples)
	dst.SampleCount = f.SampleCount
	dst.Sequence = f.Sequence
	dst.CapturedAt = f.CapturedAt
}

// Reset zeroes the sample array and metadata. Used when a channel
// disconnects and the slot is logically cleared for the next session.
func (f *Frame) Reset() {
	for i := range f.Samples {
		f.Samples[i] = 0
	}
	f.SampleCount = 0
	f.Sequence = 0
	f.CapturedAt = time.Time{}
}
