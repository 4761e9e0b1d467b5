package frame

import (
	"sync"
	"time"
)

// Slot is the single-slot hand-off between the acquisition goroutine and any
// number of readers. The decode goroutine is the sole writer; readers copy
// the latest frame out under the lock and never hold it across further work.
//
// A Slot is created once at startup and passed by handle to both sides; it is
// logically reset on disconnect, never destroyed.
type Slot struct {
	mu           sync.Mutex
	latest       *Frame
	publishCount uint64
}

// NewSlot returns a slot whose initial snapshot is a zero-filled frame of the
// given capacity. A reader that snapshots before the first publish sees that
// initial state, not an error.
func NewSlot(capacity int) *Slot {
	return &Slot{latest: New(capacity)}
}

// Capacity returns the sample capacity the slot was created with.
func (s *Slot) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest.Capacity()
}

// Publish replaces the slot's contents with f and increments the publish
// count. Only the leading f.SampleCount samples are fresh; the remainder of
// the slot keeps its previous values, mirroring the wire protocol's partial
// update semantics. The critical section is O(capacity).
func (s *Slot) Publish(f *Frame) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := f.SampleCount
	if n > len(s.latest.Samples) {
		n = len(s.latest.Samples)
	}
	copy(s.latest.Samples[:n], f.Samples[:n])
	s.latest.SampleCount = n
	s.latest.Sequence = f.Sequence
	s.latest.CapturedAt = f.CapturedAt
	s.publishCount++
	return s.publishCount
}

// Snapshot copies the current frame into dst and returns the publish count at
// the time of the copy. dst is allocated (or reallocated) if its capacity
// does not match. The lock is released before returning.
func (s *Slot) Snapshot(dst *Frame) (frame *Frame, publishCount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dst == nil || len(dst.Samples) != len(s.latest.Samples) {
		dst = New(len(s.latest.Samples))
	}
	s.latest.CopyInto(dst)
	return dst, s.publishCount
}

// SnapshotRange copies samples[lo:hi] of the current frame into a fresh
// slice. Used by consumers that only need a window of the spectrum.
func (s *Slot) SnapshotRange(lo, hi int) []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lo < 0 {
		lo = 0
	}
	if hi > len(s.latest.Samples) {
		hi = len(s.latest.Samples)
	}
	if lo >= hi {
		return nil
	}
	out := make([]uint16, hi-lo)
	copy(out, s.latest.Samples[lo:hi])
	return out
}

// PublishCount returns the number of publishes since creation or the last
// Reset.
func (s *Slot) PublishCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishCount
}

// Reset zero-fills the slot and clears the publish count. Called when a
// channel disconnects so the next session starts from a defined state.
func (s *Slot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest.Reset()
	s.latest.CapturedAt = time.Time{}
	s.publishCount = 0
}
