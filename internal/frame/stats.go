package frame

import (
	"sync"
	"time"

	"github.com/spectra-data/linescan/internal/monitoring"
)

// StatsSnapshot is one diagnostic reading of the tracker.
type StatsSnapshot struct {
	RatePerSecond float64 `json:"rate_per_second"`
	LastSequence  uint32  `json:"last_sequence"`
	LastCount     int     `json:"last_sample_count"`
	WindowFrames  int64   `json:"frames_in_window"`
	WindowBytes   int64   `json:"bytes_in_window"`
}

// Stats tracks publish throughput over a rolling one-second window. It is a
// reset-on-tick counter, not an exact windowed average: the rate reported is
// frames-in-window divided by the actual elapsed window duration, recomputed
// whenever Tick observes that at least a second has passed.
//
// Tick is meant to be called opportunistically from the decode loop on every
// iteration; no timer goroutine is involved.
type Stats struct {
	mu sync.Mutex

	// now is replaceable so tests can drive the window clock.
	now func() time.Time

	windowStart time.Time
	frames      int64
	bytes       int64

	rate         float64
	lastSequence uint32
	lastCount    int
}

// NewStats returns a tracker with its window starting now.
func NewStats() *Stats {
	return newStatsAt(time.Now)
}

func newStatsAt(now func() time.Time) *Stats {
	return &Stats{now: now, windowStart: now()}
}

// RecordPublish notes one successful publish: the frame's sequence number,
// its received sample count, and the transport bytes it consumed.
func (st *Stats) RecordPublish(sequence uint32, sampleCount, bytes int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.frames++
	st.bytes += int64(bytes)
	st.lastSequence = sequence
	st.lastCount = sampleCount
}

// Tick recomputes the rate if the current window is at least a second old,
// then resets the window. Returns true when a recompute happened, so callers
// can log on window boundaries only.
func (st *Stats) Tick() bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	elapsed := st.now().Sub(st.windowStart)
	if elapsed < time.Second {
		return false
	}
	st.rate = float64(st.frames) / elapsed.Seconds()
	st.frames = 0
	st.bytes = 0
	st.windowStart = st.now()
	return true
}

// Snapshot returns the most recent readings.
func (st *Stats) Snapshot() StatsSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return StatsSnapshot{
		RatePerSecond: st.rate,
		LastSequence:  st.lastSequence,
		LastCount:     st.lastCount,
		WindowFrames:  st.frames,
		WindowBytes:   st.bytes,
	}
}

// Reset clears counters and restarts the window. Called on channel start so a
// stale rate from a previous session is not reported.
func (st *Stats) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.frames = 0
	st.bytes = 0
	st.rate = 0
	st.lastSequence = 0
	st.lastCount = 0
	st.windowStart = st.now()
}

// LogRate writes a one-line throughput diagnostic. Intended to be called
// when Tick returns true.
func (st *Stats) LogRate() {
	s := st.Snapshot()
	monitoring.Logf("acquisition: %.1f frames/sec, last seq %d (%d samples)",
		s.RatePerSecond, s.LastSequence, s.LastCount)
}
