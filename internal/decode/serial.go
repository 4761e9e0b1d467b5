// Package decode converts raw transport data into frames: a byte-stream
// framing state machine for the serial link and a self-contained datagram
// codec for the UDP transport.
package decode

import (
	"time"

	"github.com/spectra-data/linescan/internal/frame"
)

// Serial wire protocol markers. A frame-start byte announces that all
// following pixel records belong to a new frame; each pixel record is
// start marker, low byte, high byte, end marker.
const (
	FrameStartByte = 0x11
	PixelStartByte = 0xA5
	PixelEndByte   = 0x5A

	pixelRecordLen = 4
)

// SerialDecoder assembles frames from an unstructured serial byte stream.
// It is self-healing: malformed bytes are skipped one at a time until the
// pixel pattern realigns, and a lost frame boundary recovers at the next
// frame-start byte. It never returns an error for bad input.
//
// The decoder keeps an append-only buffer with a read cursor instead of
// shifting bytes in place, so resynchronization stays O(n) at high byte
// rates. Not safe for concurrent use; the owning channel goroutine is the
// only caller.
type SerialDecoder struct {
	capacity int

	// buf[cur:] is the unconsumed window of pixel-record bytes belonging
	// to the frame in progress. Compacted when the consumed prefix grows.
	buf []byte
	cur int

	inFrame bool
	pending *frame.Frame
	count   int
	dropped int // pixels past capacity in the current frame

	sequence uint32
	now      func() time.Time
}

// NewSerialDecoder returns a decoder for frames of the given sample capacity.
func NewSerialDecoder(capacity int) *SerialDecoder {
	if capacity <= 0 {
		capacity = frame.DefaultCapacity
	}
	return &SerialDecoder{
		capacity: capacity,
		buf:      make([]byte, 0, 4*capacity),
		pending:  frame.New(capacity),
		now:      time.Now,
	}
}

// Feed consumes a chunk of raw bytes and returns the frames completed by it.
// A frame completes when a frame-start byte arrives while at least one pixel
// has been assembled; the trailing start byte itself opens the next frame.
//
// Ownership of returned frames passes to the caller. The successor frame is
// seeded with the completed frame's samples, so a later short frame updates
// only its leading indices and the rest stay at their previous values.
func (d *SerialDecoder) Feed(p []byte) []*frame.Frame {
	var done []*frame.Frame
	for _, b := range p {
		if b == FrameStartByte {
			if f := d.finishFrame(); f != nil {
				done = append(done, f)
			}
			d.inFrame = true
			d.resetWindow()
			d.count = 0
			d.dropped = 0
			continue
		}

		if !d.inFrame {
			// Hunting for the next frame boundary; everything else
			// is discarded.
			continue
		}

		d.buf = append(d.buf, b)
		d.drainPixels()
	}
	return done
}

// Flush completes the frame in progress, if any, without waiting for the
// next frame-start byte. Used when the transport closes mid-frame.
func (d *SerialDecoder) Flush() *frame.Frame {
	f := d.finishFrame()
	d.inFrame = false
	d.resetWindow()
	d.count = 0
	d.dropped = 0
	return f
}

// drainPixels consumes as many pixel records as the window currently holds,
// resynchronizing a byte at a time on pattern mismatches.
func (d *SerialDecoder) drainPixels() {
	for len(d.buf)-d.cur >= pixelRecordLen {
		w := d.buf[d.cur:]
		if w[0] != PixelStartByte {
			d.cur++
			continue
		}
		if w[3] != PixelEndByte {
			// Spurious start byte; drop it and retry from the next
			// byte rather than waiting for the frame boundary.
			d.cur++
			continue
		}
		value := uint16(w[1]) | uint16(w[2])<<8
		if d.count < d.capacity {
			d.pending.Samples[d.count] = value
			d.count++
		} else {
			d.dropped++
		}
		d.cur += pixelRecordLen
	}

	// Compact once the consumed prefix dominates the buffer.
	if d.cur > 0 && d.cur >= len(d.buf)/2 {
		d.buf = append(d.buf[:0], d.buf[d.cur:]...)
		d.cur = 0
	}
}

// finishFrame closes the frame in progress and returns it, or nil when no
// pixels were assembled (duplicate start bytes publish nothing).
func (d *SerialDecoder) finishFrame() *frame.Frame {
	if !d.inFrame || d.count == 0 {
		return nil
	}
	d.sequence++
	f := d.pending
	f.SampleCount = d.count
	f.Sequence = d.sequence
	f.CapturedAt = d.now()
	d.pending = frame.New(d.capacity)
	copy(d.pending.Samples, f.Samples)
	return f
}

func (d *SerialDecoder) resetWindow() {
	d.buf = d.buf[:0]
	d.cur = 0
}

// DroppedPixels reports how many pixels past capacity were discarded from
// the frame currently in progress. Diagnostic only.
func (d *SerialDecoder) DroppedPixels() int { return d.dropped }
