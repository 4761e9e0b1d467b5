package decode

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/spectra-data/linescan/internal/frame"
)

// UDP wire format: a 13-byte header followed by pixel_count little-endian
// 16-bit samples.
const (
	DatagramMagic = 0xAA

	// Header layout: magic(1) seq(4) timestamp_us(4) pixel_count(2) checksum(2).
	HeaderSize = 13
)

// Validation failures for a single datagram. The channel drops the datagram
// either way; these exist so tests and drop counters can tell the cases
// apart.
var (
	ErrShortDatagram    = errors.New("datagram shorter than header")
	ErrBadMagic         = errors.New("datagram magic byte mismatch")
	ErrCountExceedsCap  = errors.New("declared pixel count exceeds capacity")
	ErrTruncatedPayload = errors.New("datagram payload shorter than declared count")
	ErrChecksumMismatch = errors.New("datagram checksum mismatch")
)

// Header is the decoded datagram header.
type Header struct {
	Sequence    uint32
	TimestampUS uint32
	PixelCount  uint16
	Checksum    uint16
}

// ParseHeader validates length and magic and decodes the header fields.
func ParseHeader(pkt []byte) (Header, error) {
	if len(pkt) < HeaderSize {
		return Header{}, ErrShortDatagram
	}
	if pkt[0] != DatagramMagic {
		return Header{}, ErrBadMagic
	}
	return Header{
		Sequence:    binary.LittleEndian.Uint32(pkt[1:5]),
		TimestampUS: binary.LittleEndian.Uint32(pkt[5:9]),
		PixelCount:  binary.LittleEndian.Uint16(pkt[9:11]),
		Checksum:    binary.LittleEndian.Uint16(pkt[11:13]),
	}, nil
}

// PayloadChecksum is the 16-bit truncated sum of the sample payload bytes.
// A sender that does not compute checksums sends zero, which DecodeDatagram
// accepts permissively.
func PayloadChecksum(payload []byte) uint16 {
	var sum uint16
	for _, b := range payload {
		sum += uint16(b)
	}
	return sum
}

// DecodeDatagram validates one datagram and copies its samples into dst.
// Samples beyond the declared pixel count keep dst's prior contents, the
// same partial-update semantics the serial decoder has. dst is untouched
// when an error is returned.
//
// Stateless across calls: every datagram is self-contained.
func DecodeDatagram(pkt []byte, dst *frame.Frame) error {
	h, err := ParseHeader(pkt)
	if err != nil {
		return err
	}
	if int(h.PixelCount) > dst.Capacity() {
		// A malformed sender, not a short frame: discard rather than
		// silently truncate.
		return ErrCountExceedsCap
	}
	payload := pkt[HeaderSize:]
	if len(payload) < int(h.PixelCount)*2 {
		return ErrTruncatedPayload
	}
	payload = payload[:int(h.PixelCount)*2]
	if h.Checksum != 0 && h.Checksum != PayloadChecksum(payload) {
		return ErrChecksumMismatch
	}

	for i := 0; i < int(h.PixelCount); i++ {
		dst.Samples[i] = binary.LittleEndian.Uint16(payload[2*i:])
	}
	dst.SampleCount = int(h.PixelCount)
	dst.Sequence = h.Sequence
	dst.CapturedAt = time.Now()
	return nil
}

// EncodeDatagram builds a wire datagram from samples. Used by the frame
// generator tool and round-trip tests. withChecksum false writes a zero
// checksum, matching senders that skip the computation.
func EncodeDatagram(samples []uint16, sequence, timestampUS uint32, withChecksum bool) []byte {
	pkt := make([]byte, HeaderSize+2*len(samples))
	pkt[0] = DatagramMagic
	binary.LittleEndian.PutUint32(pkt[1:5], sequence)
	binary.LittleEndian.PutUint32(pkt[5:9], timestampUS)
	binary.LittleEndian.PutUint16(pkt[9:11], uint16(len(samples)))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pkt[HeaderSize+2*i:], s)
	}
	if withChecksum {
		binary.LittleEndian.PutUint16(pkt[11:13], PayloadChecksum(pkt[HeaderSize:]))
	}
	return pkt
}

// EncodeSerialFrame writes one frame in the serial wire format: a frame-start
// byte followed by one 4-byte record per sample. The next frame's start byte
// is what completes this one on the decode side.
func EncodeSerialFrame(samples []uint16) []byte {
	out := make([]byte, 0, 1+pixelRecordLen*len(samples))
	out = append(out, FrameStartByte)
	for _, s := range samples {
		out = append(out, PixelStartByte, byte(s), byte(s>>8), PixelEndByte)
	}
	return out
}
