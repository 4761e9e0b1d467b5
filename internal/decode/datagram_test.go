package decode

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectra-data/linescan/internal/frame"
)

func TestDecodeDatagramRoundTrip(t *testing.T) {
	t.Parallel()

	samples := []uint16{10, 20, 30, 4095}
	pkt := EncodeDatagram(samples, 77, 123456, true)

	dst := frame.New(8)
	require.NoError(t, DecodeDatagram(pkt, dst))

	assert.Equal(t, 4, dst.SampleCount)
	assert.Equal(t, uint32(77), dst.Sequence)
	if diff := cmp.Diff(samples, dst.Samples[:4]); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeDatagramHeaderFields(t *testing.T) {
	t.Parallel()

	pkt := EncodeDatagram([]uint16{1, 2}, 0xDEADBEEF, 0x01020304, true)
	h, err := ParseHeader(pkt)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), h.Sequence)
	assert.Equal(t, uint32(0x01020304), h.TimestampUS)
	assert.Equal(t, uint16(2), h.PixelCount)
	assert.Equal(t, PayloadChecksum(pkt[HeaderSize:]), h.Checksum)
}

func TestDecodeDatagramRejectsShort(t *testing.T) {
	t.Parallel()

	dst := frame.New(4)
	err := DecodeDatagram(make([]byte, HeaderSize-1), dst)
	assert.ErrorIs(t, err, ErrShortDatagram)
	assert.Equal(t, 0, dst.SampleCount)
}

func TestDecodeDatagramRejectsBadMagic(t *testing.T) {
	t.Parallel()

	pkt := EncodeDatagram([]uint16{1}, 1, 0, true)
	pkt[0] = 0xAB

	dst := frame.New(4)
	assert.ErrorIs(t, DecodeDatagram(pkt, dst), ErrBadMagic)
}

func TestDecodeDatagramRejectsExcessiveCount(t *testing.T) {
	t.Parallel()

	// Declared count exceeds capacity: discard rather than truncate.
	pkt := EncodeDatagram([]uint16{1, 2, 3, 4, 5}, 1, 0, true)
	dst := frame.New(4)
	err := DecodeDatagram(pkt, dst)
	assert.ErrorIs(t, err, ErrCountExceedsCap)
	assert.Equal(t, []uint16{0, 0, 0, 0}, dst.Samples)
}

func TestDecodeDatagramRejectsTruncatedPayload(t *testing.T) {
	t.Parallel()

	pkt := EncodeDatagram([]uint16{1, 2, 3}, 1, 0, true)
	pkt = pkt[:len(pkt)-2] // lose one sample off the wire

	dst := frame.New(4)
	assert.ErrorIs(t, DecodeDatagram(pkt, dst), ErrTruncatedPayload)
}

func TestDecodeDatagramChecksum(t *testing.T) {
	t.Parallel()

	t.Run("mismatch rejected", func(t *testing.T) {
		t.Parallel()
		pkt := EncodeDatagram([]uint16{5, 6}, 1, 0, true)
		binary.LittleEndian.PutUint16(pkt[11:13], 0xBEEF)

		dst := frame.New(4)
		assert.ErrorIs(t, DecodeDatagram(pkt, dst), ErrChecksumMismatch)
	})

	t.Run("zero checksum accepted", func(t *testing.T) {
		t.Parallel()
		// Senders that skip the computation write zero; accepted for
		// compatibility.
		pkt := EncodeDatagram([]uint16{5, 6}, 1, 0, false)

		dst := frame.New(4)
		require.NoError(t, DecodeDatagram(pkt, dst))
		assert.Equal(t, []uint16{5, 6}, dst.Samples[:2])
	})

	t.Run("corrupted payload detected", func(t *testing.T) {
		t.Parallel()
		pkt := EncodeDatagram([]uint16{5, 6}, 1, 0, true)
		pkt[HeaderSize] ^= 0x01

		dst := frame.New(4)
		assert.ErrorIs(t, DecodeDatagram(pkt, dst), ErrChecksumMismatch)
	})
}

func TestDecodeDatagramPartialUpdateKeepsTail(t *testing.T) {
	t.Parallel()

	dst := frame.New(4)
	for i := range dst.Samples {
		dst.Samples[i] = 999
	}

	pkt := EncodeDatagram([]uint16{1, 2}, 3, 0, true)
	require.NoError(t, DecodeDatagram(pkt, dst))
	assert.Equal(t, []uint16{1, 2, 999, 999}, dst.Samples)
	assert.Equal(t, 2, dst.SampleCount)
}

func TestDecodeDatagramStatelessBetweenCalls(t *testing.T) {
	t.Parallel()

	dst := frame.New(4)

	first := EncodeDatagram([]uint16{1, 2, 3, 4}, 1, 0, true)
	require.NoError(t, DecodeDatagram(first, dst))

	// A bad datagram in between must not affect the next good one.
	bad := EncodeDatagram([]uint16{9}, 2, 0, true)
	bad[0] = 0x00
	require.Error(t, DecodeDatagram(bad, dst))

	second := EncodeDatagram([]uint16{5, 6, 7, 8}, 3, 0, true)
	require.NoError(t, DecodeDatagram(second, dst))
	assert.Equal(t, []uint16{5, 6, 7, 8}, dst.Samples)
	assert.Equal(t, uint32(3), dst.Sequence)
}

func TestPayloadChecksumTruncatesToUint16(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = 0xFF
	}
	// 1024 * 255 mod 65536
	assert.Equal(t, uint16(1024*255%65536), PayloadChecksum(payload))
}
