package serialport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bug.st/serial"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 1000000, opts.BaudRate, "CCD boards stream at 1 Mbps")
	assert.Equal(t, 8, opts.DataBits)
	assert.Equal(t, 1, opts.StopBits)
	assert.Equal(t, "N", opts.Parity)
}

func TestNormalizeValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		opts PortOptions
	}{
		{"data bits too small", PortOptions{DataBits: 4}},
		{"data bits too large", PortOptions{DataBits: 9}},
		{"bad stop bits", PortOptions{StopBits: 3}},
		{"bad parity", PortOptions{Parity: "M"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.opts.Normalize()
			assert.Error(t, err)
		})
	}
}

func TestNormalizeParityAliases(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"n", "none", "NONE", " N "} {
		opts, err := PortOptions{Parity: in}.Normalize()
		require.NoError(t, err, "parity %q", in)
		assert.Equal(t, "N", opts.Parity)
	}

	opts, err := PortOptions{Parity: "even"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "E", opts.Parity)

	opts, err = PortOptions{Parity: "odd"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "O", opts.Parity)
}

func TestSerialMode(t *testing.T) {
	t.Parallel()

	mode, err := PortOptions{BaudRate: 115200, Parity: "E", StopBits: 2}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, serial.EvenParity, mode.Parity)
	assert.Equal(t, serial.StopBits(2), mode.StopBits)

	_, err = PortOptions{DataBits: 3}.SerialMode()
	assert.Error(t, err)
}
