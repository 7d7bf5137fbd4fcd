package pcmdec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/playback/media"
)

func newBuffer(capacity int) *media.SampleBuffer {
	return &media.SampleBuffer{Data: make([]byte, 0, capacity)}
}

// TestDecodeCopiesPayload verifies the copy and the derived sample
// count for stereo 16-bit data.
func TestDecodeCopiesPayload(t *testing.T) {
	d := New(2, 2)
	buf := newBuffer(64)

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8} // two stereo frames
	produced, err := d.Decode(media.Packet{Data: payload}, buf)
	require.NoError(t, err)
	require.True(t, produced)

	assert.Equal(t, payload, buf.Data)
	assert.Equal(t, 2, buf.Samples)

	// The copy must not alias the packet payload.
	payload[0] = 0xFF
	assert.Equal(t, byte(1), buf.Data[0])
}

// TestDecodeEmptyPacket verifies that an empty payload produces no
// frame and no error.
func TestDecodeEmptyPacket(t *testing.T) {
	d := New(2, 2)
	produced, err := d.Decode(media.Packet{}, newBuffer(16))
	assert.NoError(t, err)
	assert.False(t, produced)
}

// TestDecodeMisalignedPayload verifies rejection of a payload that is
// not a whole number of frames.
func TestDecodeMisalignedPayload(t *testing.T) {
	d := New(2, 2)
	produced, err := d.Decode(media.Packet{Data: []byte{1, 2, 3}}, newBuffer(16))
	assert.Error(t, err)
	assert.False(t, produced)
}

// TestDecodeOversizedPayload verifies rejection of a payload larger
// than the pooled buffer.
func TestDecodeOversizedPayload(t *testing.T) {
	d := New(1, 2)
	produced, err := d.Decode(media.Packet{Data: make([]byte, 32)}, newBuffer(16))
	assert.Error(t, err)
	assert.False(t, produced)
}
