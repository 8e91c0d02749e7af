package mcumgr

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00},
		bytes.Repeat([]byte{0xAB}, 500),
	}
	for _, packet := range cases {
		wire, err := encodeFrame(packet)
		require.NoError(t, err)

		decoded, err := decodeFrame(lineReaderFromBytes(wire))
		require.NoError(t, err)
		assert.Equal(t, packet, decoded)
	}
}

func TestFrameEncodeLineShape(t *testing.T) {
	packet := []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	wire, err := encodeFrame(packet)
	require.NoError(t, err)

	lines := splitWireLines(wire)
	require.Len(t, lines, 1, "short packet must produce exactly one line")

	line := lines[0]
	assert.Equal(t, byte(0x06), line[0])
	assert.Equal(t, byte(0x09), line[1])
	assert.Equal(t, byte(lineTerminator), line[len(line)-1])
	assert.LessOrEqual(t, len(line)-3, maxLineBodyChars)
}

func TestFrameEncodeSplitsLongPacketsIntoContinuations(t *testing.T) {
	packet := bytes.Repeat([]byte{0x55}, 2000)
	wire, err := encodeFrame(packet)
	require.NoError(t, err)

	lines := splitWireLines(wire)
	require.Greater(t, len(lines), 1)
	assert.Equal(t, byte(0x06), lines[0][0])
	assert.Equal(t, byte(0x09), lines[0][1])
	for _, l := range lines[1:] {
		assert.Equal(t, byte(0x04), l[0])
		assert.Equal(t, byte(0x14), l[1])
	}
}

func TestFrameDecodeDiscardsNoiseLines(t *testing.T) {
	packet := []byte("hello")
	wire, err := encodeFrame(packet)
	require.NoError(t, err)

	noisy := append([]byte("some unrelated device log line\n"), wire...)
	decoded, err := decodeFrame(lineReaderFromBytes(noisy))
	require.NoError(t, err)
	assert.Equal(t, packet, decoded)
}

func TestFrameDecodeDetectsCRCCorruption(t *testing.T) {
	packet := []byte("a packet long enough to matter for a bit flip test")
	wire, err := encodeFrame(packet)
	require.NoError(t, err)

	// Flip a bit inside the base64 body of the single start line (not
	// the marker, not the terminator).
	corrupted := append([]byte(nil), wire...)
	idx := 5
	corrupted[idx] ^= 0x20

	_, err = decodeFrame(lineReaderFromBytes(corrupted))
	require.Error(t, err)
	var fe *FramingError
	require.ErrorAs(t, err, &fe)
}

func TestFrameEncodeEchoScenario(t *testing.T) {
	// an 8-byte echo request header must encode to one line whose decoded
	// body is [00 08 00 00 00 01 00 00 00 00 crc_hi crc_lo].
	packet := []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	wire, err := encodeFrame(packet)
	require.NoError(t, err)
	lines := splitWireLines(wire)
	require.Len(t, lines, 1)

	line := lines[0]
	body, err := base64.StdEncoding.DecodeString(string(line[2 : len(line)-1]))
	require.NoError(t, err)
	crc := crc16XModem(packet)
	wantBody := append([]byte{0x00, 0x08}, packet...)
	wantBody = append(wantBody, byte(crc>>8), byte(crc))
	assert.Equal(t, wantBody, body)

	decoded, err := decodeFrame(lineReaderFromBytes(wire))
	require.NoError(t, err)
	assert.Equal(t, packet, decoded)
}
