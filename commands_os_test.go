package mcumgr

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoWireEncodingScenario(t *testing.T) {
	reqBytes, err := cbor.Marshal(EchoRequest{D: "Hello World!"})
	require.NoError(t, err)
	wantReq, err := hex.DecodeString("a161646c48656c6c6f20576f726c6421")
	require.NoError(t, err)
	assert.Equal(t, wantReq, reqBytes)

	respBytes, err := cbor.Marshal(EchoResponse{R: "Hello World!"})
	require.NoError(t, err)
	wantResp, err := hex.DecodeString("a161726c48656c6c6f20576f726c6421")
	require.NoError(t, err)
	assert.Equal(t, wantResp, respBytes)

	var decoded EchoResponse
	require.NoError(t, cbor.Unmarshal(respBytes, &decoded))
	assert.Equal(t, "Hello World!", decoded.R)
}

func TestDateTimeSetQuantizesToMilliseconds(t *testing.T) {
	withNanos := time.Date(2024, 3, 4, 5, 6, 7, 123_456_789, time.UTC)
	millis := withNanos.Nanosecond() / int(time.Millisecond)
	require.NotZero(t, millis)

	withoutNanos := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Zero(t, withoutNanos.Nanosecond()/int(time.Millisecond))

	// DateTimeSet sends three fractional digits for the first value and
	// none for the second.
	for _, tc := range []struct {
		in   time.Time
		want string
	}{
		{withNanos, "2024-03-04T05:06:07.123"},
		{withoutNanos, "2024-03-04T05:06:07"},
	} {
		ft := &fakeTransport{}
		c := newTestConnection(ft)
		done := make(chan error, 1)
		go func() { done <- DateTimeSet(c, tc.in) }()
		for ft.sentCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		ft.mu.Lock()
		packet := ft.sentPackets[0]
		ft.mu.Unlock()
		h, err := DecodeHeader(packet)
		require.NoError(t, err)
		var req dateTimeSetRequestWire
		require.NoError(t, cbor.Unmarshal(packet[headerSize:], &req))
		assert.Equal(t, tc.want, req.Datetime)

		h.Op = OpWriteResponse
		ft.queueResponsePacket(buildResponsePacket(t, h, struct{}{}))
		require.NoError(t, <-done)
	}
}

func TestParseZephyrDateTimeDiscardsTimezone(t *testing.T) {
	parsed, err := parseZephyrDateTime("2024-03-04T05:06:07.500+02:00")
	require.NoError(t, err)
	assert.Equal(t, 2024, parsed.Year())
	assert.Equal(t, 5, parsed.Hour())
	assert.Equal(t, 500_000_000, parsed.Nanosecond())
}

func TestParseZephyrDateTimeWithoutFraction(t *testing.T) {
	parsed, err := parseZephyrDateTime("2024-03-04T05:06:07")
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.Nanosecond())
}

func TestDecodeThreadState(t *testing.T) {
	assert.Equal(t, "dummy | pending | sleeping | dead | suspended | aborting | suspending | queued", DecodeThreadState(0xff))
	assert.Equal(t, "", DecodeThreadState(0))
	assert.Equal(t, "pending | dead", DecodeThreadState(2|8))
}
