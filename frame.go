package mcumgr

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// Frame codec: lossless conversion between an SMP packet (<= 64KiB)
// and its line-oriented base64+CRC wire form.

const (
	maxLineBodyChars = 124
	lineTerminator   = '\n'
)

var (
	startMarker        = [2]byte{0x06, 0x09}
	continuationMarker = [2]byte{0x04, 0x14}
)

// FrameCodec frames packets onto, and reassembles them from, a Transport.
type FrameCodec struct {
	transport Transport
}

// NewFrameCodec wraps a Transport with SMP line framing.
func NewFrameCodec(t Transport) *FrameCodec {
	return &FrameCodec{transport: t}
}

// encodeFrame renders packet (<=65535 bytes) as wire bytes: one line
// starting with the start marker, zero or more continuation lines, each
// holding at most maxLineBodyChars base64 characters and terminated by
// lineTerminator.
func encodeFrame(packet []byte) ([]byte, error) {
	if len(packet) > 0xFFFF {
		return nil, fmt.Errorf("mcumgr: packet too large: %d bytes", len(packet))
	}

	body := make([]byte, 0, 4+len(packet))
	var lenPrefix [2]byte
	binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(packet)))
	body = append(body, lenPrefix[:]...)
	body = append(body, packet...)
	crc := crc16XModem(packet)
	var crcBytes [2]byte
	binary.BigEndian.PutUint16(crcBytes[:], crc)
	body = append(body, crcBytes[:]...)

	encoded := base64.StdEncoding.EncodeToString(body)

	out := make([]byte, 0, len(encoded)+len(encoded)/maxLineBodyChars*3+8)
	for i := 0; i < len(encoded); i += maxLineBodyChars {
		end := i + maxLineBodyChars
		if end > len(encoded) {
			end = len(encoded)
		}
		marker := continuationMarker
		if i == 0 {
			marker = startMarker
		}
		out = append(out, marker[0], marker[1])
		out = append(out, encoded[i:end]...)
		out = append(out, lineTerminator)
	}
	return out, nil
}

// decodeFrame consumes lines (via readLine) until a complete, CRC-valid
// packet has been reassembled. Lines whose leading two bytes match
// neither marker are discarded as noise.
func decodeFrame(readLine func() ([]byte, error)) ([]byte, error) {
	var encoded []byte
	started := false

	for {
		line, err := readLine()
		if err != nil {
			return nil, err
		}
		line = trimTerminator(line)
		if len(line) < 2 {
			continue
		}
		marker := [2]byte{line[0], line[1]}
		switch {
		case marker == startMarker:
			started = true
			encoded = append([]byte(nil), line[2:]...)
		case marker == continuationMarker:
			if !started {
				continue
			}
			encoded = append(encoded, line[2:]...)
		default:
			continue
		}

		if len(encoded)%4 != 0 {
			continue
		}
		if len(encoded) == 0 {
			continue
		}

		body, err := base64.StdEncoding.DecodeString(string(encoded))
		if err != nil {
			return nil, newFramingError("frame.decode", fmt.Sprintf("invalid base64: %v", err))
		}
		if len(body) < 2 {
			continue
		}

		totalLen := int(binary.BigEndian.Uint16(body[0:2]))
		want := 2 + totalLen + 2
		if len(body) < want {
			continue
		}
		if len(body) > want {
			return nil, newFramingError("frame.decode", "decoded length exceeds declared packet length")
		}

		packet := body[2 : 2+totalLen]
		gotCRC := binary.BigEndian.Uint16(body[2+totalLen : 2+totalLen+2])
		wantCRC := crc16XModem(packet)
		if gotCRC != wantCRC {
			return nil, newFramingError("frame.decode", "CRC mismatch")
		}
		return packet, nil
	}
}

func trimTerminator(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

// WriteFrame encodes packet and writes it to the transport before
// deadline elapses.
func (c *FrameCodec) WriteFrame(packet []byte, deadline time.Time) error {
	wire, err := encodeFrame(packet)
	if err != nil {
		return err
	}
	if err := c.transport.SetReadTimeout(time.Until(deadline)); err != nil {
		return err
	}
	return c.transport.WriteAll(wire)
}

// ReadFrame reads and reassembles the next packet from the transport,
// discarding noise lines, before deadline elapses.
func (c *FrameCodec) ReadFrame(deadline time.Time) ([]byte, error) {
	readLine := func() ([]byte, error) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, newTimeoutError("frame.read", nil)
		}
		if err := c.transport.SetReadTimeout(remaining); err != nil {
			return nil, err
		}
		return c.transport.ReadUntil(lineTerminator)
	}
	return decodeFrame(readLine)
}
