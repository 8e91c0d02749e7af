package mcumgr

import (
	"encoding/binary"
	"fmt"
)

// SMP operation codes.
const (
	OpRead          uint8 = 0
	OpReadResponse  uint8 = 1
	OpWrite         uint8 = 2
	OpWriteResponse uint8 = 3
)

const (
	smpVersion2 uint8 = 0b01

	headerSize = 8
)

// Header is the 8-byte SMP header (C3), bit-exact with the wire format.
type Header struct {
	Version     uint8
	Op          uint8
	Flags       uint8
	DataLength  uint16
	GroupID     uint16
	SequenceNum uint8
	CommandID   uint8
}

// Encode packs h into its 8-byte wire form.
func (h Header) Encode() [headerSize]byte {
	var b [headerSize]byte
	b[0] = (h.Version << 3) | (h.Op & 0x07)
	b[1] = h.Flags
	binary.BigEndian.PutUint16(b[2:4], h.DataLength)
	binary.BigEndian.PutUint16(b[4:6], h.GroupID)
	b[6] = h.SequenceNum
	b[7] = h.CommandID
	return b
}

// DecodeHeader unpacks an 8-byte SMP header. It fails with a FramingError
// if fewer than 8 bytes are supplied.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < headerSize {
		return Header{}, newFramingError("header.decode", fmt.Sprintf("short header: %d bytes", len(b)))
	}
	return Header{
		Version:     (b[0] >> 3) & 0x03,
		Op:          b[0] & 0x07,
		Flags:       b[1],
		DataLength:  binary.BigEndian.Uint16(b[2:4]),
		GroupID:     binary.BigEndian.Uint16(b[4:6]),
		SequenceNum: b[6],
		CommandID:   b[7],
	}, nil
}

// newRequestHeader builds a request header for the given descriptor,
// sequence number, and encoded payload length.
func newRequestHeader(isWrite bool, groupID uint16, commandID uint8, seq uint8, dataLen uint16) Header {
	op := OpRead
	if isWrite {
		op = OpWrite
	}
	return Header{
		Version:     smpVersion2,
		Op:          op,
		Flags:       0,
		DataLength:  dataLen,
		GroupID:     groupID,
		SequenceNum: seq,
		CommandID:   commandID,
	}
}
