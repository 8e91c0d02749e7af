package mcumgr

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const (
	defaultSMPMTU     = 384
	transferBufferCap = 65535
	defaultTimeout    = 10 * time.Second
)

// commandDescriptor fixes (is_write, group_id, command_id) for one SMP
// command: commands are value records, not virtual dispatch.
type commandDescriptor struct {
	isWrite   bool
	groupID   uint16
	commandID uint8
}

// Connection is the protocol engine (C4): it owns a Transport exclusively
// via a FrameCodec, tracks the per-connection sequence number, and wraps
// command execution with SMP error decoding.
type Connection struct {
	codec   *FrameCodec
	nextSeq uint32 // holds the next uint8 sequence number; incremented via atomic add mod 256
	smpMTU  atomic.Uint32
	timeout time.Duration

	// buf is the single reusable transfer buffer, allocated once with
	// transferBufferCap bytes of capacity; executeRaw resets it and
	// assembles each outgoing header and payload in it. The packet handed
	// to the frame codec is a copy of its contents.
	buf bytes.Buffer

	logger *slog.Logger
}

// Connect wraps transport in a Connection, ready to execute commands.
// next_seq is seeded from a random byte.
func Connect(transport Transport) *Connection {
	c := &Connection{
		codec:   NewFrameCodec(transport),
		nextSeq: uint32(rand.Intn(256)),
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	c.smpMTU.Store(defaultSMPMTU)
	c.buf.Grow(transferBufferCap)
	return c
}

// SetFrameSize overrides the SMP MTU used by chunk-size computations.
func (c *Connection) SetFrameSize(n int) { c.smpMTU.Store(uint32(n)) }

// SetTimeout overrides the per-request read deadline.
func (c *Connection) SetTimeout(d time.Duration) { c.timeout = d }

// UseAutoFrameSize queries MCUmgrParameters and adopts the device's
// advertised buffer size as the SMP MTU.
func (c *Connection) UseAutoFrameSize() error {
	params, err := osMCUmgrParameters(c)
	if err != nil {
		return fmt.Errorf("mcumgr: use_auto_frame_size: %w", err)
	}
	c.smpMTU.Store(params.BufSize)
	return nil
}

func (c *Connection) frameSize() int { return int(c.smpMTU.Load()) }

// nextSequence allocates the next sequence number and advances the
// counter, wrapping mod 256 to match the device's 8-bit sequence field.
func (c *Connection) nextSequence() uint8 {
	v := atomic.AddUint32(&c.nextSeq, 1) - 1
	return uint8(v % 256)
}

// executeRaw sends payload under desc, waits for the matching response,
// decodes the generic SMP error envelope, and returns the response body
// for the caller to decode further (typed, or left raw). Error decoding
// applies identically whether the caller ultimately wants a typed
// response or the raw bytes.
func (c *Connection) executeRaw(desc commandDescriptor, payload []byte) ([]byte, error) {
	seq := c.nextSequence()

	c.buf.Reset()
	c.buf.Grow(headerSize + len(payload))
	header := newRequestHeader(desc.isWrite, desc.groupID, desc.commandID, seq, uint16(len(payload)))
	headerBytes := header.Encode()
	c.buf.Write(headerBytes[:])
	c.buf.Write(payload)
	packet := append([]byte(nil), c.buf.Bytes()...)

	deadline := time.Now().Add(c.timeout)
	c.logger.Debug("mcumgr: send", "group", desc.groupID, "command", desc.commandID, "seq", seq, "len", len(payload))
	if err := c.codec.WriteFrame(packet, deadline); err != nil {
		return nil, fmt.Errorf("mcumgr: send failed: %w", err)
	}

	expectedOp := OpReadResponse
	if desc.isWrite {
		expectedOp = OpWriteResponse
	}

	for {
		if time.Now().After(deadline) {
			return nil, newTimeoutError("connection.receive", nil)
		}
		frame, err := c.codec.ReadFrame(deadline)
		if err != nil {
			return nil, fmt.Errorf("mcumgr: receive failed: %w", err)
		}
		respHeader, err := DecodeHeader(frame)
		if err != nil {
			return nil, fmt.Errorf("mcumgr: receive failed: %w", err)
		}
		if respHeader.SequenceNum != seq {
			c.logger.Debug("mcumgr: dropping stale response", "want_seq", seq, "got_seq", respHeader.SequenceNum)
			continue
		}
		body := frame[headerSize:]
		if respHeader.GroupID != desc.groupID {
			return nil, newUnexpectedResponseError("connection.receive", fmt.Sprintf("group mismatch: want %d got %d", desc.groupID, respHeader.GroupID))
		}
		if respHeader.CommandID != desc.commandID {
			return nil, newUnexpectedResponseError("connection.receive", fmt.Sprintf("command mismatch: want %d got %d", desc.commandID, respHeader.CommandID))
		}
		if respHeader.Op != expectedOp {
			return nil, newUnexpectedResponseError("connection.receive", fmt.Sprintf("op mismatch: want %d got %d", expectedOp, respHeader.Op))
		}
		if int(respHeader.DataLength) != len(body) {
			return nil, newUnexpectedResponseError("connection.receive", fmt.Sprintf("data_length mismatch: declared %d got %d", respHeader.DataLength, len(body)))
		}

		if err := decodeErrorEnvelope(body); err != nil {
			return nil, err
		}
		return body, nil
	}
}

// errorEnvelope is the generic shape every SMP response is first decoded
// as, before any typed decode is attempted.
type errorEnvelope struct {
	Rc  *int   `cbor:"rc,omitempty"`
	Rsn string `cbor:"rsn,omitempty"`
	Err *struct {
		Group uint16 `cbor:"group"`
		Rc    int32  `cbor:"rc"`
	} `cbor:"err,omitempty"`
}

func decodeErrorEnvelope(body []byte) error {
	var env errorEnvelope
	if err := cbor.Unmarshal(body, &env); err != nil {
		// Not every response map round-trips cleanly through this loose
		// envelope (e.g. a response whose "rc" field is of a different
		// shape); treat a decode failure here as "no error present" and
		// let the caller's typed/raw decode surface any real problem.
		return nil
	}
	if env.Err != nil {
		return &DeviceErrorV2{Group: env.Err.Group, Rc: env.Err.Rc}
	}
	if env.Rc != nil && !IsEOK(*env.Rc) {
		return &DeviceErrorV1{Rc: *env.Rc, Rsn: env.Rsn}
	}
	return nil
}

// executeTyped encodes req as CBOR, runs it through executeRaw under
// desc, and decodes the response body as Resp.
func executeTyped[Req any, Resp any](c *Connection, desc commandDescriptor, req Req) (Resp, error) {
	var zero Resp
	payload, err := cbor.Marshal(req)
	if err != nil {
		return zero, &EncodeError{code: "command.encode", Err: err}
	}
	body, err := c.executeRaw(desc, payload)
	if err != nil {
		return zero, err
	}
	var resp Resp
	if err := cbor.Unmarshal(body, &resp); err != nil {
		return zero, &DecodeError{code: "command.decode", Err: err}
	}
	return resp, nil
}

// ExecuteRaw bypasses the typed schema step: it accepts and returns
// opaque CBOR-decodable values, but error decoding still applies.
func (c *Connection) ExecuteRaw(isWrite bool, group uint16, command uint8, payload any) (cbor.RawMessage, error) {
	encoded, err := cbor.Marshal(payload)
	if err != nil {
		return nil, &EncodeError{code: "connection.execute_raw.encode", Err: err}
	}
	body, err := c.executeRaw(commandDescriptor{isWrite: isWrite, groupID: group, commandID: command}, encoded)
	if err != nil {
		return nil, err
	}
	return cbor.RawMessage(append([]byte(nil), body...)), nil
}

// ExecuteCommand is the generic convenience entry point for callers with
// their own request/response types.
func ExecuteCommand[Req any, Resp any](c *Connection, isWrite bool, group uint16, command uint8, req Req) (Resp, error) {
	return executeTyped[Req, Resp](c, commandDescriptor{isWrite: isWrite, groupID: group, commandID: command}, req)
}

const checkConnectionAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ConnectionCheckError reports that a check_connection echo round trip
// did not return what was sent, as distinct from a transport-level
// failure.
type ConnectionCheckError struct {
	Sent, Got string
}

func (e *ConnectionCheckError) Error() string {
	return fmt.Sprintf("mcumgr: check_connection: sent %q, device echoed %q", e.Sent, e.Got)
}

// CheckConnection performs a randomized 16-character alphanumeric echo
// and fails with *ConnectionCheckError if the device's reply doesn't
// match.
func (c *Connection) CheckConnection() error {
	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = checkConnectionAlphabet[rand.Intn(len(checkConnectionAlphabet))]
	}
	want := string(buf)
	resp, err := osEcho(c, want)
	if err != nil {
		return fmt.Errorf("mcumgr: check_connection: %w", err)
	}
	if resp != want {
		return &ConnectionCheckError{Sent: want, Got: resp}
	}
	return nil
}
