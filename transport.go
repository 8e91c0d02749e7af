package mcumgr

import (
	"bufio"
	"errors"
	"io"
	"net"
	"time"
)

// Transport is the byte transport contract: a duplex stream with a
// configurable read timeout. Serial port enumeration/opening is an
// external OS facility — callers supply an already-open
// stream, e.g. wrapping a *serial.Port or *net.Conn.
type Transport interface {
	// WriteAll writes all of b, retrying partial writes internally.
	WriteAll(b []byte) error
	// ReadUntil reads bytes up to and including terminator, retrying
	// partial reads against the most recently configured deadline.
	ReadUntil(terminator byte) ([]byte, error)
	// SetReadTimeout bounds the next ReadUntil call. A non-positive
	// duration means "no further progress is required" and surfaces
	// immediately as a timeout.
	SetReadTimeout(d time.Duration) error
	Close() error
}

// StreamTransport adapts an io.ReadWriteCloser (a serial port, a TCP
// socket, anything byte-oriented) to the Transport contract.
type StreamTransport struct {
	rw      io.ReadWriteCloser
	r       *bufio.Reader
	timeout time.Duration
}

// NewStreamTransport wraps rw. If rw also implements net.Conn or exposes
// a SetReadDeadline(time.Time) error method, SetReadTimeout uses it;
// otherwise timeouts are enforced by racing the read against a timer.
func NewStreamTransport(rw io.ReadWriteCloser) *StreamTransport {
	return &StreamTransport{rw: rw, r: bufio.NewReader(rw)}
}

func (t *StreamTransport) WriteAll(b []byte) error {
	for len(b) > 0 {
		n, err := t.rw.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

type deadliner interface {
	SetReadDeadline(time.Time) error
}

func (t *StreamTransport) SetReadTimeout(d time.Duration) error {
	t.timeout = d
	if dl, ok := t.rw.(deadliner); ok {
		if d <= 0 {
			return dl.SetReadDeadline(time.Now())
		}
		return dl.SetReadDeadline(time.Now().Add(d))
	}
	return nil
}

// ReadUntil reads until terminator is seen. When the underlying stream
// does not support read deadlines directly, a non-positive timeout fails
// immediately and a positive one races the blocking read against a timer
// on a background goroutine (the goroutine is abandoned, not leaked
// across calls, since bufio.Reader is not safe to cancel mid-read).
func (t *StreamTransport) ReadUntil(terminator byte) ([]byte, error) {
	if _, ok := t.rw.(deadliner); ok {
		line, err := t.r.ReadBytes(terminator)
		if err != nil {
			if isTimeout(err) {
				return nil, newTimeoutError("transport.read", err)
			}
			return nil, err
		}
		return line, nil
	}

	if t.timeout <= 0 {
		return nil, newTimeoutError("transport.read", nil)
	}

	type result struct {
		line []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		line, err := t.r.ReadBytes(terminator)
		done <- result{line, err}
	}()

	select {
	case res := <-done:
		return res.line, res.err
	case <-time.After(t.timeout):
		return nil, newTimeoutError("transport.read", nil)
	}
}

func (t *StreamTransport) Close() error { return t.rw.Close() }

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
