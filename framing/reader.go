// Package framing implements the growable-buffer frame reader and the
// vectored frame writer that sit between a raw connection and the wire
// codec. Reader absorbs short reads and TCP coalescing into whole
// length-prefixed messages; Writer turns a gathered Buffers vector into a
// single vectored send.
package framing

import (
	"fmt"
	"io"
	"time"

	"github.com/facebookgo/stackerr"
	"github.com/mcuadros/wireproxy/wire"
)

// DefaultMaxMessageSize caps a single frame to guard against a peer that
// lies about msg_len and tries to force an unbounded allocation.
const DefaultMaxMessageSize = 48 * 1024 * 1024

// minBufferSize is the smallest buffer Reader ever allocates.
const minBufferSize = 4096

// Reader pulls whole wire.Message frames off of a conn, compacting its
// internal buffer between reads the way protocol.CopyMessage's caller would
// if it wanted to keep the header bytes around for a second pass.
type Reader struct {
	conn io.Reader

	buf    []byte
	len    int
	msgLen int

	// MaxMessageSize overrides DefaultMaxMessageSize when non-zero.
	MaxMessageSize int

	// ReadTimeout, when set alongside a net.Conn, bounds each individual
	// recv the same way dvara's proxy bounds its copies.
	ReadTimeout time.Duration
	deadline    interface{ SetReadDeadline(time.Time) error }
}

// NewReader creates a Reader reading frames from conn.
func NewReader(conn io.Reader) *Reader {
	r := &Reader{conn: conn, buf: make([]byte, minBufferSize)}
	if d, ok := conn.(interface{ SetReadDeadline(time.Time) error }); ok {
		r.deadline = d
	}
	return r
}

func (r *Reader) maxMessageSize() int {
	if r.MaxMessageSize > 0 {
		return r.MaxMessageSize
	}
	return DefaultMaxMessageSize
}

// compact drops the previously returned frame's bytes, sliding any trailing
// data (the start of the next frame, if the peer pipelined) down to the
// front of the buffer. The caller's borrowed references into the old frame
// are invalidated by this call, per the reader's documented contract.
func (r *Reader) compact() {
	if r.len > r.msgLen {
		copy(r.buf, r.buf[r.msgLen:r.len])
	}
	r.len -= r.msgLen
	r.msgLen = 0
}

// growTo ensures r.buf can hold at least n bytes, growing to the next
// power-of-two at or above n.
func (r *Reader) growTo(n int) {
	if cap(r.buf) >= n {
		r.buf = r.buf[:cap(r.buf)]
		return
	}
	size := cap(r.buf)
	if size == 0 {
		size = minBufferSize
	}
	for size < n {
		size *= 2
	}
	grown := make([]byte, size)
	copy(grown, r.buf[:r.len])
	r.buf = grown
}

// tryFill grows the buffer if needed and reads from the connection until at
// least n bytes of valid data are present.
func (r *Reader) tryFill(n int) error {
	if n > r.maxMessageSize() {
		return stackerr.Wrap(&FrameError{Reason: fmt.Sprintf("frame of %d bytes exceeds max %d", n, r.maxMessageSize())})
	}
	r.growTo(n)
	for r.len < n {
		if r.deadline != nil && r.ReadTimeout > 0 {
			if err := r.deadline.SetReadDeadline(time.Now().Add(r.ReadTimeout)); err != nil {
				return stackerr.Wrap(err)
			}
		}
		read, err := r.conn.Read(r.buf[r.len:cap(r.buf)])
		if read > 0 {
			r.len += read
		}
		if err != nil {
			return stackerr.Wrap(err)
		}
		if read == 0 {
			return stackerr.Wrap(io.ErrNoProgress)
		}
	}
	return nil
}

// Read blocks until a full frame has arrived, decodes it, and returns the
// resulting Message. The Message's Body may hold slices that alias the
// Reader's internal buffer; they are only valid until the next call to
// Read.
func (r *Reader) Read() (*wire.Message, error) {
	r.compact()

	if err := r.tryFill(wire.HeaderLen); err != nil {
		return nil, err
	}

	var hdr wire.MessageHeader
	if err := hdr.Scatter(r.buf[:wire.HeaderLen]); err != nil {
		return nil, err
	}
	if hdr.MessageLength < wire.HeaderLen {
		return nil, stackerr.Wrap(&FrameError{Reason: fmt.Sprintf("msg_len %d is smaller than header size %d", hdr.MessageLength, wire.HeaderLen)})
	}

	msgLen := int(hdr.MessageLength)
	if err := r.tryFill(msgLen); err != nil {
		return nil, err
	}
	r.msgLen = msgLen

	return wire.Decode(r.buf[:msgLen])
}

// FrameError reports a framing-level failure distinct from a codec decode
// error: an oversize frame or a msg_len that fails the minimum-header
// sanity check.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "framing: " + e.Reason
}
