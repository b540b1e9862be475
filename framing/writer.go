package framing

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/facebookgo/stackerr"
	"github.com/mcuadros/wireproxy/wire"
)

// Writer gathers a wire.Message into a single vectored send. A short write
// (the OS accepting fewer bytes than were handed to it) is treated as a
// write failure for the connection, matching the all-or-nothing contract
// the codec's Gather step assumes.
type Writer struct {
	conn io.Writer

	// WriteTimeout, when set alongside a net.Conn, bounds the send.
	WriteTimeout time.Duration
	deadline     interface{ SetWriteDeadline(time.Time) error }
}

// NewWriter creates a Writer sending frames to conn.
func NewWriter(conn io.Writer) *Writer {
	w := &Writer{conn: conn}
	if d, ok := conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
		w.deadline = d
	}
	return w
}

// Write gathers msg and issues a single vectored send when the underlying
// writer is a *net.TCPConn (or another net package connection that
// net.Buffers can writev to); it falls back to sequential writes of each
// buffer otherwise.
func (w *Writer) Write(msg *wire.Message) error {
	bufs, err := wire.Encode(msg)
	if err != nil {
		return err
	}

	if w.deadline != nil && w.WriteTimeout > 0 {
		if err := w.deadline.SetWriteDeadline(time.Now().Add(w.WriteTimeout)); err != nil {
			return stackerr.Wrap(err)
		}
	}

	want := bufs.Len()
	n, err := w.writeBuffers(bufs)
	if err != nil {
		return stackerr.Wrap(err)
	}
	if n != want {
		return stackerr.Wrap(&FrameError{Reason: fmt.Sprintf("short write: wrote %d of %d bytes", n, want)})
	}
	return nil
}

// WriteRaw passes a pre-framed buffer vector straight through, used by the
// proxy path to relay frames it has decoded but not otherwise modified.
func (w *Writer) WriteRaw(bufs wire.Buffers) error {
	want := bufs.Len()
	n, err := w.writeBuffers(bufs)
	if err != nil {
		return stackerr.Wrap(err)
	}
	if n != want {
		return stackerr.Wrap(&FrameError{Reason: fmt.Sprintf("short write: wrote %d of %d bytes", n, want)})
	}
	return nil
}

// writeBuffers hands bufs to net.Buffers.WriteTo, which issues a single
// writev when w.conn supports it (*net.TCPConn, *net.UnixConn) and falls back
// to sequential Write calls otherwise.
func (w *Writer) writeBuffers(bufs wire.Buffers) (int64, error) {
	nb := net.Buffers(bufs)
	return nb.WriteTo(w.conn)
}
