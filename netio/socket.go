package netio

import (
	"fmt"
	"net"
	"time"

	"github.com/facebookgo/stackerr"
)

// TimeoutError reports that a suspension point (connect, accept, recv,
// send) exceeded its deadline. The caller converts it to a connection
// failure, it is never silently retried.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("netio: %s timed out", e.Op) }

// Timeout reports whether err is (or wraps) a TimeoutError, mirroring the
// net.Error Timeout() convention so callers can keep using that check.
func Timeout(err error) bool {
	type timeout interface{ Timeout() bool }
	return stackerr.HasUnderlying(err, stackerr.MatcherFunc(func(e error) bool {
		t, ok := e.(timeout)
		return ok && t.Timeout()
	}))
}

func (e *TimeoutError) Timeout() bool   { return true }
func (e *TimeoutError) Temporary() bool { return true }

// Socket wraps a net.Conn with the five suspension points the task runtime
// surface names: connect, accept, recv, send, sendmsg. Every accepted
// client is named "ip:port" per the peer-naming convention.
type Socket struct {
	net.Conn
	Peer string
}

// Dial connects to addr, suspending the caller until the connection
// succeeds, fails, or timeout elapses.
func Dial(network, addr string, timeout time.Duration) (*Socket, error) {
	conn, err := net.DialTimeout(network, addr, timeout)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return nil, stackerr.Wrap(&TimeoutError{Op: "connect"})
		}
		return nil, stackerr.Wrap(err)
	}
	return &Socket{Conn: conn, Peer: conn.RemoteAddr().String()}, nil
}

// Listener wraps a net.Listener, naming every accepted client "ip:port".
type Listener struct {
	net.Listener
}

// Listen binds and listens on addr.
func Listen(network, addr string) (*Listener, error) {
	l, err := net.Listen(network, addr)
	if err != nil {
		return nil, stackerr.Wrap(err)
	}
	return &Listener{Listener: l}, nil
}

// Accept blocks until a client connects, the listener closes, or an error
// occurs.
func (l *Listener) Accept() (*Socket, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, stackerr.Wrap(err)
	}
	return &Socket{Conn: conn, Peer: conn.RemoteAddr().String()}, nil
}

// Recv reads into buf, suspending until data arrives, the deadline elapses,
// or the connection fails. A zero timeout disables the deadline.
func (s *Socket) Recv(buf []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		if err := s.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return 0, stackerr.Wrap(err)
		}
	}
	n, err := s.Conn.Read(buf)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return n, stackerr.Wrap(&TimeoutError{Op: "recv"})
		}
		return n, stackerr.Wrap(err)
	}
	return n, nil
}

// Send writes buf in full, suspending until the OS accepts every byte, the
// deadline elapses, or the connection fails.
func (s *Socket) Send(buf []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		if err := s.Conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return 0, stackerr.Wrap(err)
		}
	}
	n, err := s.Conn.Write(buf)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return n, stackerr.Wrap(&TimeoutError{Op: "send"})
		}
		return n, stackerr.Wrap(err)
	}
	return n, nil
}

// SendMsg issues a single vectored write of iov, the Go analogue of
// sendmsg(2) with an iovec array -- net.Buffers picks writev when the
// underlying conn supports it.
func (s *Socket) SendMsg(iov [][]byte, timeout time.Duration) (int64, error) {
	if timeout > 0 {
		if err := s.Conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return 0, stackerr.Wrap(err)
		}
	}
	nb := net.Buffers(iov)
	n, err := nb.WriteTo(s.Conn)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return n, stackerr.Wrap(&TimeoutError{Op: "sendmsg"})
		}
		return n, stackerr.Wrap(err)
	}
	return n, nil
}
