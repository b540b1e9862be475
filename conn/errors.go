// Package conn implements the Connection and Cursor state machines that
// sit on top of framing and wire: request-id assignment, byte/message
// counters, the command helpers (ping, isMaster, buildInfo, getLastError),
// and a paged cursor that drives an OP_QUERY/OP_GETMORE loop.
package conn

import "fmt"

// ErrorCode enumerates the CONNECTION_ERROR domain (4000) failure reasons
// reported by Connection's command helpers.
type ErrorCode int

const (
	// SendFailure means the writer could not deliver the request.
	SendFailure ErrorCode = 1
	// RecvFailure means the reader could not produce a reply.
	RecvFailure ErrorCode = 2
	// QueryFailure means a reply arrived but was not an OP_REPLY answering
	// the request, or carried a query-failure flag or a falsy "ok" field.
	QueryFailure ErrorCode = 3
)

func (c ErrorCode) String() string {
	switch c {
	case SendFailure:
		return "SEND_FAILURE"
	case RecvFailure:
		return "RECV_FAILURE"
	case QueryFailure:
		return "QUERY_FAILURE"
	default:
		return "UNKNOWN_FAILURE"
	}
}

// Error reports a CONNECTION_ERROR domain failure: a command helper
// (command, get_last_error, ...) that could not complete.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conn: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("conn: %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Underlying lets github.com/facebookgo/stackerr.Underlying/HasUnderlying
// walk past this Error to the stackerr-wrapped cause beneath it.
func (e *Error) Underlying() error { return e.Err }
