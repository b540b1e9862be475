package wire

import (
	"fmt"

	"github.com/facebookgo/stackerr"
)

// HeaderLen is the fixed size, in bytes, of every message header.
const HeaderLen = 16

// MessageHeader is the 16-byte header present at the start of every frame.
type MessageHeader struct {
	// MessageLength is the total message size, including this header.
	MessageLength int32
	// RequestID is the identifier for this message.
	RequestID int32
	// ResponseTo is the RequestID of the message being responded to. Used in
	// responses from the database.
	ResponseTo int32
	// OpCode is the operation type, see the OpCode constants.
	OpCode OpCode
}

// Scatter reads a MessageHeader out of the first HeaderLen bytes of buf.
func (h *MessageHeader) Scatter(buf []byte) error {
	if len(buf) < HeaderLen {
		return stackerr.Wrap(&DecodeError{Reason: fmt.Sprintf("short header: got %d bytes, need %d", len(buf), HeaderLen)})
	}
	h.MessageLength = getInt32(buf[0:4])
	h.RequestID = getInt32(buf[4:8])
	h.ResponseTo = getInt32(buf[8:12])
	h.OpCode = OpCode(getInt32(buf[12:16]))
	return nil
}

// Gather serializes the header into dst, which must be at least HeaderLen
// bytes. It returns the slice dst[:HeaderLen].
func (h MessageHeader) Gather(dst []byte) []byte {
	putInt32(dst[0:4], h.MessageLength)
	putInt32(dst[4:8], h.RequestID)
	putInt32(dst[8:12], h.ResponseTo)
	putInt32(dst[12:16], int32(h.OpCode))
	return dst[0:HeaderLen]
}

// String returns a string representation of the message header, useful for
// debugging.
func (h *MessageHeader) String() string {
	return fmt.Sprintf(
		"opCode:%s (%d) msgLen:%d reqID:%d respTo:%d",
		h.OpCode, h.OpCode, h.MessageLength, h.RequestID, h.ResponseTo,
	)
}

// Buffers is a vector of byte slices describing a frame for a single
// vectored write. It is directly usable as net.Buffers for writev-style
// sends.
type Buffers [][]byte

// Len returns the sum of the length of every slice in the vector.
func (b Buffers) Len() int64 {
	var n int64
	for _, s := range b {
		n += int64(len(s))
	}
	return n
}

// Body is implemented by every per-opcode payload type. A Body is always
// embedded alongside a MessageHeader inside a Message.
type Body interface {
	// OpCode identifies which wire opcode this body encodes/decodes.
	OpCode() OpCode

	// Scatter decodes the body in place from buf, which holds exactly the
	// bytes following the 16-byte header up to MessageLength. Decoded
	// string/document fields borrow buf; they are valid only until the next
	// Reader.Read call.
	Scatter(buf []byte) error

	// Gather appends this body's wire representation to dst and returns the
	// updated slice. Any scratch storage needed to hold freshly-serialized
	// integers is owned by the Body implementation.
	Gather(dst Buffers) Buffers

	// ToLE / FromLE exist to satisfy the protocol's documented lifecycle
	// (normalize immediately before Gather / immediately after Scatter). Our
	// Scatter/Gather already perform the little-endian conversion inline on
	// every field access (see endian.go), so these are no-ops in this
	// implementation -- see DESIGN.md for why that preserves the contract
	// instead of skipping it.
	ToLE()
	FromLE()

	// DebugString renders a one-line-per-field human representation.
	DebugString() string
}

// Message pairs a header with its opcode-specific body.
type Message struct {
	Header MessageHeader
	Body   Body
}

// DecodeError reports a malformed frame: short read, bad BSON length,
// missing NUL terminator, or unknown opcode.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "wire: decode error: " + e.Reason
}
