package wire

import (
	"fmt"

	"github.com/facebookgo/stackerr"
)

// newBody allocates the zero-value Body implementation for op, or a
// DecodeError if op isn't one of the known opcodes.
func newBody(op OpCode) (Body, error) {
	switch op {
	case OpReply:
		return &Reply{}, nil
	case OpMessage:
		return &Msg{}, nil
	case OpUpdate:
		return &Update{}, nil
	case OpInsert:
		return &Insert{}, nil
	case OpQuery:
		return &Query{}, nil
	case OpGetMore:
		return &GetMore{}, nil
	case OpDelete:
		return &Delete{}, nil
	case OpKillCursors:
		return &KillCursors{}, nil
	default:
		return nil, stackerr.Wrap(&DecodeError{Reason: fmt.Sprintf("unknown opcode %d", int32(op))})
	}
}

// Decode scatters a complete frame (header + body, exactly MessageLength
// bytes) into a Message. Every CSTRING/BSON/array field in the returned
// Message borrows from buf; it is only valid until the caller reuses or
// compacts buf.
func Decode(buf []byte) (*Message, error) {
	var h MessageHeader
	if err := h.Scatter(buf); err != nil {
		return nil, err
	}
	if h.MessageLength < HeaderLen {
		return nil, stackerr.Wrap(&DecodeError{Reason: fmt.Sprintf("msg_len %d shorter than header (%d)", h.MessageLength, HeaderLen)})
	}
	if int(h.MessageLength) > len(buf) {
		return nil, stackerr.Wrap(&DecodeError{Reason: fmt.Sprintf("msg_len %d exceeds available %d bytes", h.MessageLength, len(buf))})
	}

	body, err := newBody(h.OpCode)
	if err != nil {
		return nil, err
	}
	if err := body.Scatter(buf[HeaderLen:h.MessageLength]); err != nil {
		return nil, err
	}
	body.FromLE()

	return &Message{Header: h, Body: body}, nil
}

// Encode gathers msg into a vector of buffers ready for a single vectored
// write, finalizing msg.Header.MessageLength as a side effect.
func Encode(msg *Message) (Buffers, error) {
	if msg.Body == nil {
		return nil, stackerr.Wrap(fmt.Errorf("wire: cannot encode a message with a nil body"))
	}
	if msg.Header.OpCode != msg.Body.OpCode() {
		msg.Header.OpCode = msg.Body.OpCode()
	}

	msg.Body.ToLE()
	bodyBufs := msg.Body.Gather(nil)
	msg.Header.MessageLength = HeaderLen + int32(bodyBufs.Len())

	headerBytes := make([]byte, HeaderLen)
	msg.Header.Gather(headerBytes)

	out := make(Buffers, 0, len(bodyBufs)+1)
	out = append(out, headerBytes)
	out = append(out, bodyBufs...)
	return out, nil
}

// DebugString renders msg as a one-line-per-field human representation,
// header first, then the body.
func DebugString(msg *Message) string {
	return msg.Header.String() + " " + msg.Body.DebugString()
}
