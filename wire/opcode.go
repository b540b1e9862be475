// Package wire implements the legacy MongoDB wire protocol: the 16-byte
// message header and the per-opcode bodies (OP_REPLY, OP_MSG, OP_UPDATE,
// OP_INSERT, OP_QUERY, OP_GETMORE, OP_DELETE, OP_KILL_CURSORS).
//
// See http://docs.mongodb.org/meta-driver/latest/legacy/mongodb-wire-protocol/
package wire

// OpCode identifies the type of operation carried by a message header.
//
// http://docs.mongodb.org/meta-driver/latest/legacy/mongodb-wire-protocol/#request-opcodes
type OpCode int32

// The full set of known request op codes.
const (
	OpReply       = OpCode(1)
	OpMessage     = OpCode(1000)
	OpUpdate      = OpCode(2001)
	OpInsert      = OpCode(2002)
	Reserved      = OpCode(2003)
	OpQuery       = OpCode(2004)
	OpGetMore     = OpCode(2005)
	OpDelete      = OpCode(2006)
	OpKillCursors = OpCode(2007)
)

// String returns a human readable representation of the OpCode.
func (c OpCode) String() string {
	switch c {
	default:
		return "UNKNOWN"
	case OpReply:
		return "REPLY"
	case OpMessage:
		return "MESSAGE"
	case OpUpdate:
		return "UPDATE"
	case OpInsert:
		return "INSERT"
	case Reserved:
		return "RESERVED"
	case OpQuery:
		return "QUERY"
	case OpGetMore:
		return "GET_MORE"
	case OpDelete:
		return "DELETE"
	case OpKillCursors:
		return "KILL_CURSORS"
	}
}

// IsMutation tells us if the operation will mutate data. These operations
// can be followed up by a getLastError call.
func (c OpCode) IsMutation() bool {
	return c == OpInsert || c == OpUpdate || c == OpDelete
}

// HasResponse tells us if the operation will have a response from the
// server.
func (c OpCode) HasResponse() bool {
	return c == OpQuery || c == OpGetMore
}

// Known returns false for Reserved and for any opcode outside the set
// above; decoding such a value is a DecodeError.
func (c OpCode) Known() bool {
	switch c {
	case OpReply, OpMessage, OpUpdate, OpInsert, OpQuery, OpGetMore, OpDelete, OpKillCursors:
		return true
	}
	return false
}

// Reply flags (bit vector carried in OP_REPLY.ResponseFlags).
const (
	ReplyCursorNotFound   = int32(1 << 0)
	ReplyQueryFailure     = int32(1 << 1)
	ReplyShardConfigStale = int32(1 << 2)
	ReplyAwaitCapable     = int32(1 << 3)
)

// Query flags (bit vector carried in OP_QUERY.Flags).
const (
	QueryTailableCursor = int32(1 << 1)
	QuerySlaveOK        = int32(1 << 2)
	QueryOplogReplay    = int32(1 << 3)
	QueryNoCursorTimeout = int32(1 << 4)
	QueryAwaitData      = int32(1 << 5)
	QueryExhaust        = int32(1 << 6)
	QueryPartial        = int32(1 << 7)
)

// Update flags (bit vector carried in OP_UPDATE.Flags).
const (
	UpdateUpsert      = int32(1 << 0)
	UpdateMultiUpdate = int32(1 << 1)
)

// Insert flags (bit vector carried in OP_INSERT.Flags).
const (
	InsertContinueOnError = int32(1 << 0)
)

// Delete flags (bit vector carried in OP_DELETE.Flags).
const (
	DeleteSingleRemove = int32(1 << 0)
)
