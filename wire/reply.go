package wire

import "fmt"

// Reply is the OP_REPLY body: the server's response to an OP_QUERY or
// OP_GETMORE.
type Reply struct {
	// ResponseFlags is a bit vector, see the Reply* flag constants.
	ResponseFlags int32
	// CursorID identifies a cursor that can be used to fetch more results,
	// or 0 if the cursor has been exhausted.
	CursorID int64
	// StartingFrom is the position in the cursor this reply starts from.
	StartingFrom int32
	// NumberReturned is the number of documents in this reply.
	NumberReturned int32
	// Documents packs NumberReturned BSON documents back to back; use
	// NewDocumentIter to walk them.
	Documents []byte

	scratch [20]byte
}

// OpCode implements Body.
func (r *Reply) OpCode() OpCode { return OpReply }

// Scatter implements Body.
func (r *Reply) Scatter(buf []byte) error {
	if err := requireLen(buf, 20, "reply prefix"); err != nil {
		return err
	}
	r.ResponseFlags = getInt32(buf[0:4])
	r.CursorID = getInt64(buf[4:12])
	r.StartingFrom = getInt32(buf[12:16])
	r.NumberReturned = getInt32(buf[16:20])
	r.Documents = buf[20:]
	return nil
}

// Gather implements Body.
func (r *Reply) Gather(dst Buffers) Buffers {
	putInt32(r.scratch[0:4], r.ResponseFlags)
	putInt64(r.scratch[4:12], r.CursorID)
	putInt32(r.scratch[12:16], r.StartingFrom)
	putInt32(r.scratch[16:20], r.NumberReturned)
	dst = append(dst, r.scratch[:])
	if len(r.Documents) > 0 {
		dst = append(dst, r.Documents)
	}
	return dst
}

// ToLE implements Body. See the comment on the Body interface.
func (r *Reply) ToLE() {}

// FromLE implements Body.
func (r *Reply) FromLE() {}

// DebugString implements Body.
func (r *Reply) DebugString() string {
	return fmt.Sprintf(
		"REPLY flags=%d cursor_id=%d starting_from=%d n_returned=%d documents_len=%d",
		r.ResponseFlags, r.CursorID, r.StartingFrom, r.NumberReturned, len(r.Documents),
	)
}

// DocumentIter returns the reply's document payload as an iterator.
func (r *Reply) DocumentIter() *DocumentIter {
	return NewDocumentIter(r.Documents)
}
