package wire

import "fmt"

// Query is the OP_QUERY body.
type Query struct {
	// Flags is a bit vector, see the Query* flag constants.
	Flags int32
	// FullCollectionName is "dbname.collectionname".
	FullCollectionName string
	// NumberToSkip is the number of documents to skip.
	NumberToSkip int32
	// NumberToReturn is the number of documents to return in the first
	// OP_REPLY batch.
	NumberToReturn int32
	// Query is the query document. Always present.
	Query []byte
	// Fields is the optional field-selector document. Per spec.md section
	// 3.3/4.B (the BSON_OPTIONAL marker), it is present iff bytes remain in
	// the frame after Query -- a decode never synthesizes an empty Fields
	// when the client sent none, and Fields is nil in that case.
	Fields []byte

	flagsBuf [4]byte
	skipBuf  [4]byte
	retBuf   [4]byte
}

// OpCode implements Body.
func (q *Query) OpCode() OpCode { return OpQuery }

// Scatter implements Body.
func (q *Query) Scatter(buf []byte) error {
	if err := requireLen(buf, 4, "query flags"); err != nil {
		return err
	}
	q.Flags = getInt32(buf[0:4])
	buf = buf[4:]

	var err error
	q.FullCollectionName, buf, err = scatterCString(buf)
	if err != nil {
		return err
	}

	if err := requireLen(buf, 8, "query skip/n_return"); err != nil {
		return err
	}
	q.NumberToSkip = getInt32(buf[0:4])
	q.NumberToReturn = getInt32(buf[4:8])
	buf = buf[8:]

	q.Query, buf, err = scatterBSON(buf)
	if err != nil {
		return err
	}

	q.Fields = nil
	if len(buf) > 0 {
		q.Fields, buf, err = scatterBSON(buf)
		if err != nil {
			return err
		}
	}
	return nil
}

// Gather implements Body.
func (q *Query) Gather(dst Buffers) Buffers {
	putInt32(q.flagsBuf[:], q.Flags)
	dst = append(dst, q.flagsBuf[:])
	dst = gatherCString(dst, q.FullCollectionName)
	putInt32(q.skipBuf[:], q.NumberToSkip)
	dst = append(dst, q.skipBuf[:])
	putInt32(q.retBuf[:], q.NumberToReturn)
	dst = append(dst, q.retBuf[:])
	dst = append(dst, q.Query)
	if len(q.Fields) > 0 {
		dst = append(dst, q.Fields)
	}
	return dst
}

// ToLE implements Body.
func (q *Query) ToLE() {}

// FromLE implements Body.
func (q *Query) FromLE() {}

// DebugString implements Body.
func (q *Query) DebugString() string {
	return fmt.Sprintf(
		"QUERY flags=%d collection=%q skip=%d n_return=%d query=%s fields=%s",
		q.Flags, q.FullCollectionName, q.NumberToSkip, q.NumberToReturn,
		debugBSON(q.Query), debugOptionalBSON(q.Fields),
	)
}

func debugOptionalBSON(doc []byte) string {
	if doc == nil {
		return "<absent>"
	}
	return debugBSON(doc)
}
