package wire

import "fmt"

// GetMore is the OP_GETMORE body.
type GetMore struct {
	// Zero is reserved for future use.
	Zero int32
	// FullCollectionName is "dbname.collectionname".
	FullCollectionName string
	// NumberToReturn is the number of documents to return.
	NumberToReturn int32
	// CursorID identifies the cursor to continue, from a prior OP_REPLY.
	CursorID int64

	zeroBuf [4]byte
	retBuf  [4]byte
	curBuf  [8]byte
}

// OpCode implements Body.
func (g *GetMore) OpCode() OpCode { return OpGetMore }

// Scatter implements Body.
func (g *GetMore) Scatter(buf []byte) error {
	if err := requireLen(buf, 4, "getmore zero"); err != nil {
		return err
	}
	g.Zero = getInt32(buf[0:4])
	buf = buf[4:]

	var err error
	g.FullCollectionName, buf, err = scatterCString(buf)
	if err != nil {
		return err
	}

	if err := requireLen(buf, 12, "getmore n_return/cursor_id"); err != nil {
		return err
	}
	g.NumberToReturn = getInt32(buf[0:4])
	g.CursorID = getInt64(buf[4:12])
	return nil
}

// Gather implements Body.
func (g *GetMore) Gather(dst Buffers) Buffers {
	putInt32(g.zeroBuf[:], g.Zero)
	dst = append(dst, g.zeroBuf[:])
	dst = gatherCString(dst, g.FullCollectionName)
	putInt32(g.retBuf[:], g.NumberToReturn)
	dst = append(dst, g.retBuf[:])
	putInt64(g.curBuf[:], g.CursorID)
	dst = append(dst, g.curBuf[:])
	return dst
}

// ToLE implements Body.
func (g *GetMore) ToLE() {}

// FromLE implements Body.
func (g *GetMore) FromLE() {}

// DebugString implements Body.
func (g *GetMore) DebugString() string {
	return fmt.Sprintf("GET_MORE collection=%q n_return=%d cursor_id=%d", g.FullCollectionName, g.NumberToReturn, g.CursorID)
}
