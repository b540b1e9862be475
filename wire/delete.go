package wire

import "fmt"

// Delete is the OP_DELETE body.
type Delete struct {
	// Zero is reserved for future use.
	Zero int32
	// FullCollectionName is "dbname.collectionname".
	FullCollectionName string
	// Flags is a bit vector, see the Delete* flag constants.
	Flags int32
	// Selector is the query that selects the document(s) to delete.
	Selector []byte

	zeroBuf  [4]byte
	flagsBuf [4]byte
}

// OpCode implements Body.
func (d *Delete) OpCode() OpCode { return OpDelete }

// Scatter implements Body.
func (d *Delete) Scatter(buf []byte) error {
	if err := requireLen(buf, 4, "delete zero"); err != nil {
		return err
	}
	d.Zero = getInt32(buf[0:4])
	buf = buf[4:]

	var err error
	d.FullCollectionName, buf, err = scatterCString(buf)
	if err != nil {
		return err
	}

	if err := requireLen(buf, 4, "delete flags"); err != nil {
		return err
	}
	d.Flags = getInt32(buf[0:4])
	buf = buf[4:]

	d.Selector, buf, err = scatterBSON(buf)
	return err
}

// Gather implements Body.
func (d *Delete) Gather(dst Buffers) Buffers {
	putInt32(d.zeroBuf[:], d.Zero)
	dst = append(dst, d.zeroBuf[:])
	dst = gatherCString(dst, d.FullCollectionName)
	putInt32(d.flagsBuf[:], d.Flags)
	dst = append(dst, d.flagsBuf[:])
	dst = append(dst, d.Selector)
	return dst
}

// ToLE implements Body.
func (d *Delete) ToLE() {}

// FromLE implements Body.
func (d *Delete) FromLE() {}

// DebugString implements Body.
func (d *Delete) DebugString() string {
	return fmt.Sprintf("DELETE collection=%q flags=%d selector=%s", d.FullCollectionName, d.Flags, debugBSON(d.Selector))
}
