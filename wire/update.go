package wire

import "fmt"

// Update is the OP_UPDATE body.
type Update struct {
	// Zero is reserved for future use.
	Zero int32
	// FullCollectionName is "dbname.collectionname".
	FullCollectionName string
	// Flags is a bit vector, see the Update* flag constants.
	Flags int32
	// Selector is the query that selects the document(s) to update.
	Selector []byte
	// Update is the update specification to apply.
	Update []byte

	zeroBuf  [4]byte
	flagsBuf [4]byte
}

// OpCode implements Body.
func (u *Update) OpCode() OpCode { return OpUpdate }

// Scatter implements Body.
func (u *Update) Scatter(buf []byte) error {
	if err := requireLen(buf, 4, "update zero"); err != nil {
		return err
	}
	u.Zero = getInt32(buf[0:4])
	buf = buf[4:]

	var err error
	u.FullCollectionName, buf, err = scatterCString(buf)
	if err != nil {
		return err
	}

	if err := requireLen(buf, 4, "update flags"); err != nil {
		return err
	}
	u.Flags = getInt32(buf[0:4])
	buf = buf[4:]

	u.Selector, buf, err = scatterBSON(buf)
	if err != nil {
		return err
	}
	u.Update, buf, err = scatterBSON(buf)
	if err != nil {
		return err
	}
	return nil
}

// Gather implements Body.
func (u *Update) Gather(dst Buffers) Buffers {
	putInt32(u.zeroBuf[:], u.Zero)
	dst = append(dst, u.zeroBuf[:])
	dst = gatherCString(dst, u.FullCollectionName)
	putInt32(u.flagsBuf[:], u.Flags)
	dst = append(dst, u.flagsBuf[:])
	dst = append(dst, u.Selector)
	dst = append(dst, u.Update)
	return dst
}

// ToLE implements Body.
func (u *Update) ToLE() {}

// FromLE implements Body.
func (u *Update) FromLE() {}

// DebugString implements Body.
func (u *Update) DebugString() string {
	return fmt.Sprintf(
		"UPDATE collection=%q flags=%d selector=%s update=%s",
		u.FullCollectionName, u.Flags, debugBSON(u.Selector), debugBSON(u.Update),
	)
}
