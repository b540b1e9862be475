package wire

import "fmt"

// Insert is the OP_INSERT body.
type Insert struct {
	// Flags is a bit vector, see the Insert* flag constants.
	Flags int32
	// FullCollectionName is "dbname.collectionname".
	FullCollectionName string
	// Documents is one or more documents to insert. On decode each document
	// borrows a slice of the frame buffer; on encode each is written as its
	// own vector entry (the IOVEC-ARRAY shape from spec.md section 3.2).
	Documents [][]byte

	flagsBuf [4]byte
}

// OpCode implements Body.
func (i *Insert) OpCode() OpCode { return OpInsert }

// Scatter implements Body.
func (i *Insert) Scatter(buf []byte) error {
	if err := requireLen(buf, 4, "insert flags"); err != nil {
		return err
	}
	i.Flags = getInt32(buf[0:4])
	buf = buf[4:]

	var err error
	i.FullCollectionName, buf, err = scatterCString(buf)
	if err != nil {
		return err
	}

	i.Documents, err = splitDocuments(buf)
	return err
}

// Gather implements Body.
func (i *Insert) Gather(dst Buffers) Buffers {
	putInt32(i.flagsBuf[:], i.Flags)
	dst = append(dst, i.flagsBuf[:])
	dst = gatherCString(dst, i.FullCollectionName)
	for _, doc := range i.Documents {
		dst = append(dst, doc)
	}
	return dst
}

// ToLE implements Body.
func (i *Insert) ToLE() {}

// FromLE implements Body.
func (i *Insert) FromLE() {}

// DebugString implements Body.
func (i *Insert) DebugString() string {
	return fmt.Sprintf("INSERT collection=%q flags=%d documents=%d", i.FullCollectionName, i.Flags, len(i.Documents))
}
