package wire

// DocumentIter walks a BSON-ARRAY -- zero or more length-prefixed BSON
// documents packed back-to-back, with the array's length equal to the
// remaining bytes in the frame. It borrows from the buffer it was built
// with; like the rest of a scattered Message, it is only valid until the
// framed reader's next Read.
type DocumentIter struct {
	buf []byte
}

// NewDocumentIter returns an iterator over the documents packed into buf.
func NewDocumentIter(buf []byte) *DocumentIter {
	return &DocumentIter{buf: buf}
}

// Next returns the next document, or ok=false once the buffer is exhausted.
func (it *DocumentIter) Next() (doc []byte, ok bool, err error) {
	if len(it.buf) == 0 {
		return nil, false, nil
	}
	doc, rest, err := scatterBSON(it.buf)
	if err != nil {
		return nil, false, err
	}
	it.buf = rest
	return doc, true, nil
}

// splitDocuments is a convenience used by opcode bodies that decode an
// IOVEC-ARRAY / BSON-ARRAY into a slice of individual document slices.
func splitDocuments(buf []byte) ([][]byte, error) {
	var docs [][]byte
	it := NewDocumentIter(buf)
	for {
		doc, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
