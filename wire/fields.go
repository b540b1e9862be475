package wire

import (
	"bytes"
	"fmt"

	"github.com/facebookgo/stackerr"
)

// scatterCString borrows the NUL-terminated string starting at buf[0],
// returning the string (without the trailing NUL) and the remainder of buf
// after the NUL. Mirrors protocol/utils.go's ReadCString, but scans an
// in-memory buffer instead of an io.Reader since the framed reader already
// holds the whole message.
func scatterCString(buf []byte) (string, []byte, error) {
	i := bytes.IndexByte(buf, 0x00)
	if i < 0 {
		return "", nil, stackerr.Wrap(&DecodeError{Reason: "cstring missing NUL terminator"})
	}
	return string(buf[:i]), buf[i+1:], nil
}

// scatterBSON borrows a single length-prefixed BSON document from the front
// of buf, validating 5 <= len <= len(buf), and returns the document and the
// remainder of buf.
func scatterBSON(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, stackerr.Wrap(&DecodeError{Reason: fmt.Sprintf("short bson length prefix: %d bytes", len(buf))})
	}
	n := getInt32(buf[0:4])
	if n < 5 || int(n) > len(buf) {
		return nil, nil, stackerr.Wrap(&DecodeError{Reason: fmt.Sprintf("invalid bson length %d (buffer has %d bytes)", n, len(buf))})
	}
	return buf[:n], buf[n:], nil
}

// gatherCString appends s plus a trailing NUL to dst.
func gatherCString(dst Buffers, s string) Buffers {
	b := make([]byte, len(s)+1)
	copy(b, s)
	b[len(s)] = 0x00
	return append(dst, b)
}

// requireLen fails the decode with a descriptive DecodeError if buf is
// shorter than n bytes.
func requireLen(buf []byte, n int, what string) error {
	if len(buf) < n {
		return stackerr.Wrap(&DecodeError{Reason: fmt.Sprintf("short %s: need %d bytes, have %d", what, n, len(buf))})
	}
	return nil
}

// BSONJSON, if set, is used by DebugString implementations to render a BSON
// document as JSON. The wire package itself never imports a BSON library --
// this keeps the codec a pure byte-length-prefix reader as required by
// spec.md section 1 -- so a package that links in gopkg.in/mgo.v2/bson
// installs this hook at init time (conn does).
var BSONJSON func(doc []byte) string

func debugBSON(doc []byte) string {
	if BSONJSON != nil {
		return BSONJSON(doc)
	}
	return fmt.Sprintf("<%d bytes>", len(doc))
}

