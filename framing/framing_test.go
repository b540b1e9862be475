package framing

import (
	"bytes"
	"io"
	"testing"

	"github.com/mcuadros/wireproxy/wire"
)

// chunkedReader dribbles bytes out a few at a time, used to simulate a
// socket delivering a frame across multiple short reads.
type chunkedReader struct {
	chunks [][]byte
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	if n == len(c.chunks[0]) {
		c.chunks = c.chunks[1:]
	} else {
		c.chunks[0] = c.chunks[0][n:]
	}
	return n, nil
}

func encodedPing(t *testing.T, requestID int32) []byte {
	t.Helper()
	msg := &wire.Message{
		Header: wire.MessageHeader{RequestID: requestID, OpCode: wire.OpQuery},
		Body: &wire.Query{
			FullCollectionName: "admin.$cmd",
			NumberToReturn:     1,
			Query:              []byte{5, 0, 0, 0, 0},
		},
	}
	bufs, err := wire.Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return bytes.Join(bufs, nil)
}

// TestScenarioS3ShortReadReassembly verifies spec.md scenario S3: a frame
// delivered in chunks of 3, 1, 40, 0 bytes is reassembled into one message.
func TestScenarioS3ShortReadReassembly(t *testing.T) {
	frame := encodedPing(t, 7)
	if len(frame) < 44 {
		t.Fatalf("test fixture too small: %d bytes", len(frame))
	}

	chunks := [][]byte{
		frame[0:3],
		frame[3:4],
		frame[4:44],
		frame[44:],
	}
	r := NewReader(&chunkedReader{chunks: chunks})

	msg, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if msg.Header.RequestID != 7 || msg.Header.OpCode != wire.OpQuery {
		t.Fatalf("got header %+v", msg.Header)
	}
}

func TestReaderReadsTwoPipelinedFrames(t *testing.T) {
	first := encodedPing(t, 1)
	second := encodedPing(t, 2)
	r := NewReader(bytes.NewReader(append(first, second...)))

	m1, err := r.Read()
	if err != nil {
		t.Fatalf("Read 1: %v", err)
	}
	if m1.Header.RequestID != 1 {
		t.Fatalf("got request id %d, want 1", m1.Header.RequestID)
	}

	m2, err := r.Read()
	if err != nil {
		t.Fatalf("Read 2: %v", err)
	}
	if m2.Header.RequestID != 2 {
		t.Fatalf("got request id %d, want 2", m2.Header.RequestID)
	}
}

func TestReaderRejectsUndersizeMessageLength(t *testing.T) {
	buf := make([]byte, wire.HeaderLen)
	h := wire.MessageHeader{MessageLength: 4, OpCode: wire.OpQuery}
	h.Gather(buf)
	r := NewReader(bytes.NewReader(buf))

	if _, err := r.Read(); err == nil {
		t.Fatalf("expected error for msg_len smaller than header")
	}
}

func TestReaderRejectsOversizeFrame(t *testing.T) {
	buf := make([]byte, wire.HeaderLen)
	h := wire.MessageHeader{MessageLength: int32(DefaultMaxMessageSize) + 1, OpCode: wire.OpQuery}
	h.Gather(buf)
	r := NewReader(bytes.NewReader(buf))

	if _, err := r.Read(); err == nil {
		t.Fatalf("expected error for oversize frame")
	}
}

type writeBuffer struct {
	bytes.Buffer
}

func TestWriterRoundTripsThroughReader(t *testing.T) {
	msg := &wire.Message{
		Header: wire.MessageHeader{RequestID: 9, OpCode: wire.OpQuery},
		Body: &wire.Query{
			FullCollectionName: "admin.$cmd",
			NumberToReturn:     1,
			Query:              []byte{5, 0, 0, 0, 0},
		},
	}

	var wb writeBuffer
	w := NewWriter(&wb)
	if err := w.Write(msg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r := NewReader(&wb)
	got, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Header.RequestID != 9 {
		t.Fatalf("got request id %d, want 9", got.Header.RequestID)
	}
}
