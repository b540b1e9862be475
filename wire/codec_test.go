package wire

import (
	"bytes"
	"testing"
)

func TestOpCodeString(t *testing.T) {
	cases := []struct {
		OpCode OpCode
		String string
	}{
		{OpCode(0), "UNKNOWN"},
		{OpReply, "REPLY"},
		{OpMessage, "MESSAGE"},
		{OpUpdate, "UPDATE"},
		{OpInsert, "INSERT"},
		{Reserved, "RESERVED"},
		{OpQuery, "QUERY"},
		{OpGetMore, "GET_MORE"},
		{OpDelete, "DELETE"},
		{OpKillCursors, "KILL_CURSORS"},
	}
	for _, cs := range cases {
		if got := cs.OpCode.String(); got != cs.String {
			t.Errorf("OpCode(%d).String() = %q, want %q", cs.OpCode, got, cs.String)
		}
	}
}

func TestMessageHeaderRoundTrip(t *testing.T) {
	h := MessageHeader{MessageLength: 42, RequestID: 7, ResponseTo: 0, OpCode: OpQuery}
	buf := make([]byte, HeaderLen)
	h.Gather(buf)

	var got MessageHeader
	if err := got.Scatter(buf); err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	if got != h {
		t.Fatalf("got %+v, want %+v", got, h)
	}
}

func TestMessageHeaderString(t *testing.T) {
	h := &MessageHeader{OpCode: OpQuery, MessageLength: 10, RequestID: 42, ResponseTo: 43}
	want := "opCode:QUERY (2004) msgLen:10 reqID:42 respTo:43"
	if got := h.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestHeaderScatterShort(t *testing.T) {
	var h MessageHeader
	if err := h.Scatter(make([]byte, 4)); err == nil {
		t.Fatalf("expected error for short header")
	}
}

// bsonDoc builds a minimal valid empty BSON document (5 bytes: length=5,
// terminator=0).
func bsonDoc() []byte {
	return []byte{5, 0, 0, 0, 0}
}

func roundTrip(t *testing.T, msg *Message) *Message {
	t.Helper()
	bufs, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	flat := bytes.Join(bufs, nil)
	if int64(len(flat)) != bufs.Len() {
		t.Fatalf("Buffers.Len() = %d, flattened length = %d", bufs.Len(), len(flat))
	}
	if int32(len(flat)) != msg.Header.MessageLength {
		t.Fatalf("msg_len %d does not match encoded length %d", msg.Header.MessageLength, len(flat))
	}

	decoded, err := Decode(flat)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return decoded
}

func TestReplyRoundTrip(t *testing.T) {
	docs := append(append([]byte{}, bsonDoc()...), bsonDoc()...)
	msg := &Message{
		Header: MessageHeader{RequestID: 1, ResponseTo: 2, OpCode: OpReply},
		Body: &Reply{
			ResponseFlags:  0,
			CursorID:       42,
			StartingFrom:   0,
			NumberReturned: 2,
			Documents:      docs,
		},
	}
	decoded := roundTrip(t, msg)
	got := decoded.Body.(*Reply)
	if got.CursorID != 42 || got.NumberReturned != 2 || !bytes.Equal(got.Documents, docs) {
		t.Fatalf("got %+v", got)
	}
}

func TestQueryRoundTripWithFields(t *testing.T) {
	query := bsonDoc()
	fields := bsonDoc()
	msg := &Message{
		Header: MessageHeader{RequestID: 7, OpCode: OpQuery},
		Body: &Query{
			Flags:              0,
			FullCollectionName: "admin.$cmd",
			NumberToSkip:       0,
			NumberToReturn:     1,
			Query:              query,
			Fields:             fields,
		},
	}
	decoded := roundTrip(t, msg)
	got := decoded.Body.(*Query)
	if got.FullCollectionName != "admin.$cmd" || !bytes.Equal(got.Query, query) || !bytes.Equal(got.Fields, fields) {
		t.Fatalf("got %+v", got)
	}
}

func TestQueryRoundTripWithoutFields(t *testing.T) {
	query := bsonDoc()
	msg := &Message{
		Header: MessageHeader{RequestID: 7, OpCode: OpQuery},
		Body: &Query{
			FullCollectionName: "admin.$cmd",
			NumberToReturn:     1,
			Query:              query,
		},
	}
	decoded := roundTrip(t, msg)
	got := decoded.Body.(*Query)
	if got.Fields != nil {
		t.Fatalf("expected Fields to stay absent, got %v", got.Fields)
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	selector := bsonDoc()
	update := bsonDoc()
	msg := &Message{
		Header: MessageHeader{OpCode: OpUpdate},
		Body: &Update{
			FullCollectionName: "db.coll",
			Flags:              UpdateUpsert,
			Selector:           selector,
			Update:             update,
		},
	}
	decoded := roundTrip(t, msg)
	got := decoded.Body.(*Update)
	if got.Flags != UpdateUpsert || !bytes.Equal(got.Selector, selector) || !bytes.Equal(got.Update, update) {
		t.Fatalf("got %+v", got)
	}
}

func TestInsertRoundTrip(t *testing.T) {
	d1, d2 := bsonDoc(), bsonDoc()
	msg := &Message{
		Header: MessageHeader{OpCode: OpInsert},
		Body: &Insert{
			FullCollectionName: "db.coll",
			Documents:          [][]byte{d1, d2},
		},
	}
	decoded := roundTrip(t, msg)
	got := decoded.Body.(*Insert)
	if len(got.Documents) != 2 {
		t.Fatalf("got %d documents, want 2", len(got.Documents))
	}
}

func TestGetMoreRoundTrip(t *testing.T) {
	msg := &Message{
		Header: MessageHeader{OpCode: OpGetMore},
		Body: &GetMore{
			FullCollectionName: "db.coll",
			NumberToReturn:     100,
			CursorID:           123456789,
		},
	}
	decoded := roundTrip(t, msg)
	got := decoded.Body.(*GetMore)
	if got.CursorID != 123456789 || got.NumberToReturn != 100 {
		t.Fatalf("got %+v", got)
	}
}

func TestDeleteRoundTrip(t *testing.T) {
	selector := bsonDoc()
	msg := &Message{
		Header: MessageHeader{OpCode: OpDelete},
		Body: &Delete{
			FullCollectionName: "db.coll",
			Flags:              DeleteSingleRemove,
			Selector:           selector,
		},
	}
	decoded := roundTrip(t, msg)
	got := decoded.Body.(*Delete)
	if got.Flags != DeleteSingleRemove || !bytes.Equal(got.Selector, selector) {
		t.Fatalf("got %+v", got)
	}
}

func TestKillCursorsRoundTrip(t *testing.T) {
	msg := &Message{
		Header: MessageHeader{OpCode: OpKillCursors},
		Body: &KillCursors{
			CursorIDs: []int64{1, 2, 3},
		},
	}
	decoded := roundTrip(t, msg)
	got := decoded.Body.(*KillCursors)
	if len(got.CursorIDs) != 3 || got.CursorIDs[2] != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestMsgRoundTrip(t *testing.T) {
	msg := &Message{
		Header: MessageHeader{OpCode: OpMessage},
		Body:   &Msg{Message: "hello"},
	}
	decoded := roundTrip(t, msg)
	if decoded.Body.(*Msg).Message != "hello" {
		t.Fatalf("got %+v", decoded.Body)
	}
}

func TestDecodeUnknownOpCode(t *testing.T) {
	h := MessageHeader{MessageLength: HeaderLen, OpCode: OpCode(9999)}
	buf := make([]byte, HeaderLen)
	h.Gather(buf)
	if _, err := Decode(buf); err == nil {
		t.Fatalf("expected decode error for unknown opcode")
	}
}

// TestScenarioS1EncodePing verifies the exact byte layout of spec.md scenario
// S1: an OP_QUERY {ping:1} on admin.$cmd, request_id=7.
func TestScenarioS1EncodePing(t *testing.T) {
	pingDoc := []byte{
		15, 0, 0, 0, // length = 15
		0x10, 'p', 'i', 'n', 'g', 0x00, // int32 "ping"
		1, 0, 0, 0, // value 1
		0x00, // document terminator
	}
	msg := &Message{
		Header: MessageHeader{RequestID: 7, OpCode: OpQuery},
		Body: &Query{
			FullCollectionName: "admin.$cmd",
			NumberToReturn:     1,
			Query:              pingDoc,
		},
	}
	bufs, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	flat := bytes.Join(bufs, nil)

	if msg.Header.MessageLength != 54 {
		t.Fatalf("msg_len = %d, want 54", msg.Header.MessageLength)
	}

	want := append([]byte{}, []byte{54, 0, 0, 0}...)             // msg_len LE
	want = append(want, []byte{7, 0, 0, 0}...)                    // request_id
	want = append(want, []byte{0, 0, 0, 0}...)                    // response_to
	want = append(want, []byte{0xd4, 0x07, 0, 0}...)              // opcode 2004
	want = append(want, []byte{0, 0, 0, 0}...)                    // flags
	want = append(want, []byte("admin.$cmd\x00")...)              // collection
	want = append(want, []byte{0, 0, 0, 0}...)                    // skip
	want = append(want, []byte{1, 0, 0, 0}...)                    // n_return
	want = append(want, pingDoc...)                               // query doc

	if !bytes.Equal(flat, want) {
		t.Fatalf("got  % x\nwant % x", flat, want)
	}
}

// TestScenarioS2DecodeReplyTwoEmptyDocs verifies spec.md scenario S2.
func TestScenarioS2DecodeReplyTwoEmptyDocs(t *testing.T) {
	body := []byte{
		0, 0, 0, 0, // flags
		0, 0, 0, 0, 0, 0, 0, 0, // cursor_id
		0, 0, 0, 0, // starting_from
		2, 0, 0, 0, // n_returned
		5, 0, 0, 0, 0, // empty doc
		5, 0, 0, 0, 0, // empty doc
	}
	frame := make([]byte, HeaderLen+len(body))
	h := MessageHeader{MessageLength: int32(len(frame)), OpCode: OpReply}
	h.Gather(frame)
	copy(frame[HeaderLen:], body)

	msg, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	reply := msg.Body.(*Reply)
	if len(reply.Documents) != 10 {
		t.Fatalf("documents_len = %d, want 10", len(reply.Documents))
	}

	it := reply.DocumentIter()
	count := 0
	for {
		_, ok, err := it.Next()
		if err != nil {
			t.Fatalf("iter: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("got %d documents, want 2", count)
	}
}

// TestScenarioS5MalformedBSONLength verifies spec.md scenario S5: a query
// field whose BSON length prefix claims 3 bytes must fail to decode.
func TestScenarioS5MalformedBSONLength(t *testing.T) {
	body := []byte{}
	body = append(body, 0, 0, 0, 0) // flags
	body = append(body, []byte("admin.$cmd\x00")...)
	body = append(body, 0, 0, 0, 0) // skip
	body = append(body, 1, 0, 0, 0) // n_return
	body = append(body, 3, 0, 0, 0) // bogus bson length of 3

	frame := make([]byte, HeaderLen+len(body))
	h := MessageHeader{MessageLength: int32(len(frame)), OpCode: OpQuery}
	h.Gather(frame)
	copy(frame[HeaderLen:], body)

	if _, err := Decode(frame); err == nil {
		t.Fatalf("expected decode error for malformed bson length")
	}
}
