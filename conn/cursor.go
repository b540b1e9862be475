package conn

import (
	"fmt"

	"github.com/mcuadros/wireproxy/wire"
	"gopkg.in/mgo.v2/bson"
)

// CursorState names a state in the Cursor state machine.
type CursorState int

const (
	// Fresh means the next MoveNext will (re-)issue a request: either the
	// original query or, after paging, a staged OP_GETMORE.
	Fresh CursorState = iota
	// Sent means a request has gone out and its reply is being walked.
	Sent
	// Streaming means a reply's document stream is being drained. MoveNext
	// moves a cursor from Fresh straight to Streaming once a reply arrives
	// and handles Sent and Streaming alike.
	Streaming
	// Done means the cursor is exhausted; MoveNext always returns nil.
	Done
	// Error is terminal: an I/O failure occurred and the cursor must not be
	// reused.
	Error
)

func (s CursorState) String() string {
	switch s {
	case Fresh:
		return "Fresh"
	case Sent:
		return "Sent"
	case Streaming:
		return "Streaming"
	case Done:
		return "Done"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// getMoreBatchSize is the n_return used for every OP_GETMORE a Cursor
// stages once the initial query's reply is exhausted.
const getMoreBatchSize = 100

// Cursor drives an OP_QUERY followed by zero or more OP_GETMORE calls over
// a single Connection, handing back one document at a time.
type Cursor struct {
	conn       *Connection
	collection string
	request    *wire.Message

	state         CursorState
	hasSent       bool
	cursorID      int64
	iter          *wire.DocumentIter
	replyDocsLen  int
	err           error
}

// NewCursor creates a Cursor that will issue query against collection on
// conn when MoveNext is first called.
func NewCursor(c *Connection, collection string, query interface{}, numberToReturn int32) (*Cursor, error) {
	body, err := bson.Marshal(query)
	if err != nil {
		return nil, err
	}
	return &Cursor{
		conn:       c,
		collection: collection,
		state:      Fresh,
		request: &wire.Message{
			Header: wire.MessageHeader{OpCode: wire.OpQuery},
			Body: &wire.Query{
				FullCollectionName: collection,
				NumberToReturn:     numberToReturn,
				Query:              body,
			},
		},
	}, nil
}

// HasError reports whether the cursor has entered the terminal Error state.
func (c *Cursor) HasError() bool { return c.state == Error }

// Err returns the error that moved the cursor into the Error state, if any.
func (c *Cursor) Err() error { return c.err }

// State returns the cursor's current state.
func (c *Cursor) State() CursorState { return c.state }

func (c *Cursor) fail(err error) (bson.M, error) {
	c.state = Error
	c.err = err
	return nil, err
}

// MoveNext advances the cursor, returning the next document or (nil, nil)
// once the cursor is Done. It transparently issues the initial query and
// any follow-up OP_GETMORE calls the server's cursor_id requires.
func (c *Cursor) MoveNext() (bson.M, error) {
	for {
		switch c.state {
		case Done:
			return nil, nil
		case Error:
			return nil, c.err

		case Fresh:
			if err := c.conn.Send(c.request); err != nil {
				return c.fail(err)
			}
			reply, err := c.conn.Recv()
			if err != nil {
				return c.fail(err)
			}
			r, ok := reply.Body.(*wire.Reply)
			if !ok {
				return c.fail(fmt.Errorf("conn: cursor expected REPLY, got %s", reply.Header.OpCode))
			}
			c.hasSent = true
			c.cursorID = r.CursorID
			c.iter = r.DocumentIter()
			c.replyDocsLen = len(r.Documents)
			c.state = Streaming

		case Sent, Streaming:
			doc, ok, err := c.iter.Next()
			if err != nil {
				return c.fail(err)
			}
			if ok {
				var m bson.M
				if err := bson.Unmarshal(doc, &m); err != nil {
					return c.fail(err)
				}
				return m, nil
			}

			// Stream exhausted: either done, or stage a GETMORE and loop.
			documentsLen := c.replyDocsLen
			c.iter = nil
			if documentsLen == 0 || c.cursorID == 0 {
				c.state = Done
				return nil, nil
			}

			c.request = &wire.Message{
				Header: wire.MessageHeader{OpCode: wire.OpGetMore},
				Body: &wire.GetMore{
					FullCollectionName: c.collection,
					NumberToReturn:     getMoreBatchSize,
					CursorID:           c.cursorID,
				},
			}
			c.hasSent = false
			c.state = Fresh
		}
	}
}
