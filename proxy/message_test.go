package proxy

import (
	"net"
	"testing"

	"github.com/facebookgo/ensure"
	"github.com/mcuadros/wireproxy/conn"
	"github.com/mcuadros/wireproxy/wire"
	"gopkg.in/mgo.v2/bson"
)

func pipePair(t *testing.T) (*conn.Connection, *conn.Connection) {
	t.Helper()
	a, b := net.Pipe()
	ca, err := conn.Init(a)
	ensure.Nil(t, err)
	cb, err := conn.Init(b)
	ensure.Nil(t, err)
	return ca, cb
}

func queryMessage(t *testing.T, collection string, doc interface{}) *wire.Message {
	t.Helper()
	raw, err := bson.Marshal(doc)
	ensure.Nil(t, err)
	return &wire.Message{
		Header: wire.MessageHeader{OpCode: wire.OpQuery},
		Body:   &wire.Query{FullCollectionName: collection, NumberToReturn: 1, Query: raw},
	}
}

func newTestHandler() *Handler {
	top := NewTopology([]Member{{Real: "mongo-1:27017", Proxy: "proxy-1:6000", State: ReplicaStatePrimary}})
	return &Handler{
		Log:                              testLogger{},
		GetLastErrorRewriter:             &GetLastErrorRewriter{Log: testLogger{}},
		IsMasterResponseRewriter:         &IsMasterResponseRewriter{Log: testLogger{}, Topology: top},
		ReplSetGetStatusResponseRewriter: &ReplSetGetStatusResponseRewriter{Log: testLogger{}, Topology: top},
	}
}

// TestHandlerRelaysOrdinaryQuery checks a non-command query is relayed
// through untouched in both directions.
func TestHandlerRelaysOrdinaryQuery(t *testing.T) {
	h := newTestHandler()
	client, clientSide := pipePair(t)
	server, serverSide := pipePair(t)
	defer client.Close()
	defer clientSide.Close()
	defer server.Close()
	defer serverSide.Close()

	req := queryMessage(t, "test.coll", bson.M{"x": 1})

	done := make(chan error, 1)
	go func() {
		got, err := serverSide.Recv()
		if err != nil {
			done <- err
			return
		}
		q := got.Body.(*wire.Query)
		if q.FullCollectionName != "test.coll" {
			done <- nil
			return
		}
		done <- serverSide.Send(&wire.Message{
			Header: wire.MessageHeader{ResponseTo: got.Header.RequestID, OpCode: wire.OpReply},
			Body:   &wire.Reply{NumberReturned: 1, Documents: mustBSON(t, bson.M{"ok": 1})},
		})
	}()

	var lastError LastError
	handled := make(chan error, 1)
	go func() { handled <- h.Handle(req, client, server, &lastError) }()

	reply, err := clientSide.Recv()
	ensure.Nil(t, <-handled)
	ensure.Nil(t, <-done)
	ensure.Nil(t, err)
	r, ok := reply.Body.(*wire.Reply)
	ensure.True(t, ok)
	ensure.DeepEqual(t, r.NumberReturned, int32(1))
}

func mustBSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := bson.Marshal(v)
	ensure.Nil(t, err)
	return b
}

// TestHandlerCachesGetLastError checks that a getLastError call with nothing
// cached round-trips to the server while a second call right after it is
// answered from the cache without touching the server.
func TestHandlerCachesGetLastError(t *testing.T) {
	h := newTestHandler()
	client, clientSide := pipePair(t)
	server, serverSide := pipePair(t)
	defer client.Close()
	defer clientSide.Close()
	defer server.Close()
	defer serverSide.Close()

	serverHits := make(chan struct{}, 2)
	go func() {
		for {
			req, err := serverSide.Recv()
			if err != nil {
				return
			}
			serverHits <- struct{}{}
			serverSide.Send(&wire.Message{
				Header: wire.MessageHeader{ResponseTo: req.Header.RequestID, OpCode: wire.OpReply},
				Body:   &wire.Reply{NumberReturned: 1, Documents: mustBSON(t, bson.M{"ok": 1, "n": 1})},
			})
		}
	}()

	var lastError LastError
	gle := queryMessage(t, "test.$cmd", bson.M{"getLastError": 1})
	gle.Header.RequestID = 101

	handled := make(chan error, 1)
	go func() { handled <- h.Handle(gle, client, server, &lastError) }()
	reply1, err := clientSide.Recv()
	ensure.Nil(t, <-handled)
	<-serverHits
	ensure.Nil(t, err)

	gle2 := queryMessage(t, "test.$cmd", bson.M{"getLastError": 1})
	gle2.Header.RequestID = 202
	go func() { handled <- h.Handle(gle2, client, server, &lastError) }()
	reply2, err := clientSide.Recv()
	ensure.Nil(t, <-handled)
	ensure.Nil(t, err)

	select {
	case <-serverHits:
		t.Fatal("second getLastError should have been answered from cache, not the server")
	default:
	}

	ensure.DeepEqual(t, reply1.Header.ResponseTo, gle.Header.RequestID)
	ensure.DeepEqual(t, reply2.Header.ResponseTo, gle2.Header.RequestID)
}
