package proxy

import (
	"net"
	"testing"
	"time"

	"github.com/facebookgo/ensure"
	"github.com/facebookgo/gangliamr"
	"github.com/mcuadros/wireproxy/conn"
	"github.com/mcuadros/wireproxy/netio"
	"github.com/mcuadros/wireproxy/wire"
	"gopkg.in/mgo.v2/bson"
)

// fakeMongo accepts a single connection and answers every query with
// {ok: 1}, standing in for a real mongod.
func fakeMongo(t *testing.T) (addr string, stop func()) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	ensure.Nil(t, err)

	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		sc, err := conn.Init(c)
		if err != nil {
			return
		}
		for {
			req, err := sc.Recv()
			if err != nil {
				return
			}
			sc.NoHeaderMutate = true
			sc.Send(&wire.Message{
				Header: wire.MessageHeader{ResponseTo: req.Header.RequestID, OpCode: wire.OpReply},
				Body:   &wire.Reply{NumberReturned: 1, Documents: mustBSON(t, bson.M{"ok": 1})},
			})
		}
	}()

	return l.Addr().String(), func() { l.Close() }
}

func newTestProxy(t *testing.T, mongoAddr string) *Proxy {
	t.Helper()
	p := &Proxy{
		Log:                 testLogger{},
		Handler:             newTestHandler(),
		Scheduler:           netio.NewGoScheduler(4, 16),
		ProxyAddr:           "127.0.0.1:0",
		MongoAddr:           mongoAddr,
		MaxConnections:      4,
		MinIdleConnections:  0,
		ServerClosePoolSize: 1,
		ServerIdleTimeout:   time.Minute,
		GetLastErrorTimeout: time.Second,
		ClientIdleTimeout:   time.Minute,
		MessageTimeout:      5 * time.Second,
	}
	p.RegisterMetrics(gangliamr.NewTestRegistry())
	return p
}

func TestProxyStartStopRelaysQuery(t *testing.T) {
	mongoAddr, stopMongo := fakeMongo(t)
	defer stopMongo()

	p := newTestProxy(t, mongoAddr)
	ensure.Nil(t, p.Start())
	defer p.Stop()

	c, err := net.Dial("tcp", p.listener.Addr().String())
	ensure.Nil(t, err)
	defer c.Close()

	client, err := conn.Init(c)
	ensure.Nil(t, err)

	reply, err := client.Command("test.$cmd", bson.M{"ping": 1})
	ensure.Nil(t, err)
	ensure.DeepEqual(t, reply.NumberReturned, int32(1))
}

func TestProxyStopWaitsForInFlightClient(t *testing.T) {
	mongoAddr, stopMongo := fakeMongo(t)
	defer stopMongo()

	p := newTestProxy(t, mongoAddr)
	ensure.Nil(t, p.Start())

	c, err := net.Dial("tcp", p.listener.Addr().String())
	ensure.Nil(t, err)

	client, err := conn.Init(c)
	ensure.Nil(t, err)
	_, err = client.Command("test.$cmd", bson.M{"ping": 1})
	ensure.Nil(t, err)

	// Closing the client lets its clientServeLoop observe EOF and return,
	// so Stop's drain wait has something to actually wait for rather than
	// blocking on a still-open idle client forever.
	c.Close()

	ensure.Nil(t, p.Stop())
}
