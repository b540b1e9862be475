// Package proxy fronts a single real mongo address with a listener that
// speaks the same wire protocol, relaying every message through a Handler
// and pooling its upstream connections.
package proxy

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/facebookgo/gangliamr"
	"github.com/facebookgo/rpool"
	"github.com/facebookgo/stackerr"
	"github.com/facebookgo/waitout"
	"github.com/mcuadros/wireproxy/conn"
	"github.com/mcuadros/wireproxy/netio"
	"github.com/mcuadros/wireproxy/wire"
)

var (
	errZeroMaxConnections = errors.New("proxy: MaxConnections cannot be 0")
	errNormalClose        = errors.New("proxy: normal close")
	errClientReadTimeout  = errors.New("proxy: client read timeout")
)

// drainSentinel is the marker Stop's waitout.Waiter watches for once every
// clientServeLoop started before Stop was called has returned.
var drainSentinel = []byte("wireproxy: drained")

// Proxy accepts clients on ProxyAddr and relays their traffic to MongoAddr,
// a single real mongo node, through Handler.
type Proxy struct {
	Log       Logger
	Handler   *Handler
	Scheduler netio.Scheduler

	// ProxyAddr is the address this Proxy listens on for clients.
	ProxyAddr string
	// MongoAddr is the real mongo address this Proxy fronts.
	MongoAddr string

	// MaxConnections bounds the number of connections held open to MongoAddr.
	MaxConnections uint
	// MinIdleConnections is the number of idle server connections kept around.
	MinIdleConnections uint
	// ServerClosePoolSize is the number of goroutines closing idle server
	// connections.
	ServerClosePoolSize uint
	// ServerIdleTimeout is how long an idle server connection is kept before
	// being closed.
	ServerIdleTimeout time.Duration
	// GetLastErrorTimeout bounds how long a client is given to follow up a
	// mutation with a getLastError call before its server connection is
	// returned to the pool.
	GetLastErrorTimeout time.Duration
	// ClientIdleTimeout bounds how long a client connection can sit without
	// sending a request before it's disconnected.
	ClientIdleTimeout time.Duration
	// MessageTimeout bounds a single message's round trip to the server.
	MessageTimeout time.Duration

	// Ready, if set, receives the listener's address once Start has bound
	// the listener and spawned the accept loop, letting callers (tests,
	// mainly) block until the proxy is ready for traffic instead of racing
	// it.
	Ready *waitout.Waiter

	ClientsConnected     gangliamr.Counter
	ServerConnected      gangliamr.Meter
	ServerDisconnected   gangliamr.Meter
	ServerConnectFailure gangliamr.Meter
	MessageProxySuccess  gangliamr.Meter
	MessageProxyFailure  gangliamr.Meter
	MessageWithMutation  gangliamr.Meter
	ServerConnHeld       gangliamr.Timer

	listener   net.Listener
	closed     chan struct{}
	serverPool rpool.Pool
	wg         sync.WaitGroup
}

// String provides a debugging representation.
func (p *Proxy) String() string {
	return fmt.Sprintf("proxy %s => mongo %s", p.ProxyAddr, p.MongoAddr)
}

// RegisterMetrics registers this Proxy's counters with r.
func (p *Proxy) RegisterMetrics(r *gangliamr.Registry) {
	p.ClientsConnected.Name = "clients_connected_" + p.MongoAddr
	p.ServerConnected.Name = "server_connected_" + p.MongoAddr
	p.ServerDisconnected.Name = "server_disconnected_" + p.MongoAddr
	p.ServerConnectFailure.Name = "server_connect_failure_" + p.MongoAddr
	p.MessageProxySuccess.Name = "message_proxy_success_" + p.MongoAddr
	p.MessageProxyFailure.Name = "message_proxy_failure_" + p.MongoAddr
	p.MessageWithMutation.Name = "message_with_mutation_" + p.MongoAddr
	p.ServerConnHeld.Name = "server_conn_held_" + p.MongoAddr

	r.Register(&p.ClientsConnected)
	r.Register(&p.ServerConnected)
	r.Register(&p.ServerDisconnected)
	r.Register(&p.ServerConnectFailure)
	r.Register(&p.MessageProxySuccess)
	r.Register(&p.MessageProxyFailure)
	r.Register(&p.MessageWithMutation)
	r.Register(&p.ServerConnHeld)
}

// Start begins listening on ProxyAddr and accepting clients.
func (p *Proxy) Start() error {
	if p.MaxConnections == 0 {
		return errZeroMaxConnections
	}

	l, err := net.Listen("tcp", p.ProxyAddr)
	if err != nil {
		return stackerr.Wrap(err)
	}
	p.listener = l
	p.closed = make(chan struct{})
	p.serverPool = rpool.Pool{
		New:               p.newServerConn,
		CloseErrorHandler: p.serverCloseErrorHandler,
		Max:               p.MaxConnections,
		MinIdle:           p.MinIdleConnections,
		IdleTimeout:       p.ServerIdleTimeout,
		ClosePoolSize:     p.ServerClosePoolSize,
	}

	p.Scheduler.Spawn(p.clientAcceptLoop)

	if p.Ready != nil {
		p.Ready.Write([]byte(l.Addr().String()))
	}
	return nil
}

// Stop closes the listener and waits for every in-flight client to finish
// before returning.
func (p *Proxy) Stop() error {
	if err := p.listener.Close(); err != nil {
		return err
	}
	close(p.closed)

	drained := waitout.New(drainSentinel)
	go func() {
		p.wg.Wait()
		drained.Write(drainSentinel)
	}()
	drained.Wait()

	p.serverPool.Close()
	return nil
}

func (p *Proxy) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func (p *Proxy) newServerConn() (io.Closer, error) {
	c, err := conn.InitFromHostPort(p.MongoAddr, p.MessageTimeout)
	if err != nil {
		p.ServerConnectFailure.Mark(1)
		return nil, err
	}
	p.ServerConnected.Mark(1)
	return c, nil
}

func (p *Proxy) serverCloseErrorHandler(err error) {
	p.ServerDisconnected.Mark(1)
	p.Log.Error(err)
}

func (p *Proxy) getServerConn() (*conn.Connection, error) {
	c, err := p.serverPool.Acquire()
	if err != nil {
		return nil, err
	}
	return c.(*conn.Connection), nil
}

// clientAcceptLoop accepts new clients and spawns a clientServeLoop for
// each one.
func (p *Proxy) clientAcceptLoop() {
	for {
		p.wg.Add(1)
		c, err := p.listener.Accept()
		if err != nil {
			p.wg.Done()
			if strings.Contains(err.Error(), "use of closed network connection") {
				return
			}
			p.Log.Error(err)
			continue
		}
		client, err := conn.Init(c)
		if err != nil {
			p.wg.Done()
			p.Log.Error(err)
			c.Close()
			continue
		}
		p.Scheduler.Spawn(func() { p.clientServeLoop(client) })
	}
}

// clientServeLoop loops on a single client connected to the proxy,
// dispatching its requests and, after a mutation, pinning the server
// connection for a possible follow-up getLastError call.
func (p *Proxy) clientServeLoop(client *conn.Connection) {
	p.ClientsConnected.Inc(1)
	p.Log.Infof("client %s connected to %s", client.RemoteAddr(), p)
	defer func() {
		p.ClientsConnected.Dec(1)
		p.Log.Infof("client %s disconnected from %s", client.RemoteAddr(), p)
		p.wg.Done()
		client.Close()
	}()

	var lastError LastError
	for {
		req, err := p.idleClientRead(client)
		if err != nil {
			if err != errNormalClose {
				p.Log.Error(err)
			}
			return
		}

		server, err := p.getServerConn()
		if err != nil {
			if !p.isClosed() {
				p.Log.Error(err)
			}
			return
		}

		timer := p.ServerConnHeld.Start()
		for {
			server.SendTimeout = p.MessageTimeout
			server.RecvTimeout = p.MessageTimeout
			if err := p.Handler.Handle(req, client, server, &lastError); err != nil {
				p.MessageProxyFailure.Mark(1)
				p.Log.Error(err)
				p.serverPool.Discard(server)
				return
			}
			p.MessageProxySuccess.Mark(1)

			if !req.Header.OpCode.IsMutation() {
				break
			}

			// The request we just relayed was a mutation: stay pinned to
			// the same server connection in case the client's very next
			// request is the matching getLastError call.
			p.MessageWithMutation.Mark(1)
			req, err = p.gleClientRead(client)
			if err != nil {
				if err == errClientReadTimeout {
					break
				}
				if err != errNormalClose {
					p.Log.Error(err)
				}
				p.serverPool.Release(server)
				return
			}
		}
		p.serverPool.Release(server)
		timer.Stop()
	}
}

func (p *Proxy) idleClientRead(client *conn.Connection) (*wire.Message, error) {
	client.RecvTimeout = p.ClientIdleTimeout
	return p.classifyReadErr(client.Recv())
}

func (p *Proxy) gleClientRead(client *conn.Connection) (*wire.Message, error) {
	client.RecvTimeout = p.GetLastErrorTimeout
	return p.classifyReadErr(client.Recv())
}

func (p *Proxy) classifyReadErr(msg *wire.Message, err error) (*wire.Message, error) {
	if err == nil {
		return msg, nil
	}
	if p.isClosed() {
		return nil, errNormalClose
	}
	if isEOF(err) {
		return nil, errNormalClose
	}
	if isTimeout(err) {
		return nil, errClientReadTimeout
	}
	return nil, err
}

func isEOF(err error) bool {
	return stackerr.HasUnderlying(err, stackerr.Equals(io.EOF))
}

func isTimeout(err error) bool {
	return stackerr.HasUnderlying(err, stackerr.MatcherFunc(func(e error) bool {
		ne, ok := e.(net.Error)
		return ok && ne.Timeout()
	}))
}
