package conn

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/facebookgo/stackerr"
	"github.com/mcuadros/wireproxy/framing"
	"github.com/mcuadros/wireproxy/wire"
	"gopkg.in/mgo.v2/bson"
)

func init() {
	wire.BSONJSON = func(doc []byte) string {
		var v bson.M
		if err := bson.Unmarshal(doc, &v); err != nil {
			return fmt.Sprintf("<%d bytes, unparseable: %v>", len(doc), err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(out)
	}
}

// Connection wraps a single socket with the framed reader/writer pair and
// the bookkeeping the wire protocol command helpers need: request-id
// assignment, and byte/message counters for both directions.
type Connection struct {
	conn   net.Conn
	reader *framing.Reader
	writer *framing.Writer

	// NoHeaderMutate, when true, leaves msg.Header.RequestID untouched by
	// Send -- used when relaying an already-framed client request through a
	// proxy rather than originating a fresh request.
	NoHeaderMutate bool

	// SendTimeout/RecvTimeout bound every Send/Recv call; zero disables the
	// deadline.
	SendTimeout time.Duration
	RecvTimeout time.Duration

	lastRequestID int32
	BytesSent     int64
	BytesRecv     int64
	MessagesSent  int64
	MessagesRecv  int64
}

// InitFromHost resolves host:port (which may name multiple addresses),
// tries connect on each in turn, and wraps the first that succeeds.
// Failure is reported only once every address has been tried.
func InitFromHost(host string, port int, timeout time.Duration) (*Connection, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	addrs, err := net.DefaultResolver.LookupHost(context.Background(), host)
	if err != nil || len(addrs) == 0 {
		c, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return nil, stackerr.Wrap(err)
		}
		return Init(c)
	}

	var lastErr error
	for _, ip := range addrs {
		c, err := net.DialTimeout("tcp", net.JoinHostPort(ip, fmt.Sprintf("%d", port)), timeout)
		if err != nil {
			lastErr = err
			continue
		}
		return Init(c)
	}
	return nil, stackerr.Wrap(fmt.Errorf("conn: all addresses for %s failed to connect: %v", host, lastErr))
}

// InitFromHostPort is InitFromHost for callers that already have a single
// "host:port" address rather than separate host and port values.
func InitFromHostPort(addr string, timeout time.Duration) (*Connection, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, stackerr.Wrap(err)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return nil, stackerr.Wrap(fmt.Errorf("conn: invalid port in %q: %v", addr, err))
	}
	return InitFromHost(host, port, timeout)
}

// Init wraps an already-connected socket -- the path used for accepted
// clients -- seeding the request-id counter from the CSPRNG so that
// request ids are not predictable and do not collide across restarts.
func Init(c net.Conn) (*Connection, error) {
	var seed [4]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, stackerr.Wrap(err)
	}
	return &Connection{
		conn:          c,
		reader:        framing.NewReader(c),
		writer:        framing.NewWriter(c),
		lastRequestID: int32(binary.LittleEndian.Uint32(seed[:])),
	}, nil
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// RemoteAddr is the address of the peer this connection is talking to.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send gathers and writes msg. Unless NoHeaderMutate is set, it first
// assigns the next request id.
func (c *Connection) Send(msg *wire.Message) error {
	if !c.NoHeaderMutate {
		c.lastRequestID++
		msg.Header.RequestID = c.lastRequestID
	}
	c.writer.WriteTimeout = c.SendTimeout
	if err := c.writer.Write(msg); err != nil {
		return &Error{Code: SendFailure, Op: "send", Err: err}
	}
	c.BytesSent += int64(msg.Header.MessageLength)
	c.MessagesSent++
	return nil
}

// Recv reads the next whole message from the peer.
func (c *Connection) Recv() (*wire.Message, error) {
	c.reader.ReadTimeout = c.RecvTimeout
	msg, err := c.reader.Read()
	if err != nil {
		return nil, &Error{Code: RecvFailure, Op: "recv", Err: err}
	}
	c.BytesRecv += int64(msg.Header.MessageLength)
	c.MessagesRecv++
	return msg, nil
}

// LastRequestID returns the most recently assigned request id.
func (c *Connection) LastRequestID() int32 { return c.lastRequestID }

// Command builds and sends an OP_QUERY for doc against collection (with
// n_return=1, no field selector) and waits for the matching reply.
func (c *Connection) Command(collection string, doc interface{}) (*wire.Reply, error) {
	body, err := bson.Marshal(doc)
	if err != nil {
		return nil, stackerr.Wrap(err)
	}

	msg := &wire.Message{
		Header: wire.MessageHeader{OpCode: wire.OpQuery},
		Body: &wire.Query{
			FullCollectionName: collection,
			NumberToReturn:     1,
			Query:              body,
		},
	}
	if err := c.Send(msg); err != nil {
		return nil, err
	}
	sentID := msg.Header.RequestID

	reply, err := c.Recv()
	if err != nil {
		return nil, err
	}
	r, ok := reply.Body.(*wire.Reply)
	if !ok || reply.Header.ResponseTo != sentID {
		return nil, &Error{Code: QueryFailure, Op: "command", Err: fmt.Errorf("unexpected reply opcode %s or response_to mismatch", reply.Header.OpCode)}
	}
	return r, nil
}

// Ping sends {ping:1} against admin.$cmd.
func (c *Connection) Ping() error {
	_, err := c.Command("admin.$cmd", bson.M{"ping": 1})
	return err
}

// IsMaster sends {isMaster:1} and returns the decoded reply document.
func (c *Connection) IsMaster() (bson.M, error) {
	reply, err := c.Command("admin.$cmd", bson.M{"isMaster": 1})
	if err != nil {
		return nil, err
	}
	return firstDocument(reply)
}

// ServerVersionString returns the "version" string field of buildInfo.
func (c *Connection) ServerVersionString() (string, error) {
	reply, err := c.Command("admin.$cmd", bson.M{"buildInfo": 1})
	if err != nil {
		return "", err
	}
	doc, err := firstDocument(reply)
	if err != nil {
		return "", err
	}
	v, _ := doc["version"].(string)
	return v, nil
}

// ServerVersion is a parsed (major, minor, micro, release) version tuple.
type ServerVersion struct {
	Major, Minor, Micro, Release int
}

// ServerVersion returns buildInfo's "versionArray" as a ServerVersion.
func (c *Connection) ServerVersion() (ServerVersion, error) {
	reply, err := c.Command("admin.$cmd", bson.M{"buildInfo": 1})
	if err != nil {
		return ServerVersion{}, err
	}
	doc, err := firstDocument(reply)
	if err != nil {
		return ServerVersion{}, err
	}
	arr, _ := doc["versionArray"].([]interface{})
	var out [4]int
	for i := 0; i < len(arr) && i < 4; i++ {
		switch n := arr[i].(type) {
		case int:
			out[i] = n
		case int32:
			out[i] = int(n)
		case int64:
			out[i] = int(n)
		}
	}
	return ServerVersion{Major: out[0], Minor: out[1], Micro: out[2], Release: out[3]}, nil
}

// Insert builds and sends an OP_INSERT.
func (c *Connection) Insert(collection string, flags int32, docs ...interface{}) error {
	raw := make([][]byte, 0, len(docs))
	for _, d := range docs {
		b, err := bson.Marshal(d)
		if err != nil {
			return stackerr.Wrap(err)
		}
		raw = append(raw, b)
	}
	return c.Send(&wire.Message{
		Header: wire.MessageHeader{OpCode: wire.OpInsert},
		Body:   &wire.Insert{Flags: flags, FullCollectionName: collection, Documents: raw},
	})
}

// Update builds and sends an OP_UPDATE.
func (c *Connection) Update(collection string, flags int32, selector, update interface{}) error {
	sel, err := bson.Marshal(selector)
	if err != nil {
		return stackerr.Wrap(err)
	}
	upd, err := bson.Marshal(update)
	if err != nil {
		return stackerr.Wrap(err)
	}
	return c.Send(&wire.Message{
		Header: wire.MessageHeader{OpCode: wire.OpUpdate},
		Body:   &wire.Update{FullCollectionName: collection, Flags: flags, Selector: sel, Update: upd},
	})
}

// Delete builds and sends an OP_DELETE.
func (c *Connection) Delete(collection string, flags int32, selector interface{}) error {
	sel, err := bson.Marshal(selector)
	if err != nil {
		return stackerr.Wrap(err)
	}
	return c.Send(&wire.Message{
		Header: wire.MessageHeader{OpCode: wire.OpDelete},
		Body:   &wire.Delete{FullCollectionName: collection, Flags: flags, Selector: sel},
	})
}

// GetLastError sends {getLastError:1, ...gle} against collection's command
// namespace and fails with QueryFailure if the reply's flags carry
// QueryFailure or the first document's "ok" field is falsy.
func (c *Connection) GetLastError(collection string, gle bson.M) error {
	doc := bson.M{"getLastError": 1}
	for k, v := range gle {
		doc[k] = v
	}

	body, err := bson.Marshal(doc)
	if err != nil {
		return stackerr.Wrap(err)
	}
	msg := &wire.Message{
		Header: wire.MessageHeader{OpCode: wire.OpQuery},
		Body: &wire.Query{
			FullCollectionName: collection,
			NumberToReturn:     1,
			Query:              body,
		},
	}
	if err := c.Send(msg); err != nil {
		return err
	}
	sentID := msg.Header.RequestID

	reply, err := c.Recv()
	if err != nil {
		return err
	}
	r, ok := reply.Body.(*wire.Reply)
	if !ok || reply.Header.ResponseTo != sentID {
		return &Error{Code: QueryFailure, Op: "get_last_error", Err: fmt.Errorf("unexpected reply")}
	}
	if r.ResponseFlags&wire.ReplyQueryFailure != 0 {
		return &Error{Code: QueryFailure, Op: "get_last_error", Err: fmt.Errorf("reply flags carry QUERY_FAILURE")}
	}

	result, err := firstDocument(r)
	if err != nil {
		return &Error{Code: QueryFailure, Op: "get_last_error", Err: err}
	}
	if !truthy(result["ok"]) {
		return &Error{Code: QueryFailure, Op: "get_last_error", Err: fmt.Errorf("ok field was falsy: %v", result["ok"])}
	}
	return nil
}

func firstDocument(reply *wire.Reply) (bson.M, error) {
	it := reply.DocumentIter()
	doc, ok, err := it.Next()
	if err != nil {
		return nil, stackerr.Wrap(err)
	}
	if !ok {
		return nil, stackerr.Wrap(fmt.Errorf("reply carried no documents"))
	}
	var m bson.M
	if err := bson.Unmarshal(doc, &m); err != nil {
		return nil, stackerr.Wrap(err)
	}
	return m, nil
}

func truthy(v interface{}) bool {
	switch n := v.(type) {
	case int:
		return n != 0
	case int32:
		return n != 0
	case int64:
		return n != 0
	case float64:
		return n != 0
	case bool:
		return n
	default:
		return false
	}
}
