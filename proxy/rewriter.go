package proxy

import (
	"fmt"

	"github.com/mcuadros/wireproxy/conn"
	"github.com/mcuadros/wireproxy/wire"
	"gopkg.in/mgo.v2/bson"
)

// ResponseRewriter edits a reply already received from the real server,
// in place, before a Handler relays it to the client. It never originates
// traffic of its own; the name mirrors what it does, not how.
type ResponseRewriter interface {
	Rewrite(reply *wire.Reply) error
}

// LastError caches the most recent getLastError reply seen on a client
// connection. The cached header and body are deep copies: the reply a
// Connection hands back borrows from the framed reader's internal buffer,
// which the very next Recv call is free to overwrite.
type LastError struct {
	header wire.MessageHeader
	reply  *wire.Reply
}

// Exists reports whether a getLastError response is currently cached.
func (l *LastError) Exists() bool { return l.reply != nil }

// Reset discards the cached response. Handler resets the cache for every
// request except getLastError and, unless they carry "forShell", isMaster
// and replSetGetStatus, following mongod's "lastError.disableForCommand"
// logic.
func (l *LastError) Reset() {
	l.reply = nil
}

func (l *LastError) store(header wire.MessageHeader, reply *wire.Reply) {
	l.header = header
	l.reply = &wire.Reply{
		ResponseFlags:  reply.ResponseFlags,
		CursorID:       reply.CursorID,
		StartingFrom:   reply.StartingFrom,
		NumberReturned: reply.NumberReturned,
		Documents:      append([]byte(nil), reply.Documents...),
	}
}

// GetLastErrorRewriter answers getLastError calls: one made with nothing
// cached is sent through to the server and cached, and every repeat call
// before the cache is next reset is answered from the cache with its
// response_to patched to match the new request, without a round trip.
type GetLastErrorRewriter struct {
	Log Logger
}

// Rewrite handles req, a getLastError query already read from client.
func (r *GetLastErrorRewriter) Rewrite(req *wire.Message, client, server *conn.Connection, lastError *LastError) error {
	if !lastError.Exists() {
		server.NoHeaderMutate = true
		if err := server.Send(req); err != nil {
			return err
		}
		msg, err := server.Recv()
		if err != nil {
			return err
		}
		reply, ok := msg.Body.(*wire.Reply)
		if !ok {
			return fmt.Errorf("proxy: expected REPLY for getLastError, got %s", msg.Header.OpCode)
		}
		lastError.store(msg.Header, reply)
		r.Log.Debugf("caching new getLastError response")
	} else {
		r.Log.Debugf("using cached getLastError response")
	}

	lastError.header.ResponseTo = req.Header.RequestID
	client.NoHeaderMutate = true
	return client.Send(&wire.Message{Header: lastError.header, Body: lastError.reply})
}

// replyDoc marshals and unmarshals the single BSON document a command
// reply carries.
type replyDoc struct{}

func (replyDoc) read(r *wire.Reply, v interface{}) error {
	if r.NumberReturned != 1 {
		return fmt.Errorf("proxy: can only rewrite a single-document reply, got %d documents", r.NumberReturned)
	}
	return bson.Unmarshal(r.Documents, v)
}

func (replyDoc) write(r *wire.Reply, v interface{}) error {
	doc, err := bson.Marshal(v)
	if err != nil {
		return err
	}
	r.Documents = doc
	return nil
}

type isMasterResponse struct {
	Hosts   []string `bson:"hosts,omitempty"`
	Primary string   `bson:"primary,omitempty"`
	Me      string   `bson:"me,omitempty"`
	Extra   bson.M   `bson:",inline"`
}

// IsMasterResponseRewriter rewrites the host names an isMaster response
// carries so a client only ever sees proxy addresses.
type IsMasterResponseRewriter struct {
	Log      Logger
	Topology *Topology
}

// Rewrite implements ResponseRewriter.
func (r *IsMasterResponseRewriter) Rewrite(reply *wire.Reply) error {
	var q isMasterResponse
	var doc replyDoc
	if err := doc.read(reply, &q); err != nil {
		return err
	}

	var newHosts []string
	for _, h := range q.Hosts {
		newH, err := r.Topology.Proxy(h)
		if err != nil {
			if pme, ok := err.(*ProxyMapperError); ok {
				if pme.State != ReplicaStateArbiter {
					r.Log.Errorf("dropping member %s in state %s", h, pme.State)
				}
				continue
			}
			return err
		}
		newHosts = append(newHosts, newH)
	}
	q.Hosts = newHosts

	if q.Primary != "" {
		var err error
		if q.Primary, err = r.Topology.Proxy(q.Primary); err != nil {
			return err
		}
	}
	if q.Me != "" {
		var err error
		if q.Me, err = r.Topology.Proxy(q.Me); err != nil {
			return err
		}
	}

	return doc.write(reply, q)
}

type statusMember struct {
	Name  string       `bson:"name"`
	State ReplicaState `bson:"stateStr,omitempty"`
	Self  bool         `bson:"self,omitempty"`
	Extra bson.M       `bson:",inline"`
}

type replSetGetStatusResponse struct {
	Name    string                 `bson:"set,omitempty"`
	Members []statusMember         `bson:"members"`
	Extra   map[string]interface{} `bson:",inline"`
}

// ReplSetGetStatusResponseRewriter rewrites the member names a
// replSetGetStatus response carries. It is a pure string-rewrite of a
// reply the proxy already received -- it does not poll, elect, or restart
// on disagreement, it only relabels hosts the way IsMasterResponseRewriter
// does.
type ReplSetGetStatusResponseRewriter struct {
	Log      Logger
	Topology *Topology
}

// Rewrite implements ResponseRewriter.
func (r *ReplSetGetStatusResponseRewriter) Rewrite(reply *wire.Reply) error {
	var q replSetGetStatusResponse
	var doc replyDoc
	if err := doc.read(reply, &q); err != nil {
		return err
	}

	var newMembers []statusMember
	for _, m := range q.Members {
		newName, err := r.Topology.Proxy(m.Name)
		if err != nil {
			if pme, ok := err.(*ProxyMapperError); ok {
				if pme.State != ReplicaStateArbiter {
					r.Log.Errorf("dropping member %s in state %s", m.Name, pme.State)
				}
				continue
			}
			return err
		}
		m.Name = newName
		newMembers = append(newMembers, m)
	}
	q.Members = newMembers

	return doc.write(reply, q)
}
