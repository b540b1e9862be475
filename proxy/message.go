package proxy

import (
	"fmt"
	"strings"

	"github.com/mcuadros/wireproxy/conn"
	"github.com/mcuadros/wireproxy/wire"
	"gopkg.in/mgo.v2/bson"
)

// cmdCollectionSuffix marks the command namespace every query a
// ResponseRewriter might care about (getLastError, isMaster,
// replSetGetStatus) arrives on.
const cmdCollectionSuffix = ".$cmd"

const adminCollectionName = "admin.$cmd"

// Extension observes a message as it passes through a Handler and may
// short-circuit the relay entirely.
type Extension interface {
	HandleOp(header *wire.MessageHeader, client, server *conn.Connection, lastError *LastError) (cont bool, err error)
}

// Handler relays one client request to the server connection currently
// assigned to it, and the server's reply (if any) back to the client,
// rewriting getLastError, isMaster and replSetGetStatus traffic as it
// goes.
type Handler struct {
	Log                              Logger
	GetLastErrorRewriter             *GetLastErrorRewriter
	IsMasterResponseRewriter         *IsMasterResponseRewriter
	ReplSetGetStatusResponseRewriter *ReplSetGetStatusResponseRewriter
	Extensions                       []Extension
}

// Handle relays req, a message already read off client, to server, and any
// reply back to client.
func (h *Handler) Handle(req *wire.Message, client, server *conn.Connection, lastError *LastError) error {
	for _, ext := range h.Extensions {
		cont, err := ext.HandleOp(&req.Header, client, server, lastError)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}

	query, isQuery := req.Body.(*wire.Query)
	resetLastError := true
	var rewriter ResponseRewriter

	if isQuery && strings.HasSuffix(query.FullCollectionName, cmdCollectionSuffix) {
		var q bson.D
		if err := bson.Unmarshal(query.Query, &q); err != nil {
			return err
		}

		h.Log.Debugf("buffered query for %s", query.FullCollectionName)

		if hasKey(q, "getLastError") {
			return h.GetLastErrorRewriter.Rewrite(req, client, server, lastError)
		}

		if hasKey(q, "isMaster") {
			rewriter = h.IsMasterResponseRewriter
		} else if query.FullCollectionName == adminCollectionName && hasKey(q, "replSetGetStatus") {
			rewriter = h.ReplSetGetStatusResponseRewriter
		}

		if rewriter != nil {
			// https://github.com/mongodb/mongo/search?q=lastError.disableForCommand
			resetLastError = hasKey(q, "forShell")
		}
	}

	if resetLastError && lastError.Exists() {
		h.Log.Debug("reset getLastError cache")
		lastError.Reset()
	}

	server.NoHeaderMutate = true
	if err := server.Send(req); err != nil {
		return err
	}

	if !req.Header.OpCode.HasResponse() {
		return nil
	}

	reply, err := server.Recv()
	if err != nil {
		return err
	}
	r, ok := reply.Body.(*wire.Reply)
	if !ok {
		return fmt.Errorf("proxy: expected REPLY from server, got %s", reply.Header.OpCode)
	}

	if rewriter != nil {
		if err := rewriter.Rewrite(r); err != nil {
			return err
		}
	}

	client.NoHeaderMutate = true
	return client.Send(reply)
}

// hasKey reports whether d carries a top-level key matching k, case
// insensitively, the way mongo itself matches command names.
func hasKey(d bson.D, k string) bool {
	for _, v := range d {
		if strings.EqualFold(v.Name, k) {
			return true
		}
	}
	return false
}
