package extensions

import (
	"fmt"

	"github.com/mcuadros/wireproxy/conn"
	"github.com/mcuadros/wireproxy/proxy"
	"github.com/mcuadros/wireproxy/wire"
)

// DumpExtension logs every message header it sees and never short-circuits
// the relay.
type DumpExtension struct{}

// HandleOp implements proxy.Extension.
func (e *DumpExtension) HandleOp(
	header *wire.MessageHeader,
	client, server *conn.Connection,
	lastError *proxy.LastError,
) (cont bool, err error) {
	fmt.Println("DUMP", header.String())
	return true, nil
}
