package wire

import "fmt"

// Msg is the OP_MSG body: a single free-form, NUL-terminated string. This is
// the legacy OP_MSG (opcode 1000), not the 3.6+ sectioned OP_MSG -- that
// protocol is out of scope (spec.md Non-goals).
type Msg struct {
	Message string
}

// OpCode implements Body.
func (m *Msg) OpCode() OpCode { return OpMessage }

// Scatter implements Body.
func (m *Msg) Scatter(buf []byte) error {
	s, _, err := scatterCString(buf)
	if err != nil {
		return err
	}
	m.Message = s
	return nil
}

// Gather implements Body.
func (m *Msg) Gather(dst Buffers) Buffers {
	return gatherCString(dst, m.Message)
}

// ToLE implements Body.
func (m *Msg) ToLE() {}

// FromLE implements Body.
func (m *Msg) FromLE() {}

// DebugString implements Body.
func (m *Msg) DebugString() string {
	return fmt.Sprintf("MSG message=%q", m.Message)
}
