package wire

import (
	"fmt"

	"github.com/facebookgo/stackerr"
)

// KillCursors is the OP_KILL_CURSORS body.
type KillCursors struct {
	// Zero is reserved for future use.
	Zero int32
	// CursorIDs is the sequence of cursor ids to close.
	CursorIDs []int64

	zeroBuf [4]byte
}

// OpCode implements Body.
func (k *KillCursors) OpCode() OpCode { return OpKillCursors }

// Scatter implements Body.
func (k *KillCursors) Scatter(buf []byte) error {
	if err := requireLen(buf, 8, "kill_cursors zero/count"); err != nil {
		return err
	}
	k.Zero = getInt32(buf[0:4])
	count := getInt32(buf[4:8])
	buf = buf[8:]

	if count < 0 {
		return stackerr.Wrap(&DecodeError{Reason: fmt.Sprintf("negative kill_cursors count %d", count)})
	}
	if err := requireLen(buf, int(count)*8, "kill_cursors ids"); err != nil {
		return err
	}

	k.CursorIDs = make([]int64, count)
	for i := int32(0); i < count; i++ {
		k.CursorIDs[i] = getInt64(buf[i*8 : i*8+8])
	}
	return nil
}

// Gather implements Body.
func (k *KillCursors) Gather(dst Buffers) Buffers {
	putInt32(k.zeroBuf[:], k.Zero)
	dst = append(dst, k.zeroBuf[:])

	countBuf := make([]byte, 4)
	putInt32(countBuf, int32(len(k.CursorIDs)))
	dst = append(dst, countBuf)

	if len(k.CursorIDs) > 0 {
		idsBuf := make([]byte, len(k.CursorIDs)*8)
		for i, id := range k.CursorIDs {
			putInt64(idsBuf[i*8:i*8+8], id)
		}
		dst = append(dst, idsBuf)
	}
	return dst
}

// ToLE implements Body.
func (k *KillCursors) ToLE() {}

// FromLE implements Body.
func (k *KillCursors) FromLE() {}

// DebugString implements Body.
func (k *KillCursors) DebugString() string {
	return fmt.Sprintf("KILL_CURSORS ids=%v", k.CursorIDs)
}
