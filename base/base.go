package base

import (
	"time"

	"go.uber.org/zap"
)

// Stream is the session/transport boundary. The application layer only ever
// hands it already-framed byte buffers (an encrypted envelope or a bare A-XDR
// pdu) and only ever receives raw byte buffers back to decode. One Read call
// delivers one whole frame.
type Stream interface {
	Close() error
	Open() error
	Disconnect() error // hard end of connection without any release exchange
	IsOpen() bool
	SetLogger(logger *zap.SugaredLogger)
	SetDeadline(t time.Time)     // zero time means no deadline
	SetMaxReceivedBytes(m int64) // every call resets current counter, exceeding bytes count means comm error, only incoming bytes are counted
	Read(p []byte) (n int, err error)
	Write(src []byte) error // always write everything
}
