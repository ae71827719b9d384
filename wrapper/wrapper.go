// Package wrapper implements the DLMS IP wrapper framing over a raw byte
// stream. Every frame carries an 8-byte header: protocol version 0x0001, the
// source and destination wrapper ports and the payload length. Stacked on the
// tcp stream it turns the socket into the framed transport the secured
// application layer expects: one Read, one whole frame.
package wrapper

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/enercore/libcosem-go/base"
)

const (
	headerLength   = 8
	wrapperVersion = 0x0001
	maxPayload     = 65535
)

type wrapper struct {
	transport   base.Stream
	logger      *zap.SugaredLogger
	source      uint16
	destination uint16
	header      [headerLength]byte
}

// New stacks the wrapper framing onto transport. Source and destination are
// the wrapper port addresses placed into every outgoing header and verified
// on every incoming one.
func New(transport base.Stream, source uint16, destination uint16) base.Stream {
	return &wrapper{
		transport:   transport,
		source:      source,
		destination: destination,
	}
}

func (w *wrapper) logf(format string, v ...any) {
	if w.logger != nil {
		w.logger.Infof(format, v...)
	}
}

func (w *wrapper) Close() error {
	return w.transport.Close()
}

func (w *wrapper) Disconnect() error {
	return w.transport.Disconnect()
}

func (w *wrapper) Open() error {
	w.logf("opening wrapper with source %d and destination %d", w.source, w.destination)
	return w.transport.Open()
}

func (w *wrapper) IsOpen() bool {
	return w.transport.IsOpen()
}

func (w *wrapper) SetMaxReceivedBytes(m int64) {
	w.transport.SetMaxReceivedBytes(m)
}

func (w *wrapper) SetDeadline(t time.Time) {
	w.transport.SetDeadline(t)
}

func (w *wrapper) SetLogger(logger *zap.SugaredLogger) {
	w.logger = logger
	w.transport.SetLogger(logger)
}

// Write sends src as one wrapper frame.
func (w *wrapper) Write(src []byte) error {
	if len(src) > maxPayload {
		return fmt.Errorf("%w: frame of %d bytes exceeds the wrapper maximum %d", base.ErrInvalidFieldValue, len(src), maxPayload)
	}
	w.header[0] = byte(wrapperVersion >> 8)
	w.header[1] = byte(wrapperVersion)
	w.header[2] = byte(w.source >> 8)
	w.header[3] = byte(w.source)
	w.header[4] = byte(w.destination >> 8)
	w.header[5] = byte(w.destination)
	w.header[6] = byte(len(src) >> 8)
	w.header[7] = byte(len(src))
	if err := w.transport.Write(w.header[:]); err != nil {
		return err
	}
	return w.transport.Write(src)
}

// Read receives exactly one wrapper frame into p. The header addresses have
// to mirror our own, crossed frames from another association are an error.
func (w *wrapper) Read(p []byte) (n int, err error) {
	if _, err = io.ReadFull(w.transport, w.header[:]); err != nil {
		return 0, err
	}
	if w.header[0] != byte(wrapperVersion>>8) || w.header[1] != byte(wrapperVersion) {
		return 0, fmt.Errorf("%w: wrapper version %#02x%02x", base.ErrInvalidFieldValue, w.header[0], w.header[1])
	}
	rsrc := uint16(w.header[2])<<8 | uint16(w.header[3])
	rdest := uint16(w.header[4])<<8 | uint16(w.header[5])
	if rsrc != w.destination || rdest != w.source {
		return 0, fmt.Errorf("%w: wrapper ports %d/%d", base.ErrInvalidFieldValue, rsrc, rdest)
	}
	l := int(w.header[6])<<8 | int(w.header[7])
	if l > len(p) {
		return 0, fmt.Errorf("%w: %d byte frame does not fit the %d byte buffer", base.ErrInvalidFieldValue, l, len(p))
	}
	if _, err = io.ReadFull(w.transport, p[:l]); err != nil {
		return 0, err
	}
	w.logf("received %d byte wrapper frame", l)
	return l, nil
}
