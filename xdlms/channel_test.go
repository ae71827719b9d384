package xdlms

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/enercore/libcosem-go/base"
	"github.com/enercore/libcosem-go/security"
)

// loopbackStream hands every written frame back to the next Read call.
type loopbackStream struct {
	frames [][]byte
	open   bool
}

func (s *loopbackStream) Open() error { s.open = true; return nil }
func (s *loopbackStream) Close() error { s.open = false; return nil }
func (s *loopbackStream) Disconnect() error { s.open = false; return nil }
func (s *loopbackStream) IsOpen() bool { return s.open }
func (s *loopbackStream) SetLogger(*zap.SugaredLogger) {}
func (s *loopbackStream) SetDeadline(time.Time) {}
func (s *loopbackStream) SetMaxReceivedBytes(int64) {}

func (s *loopbackStream) Write(src []byte) error {
	if !s.open {
		return base.ErrNotOpened
	}
	s.frames = append(s.frames, bytes.Clone(src))
	return nil
}

func (s *loopbackStream) Read(p []byte) (int, error) {
	if !s.open {
		return 0, base.ErrNotOpened
	}
	if len(s.frames) == 0 {
		return 0, base.ErrNothingToRead
	}
	n := copy(p, s.frames[0])
	s.frames = s.frames[1:]
	return n, nil
}

func TestSecureChannelRoundTrip(t *testing.T) {
	ctx := newLoopbackContext(t, 0)
	transport := &loopbackStream{}
	ch := NewSecureChannel(transport, ctx)
	ch.SetLogger(zap.NewNop().Sugar())
	if err := ch.Open(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ch.Close() }()

	plain := []byte{0xc0, 0x01, 0xc1, 0x00, 0x01, 0x00, 0x00, 0x60, 0x01, 0x00, 0xff, 0x02}
	if err := ch.Send(security.PduGetRequest, security.KeyGlobal, plain); err != nil {
		t.Fatal(err)
	}
	// the wire carries an envelope, not the pdu
	if len(transport.frames) != 1 || bytes.Contains(transport.frames[0], plain) {
		t.Fatal("pdu left the channel unprotected")
	}
	typ, got, err := ch.Receive()
	if err != nil {
		t.Fatal(err)
	}
	if typ != security.PduGetRequest || !bytes.Equal(got, plain) {
		t.Fatalf("type %d, pdu % 02x", typ, got)
	}
}

func TestSecureChannelLargeFrame(t *testing.T) {
	ctx := newLoopbackContext(t, 0)
	ch := NewSecureChannel(&loopbackStream{}, ctx)
	if err := ch.Open(); err != nil {
		t.Fatal(err)
	}
	// a pdu near the wrapper's 16-bit frame limit has to survive Receive
	plain := bytes.Repeat([]byte{0x5a}, 60000)
	if err := ch.Send(security.PduDataNotification, security.KeyGlobal, plain); err != nil {
		t.Fatal(err)
	}
	typ, got, err := ch.Receive()
	if err != nil {
		t.Fatal(err)
	}
	if typ != security.PduDataNotification || !bytes.Equal(got, plain) {
		t.Fatalf("type %d, %d bytes", typ, len(got))
	}
}

func TestSecureChannelClosed(t *testing.T) {
	ctx := newLoopbackContext(t, 0)
	ch := NewSecureChannel(&loopbackStream{}, ctx)
	if err := ch.Send(security.PduGetRequest, security.KeyGlobal, []byte{1}); !errors.Is(err, base.ErrNotOpened) {
		t.Fatalf("send on closed channel: %v", err)
	}
	if _, _, err := ch.Receive(); !errors.Is(err, base.ErrNotOpened) {
		t.Fatalf("receive on closed channel: %v", err)
	}
}

func TestSecureChannelNothingToRead(t *testing.T) {
	ctx := newLoopbackContext(t, 0)
	ch := NewSecureChannel(&loopbackStream{}, ctx)
	if err := ch.Open(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ch.Receive(); !errors.Is(err, base.ErrNothingToRead) {
		t.Fatalf("got %v", err)
	}
}
