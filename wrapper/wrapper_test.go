package wrapper

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/enercore/libcosem-go/base"
)

// byteStream is a raw in-memory transport: reads drain whatever writes put in.
type byteStream struct {
	buf  bytes.Buffer
	open bool
}

func (s *byteStream) Open() error { s.open = true; return nil }
func (s *byteStream) Close() error { s.open = false; return nil }
func (s *byteStream) Disconnect() error { s.open = false; return nil }
func (s *byteStream) IsOpen() bool { return s.open }
func (s *byteStream) SetLogger(*zap.SugaredLogger) {}
func (s *byteStream) SetDeadline(time.Time) {}
func (s *byteStream) SetMaxReceivedBytes(int64) {}
func (s *byteStream) Write(src []byte) error { s.buf.Write(src); return nil }
func (s *byteStream) Read(p []byte) (int, error) { return s.buf.Read(p) }

func TestWrapperFrameRoundTrip(t *testing.T) {
	raw := &byteStream{}
	// a loopback wrapper would reject its own ports, build a mirrored pair
	tx := New(raw, 1, 16)
	rx := New(raw, 16, 1)
	if err := tx.Open(); err != nil {
		t.Fatal(err)
	}
	payload := []byte{0x60, 0x1d, 0xa1, 0x09}
	if err := tx.Write(payload); err != nil {
		t.Fatal(err)
	}
	head := raw.buf.Bytes()[:headerLength]
	if !bytes.Equal(head, []byte{0x00, 0x01, 0x00, 0x01, 0x00, 0x10, 0x00, 0x04}) {
		t.Fatalf("header % 02x", head)
	}
	buf := make([]byte, 64)
	n, err := rx.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Fatalf("got % 02x", buf[:n])
	}
}

func TestWrapperRejectsForeignPorts(t *testing.T) {
	raw := &byteStream{}
	tx := New(raw, 1, 16)
	rx := New(raw, 1, 16) // same side twice, the echoed ports cannot match
	if err := tx.Write([]byte{0xaa}); err != nil {
		t.Fatal(err)
	}
	if _, err := rx.Read(make([]byte, 16)); !errors.Is(err, base.ErrInvalidFieldValue) {
		t.Fatalf("got %v", err)
	}
}

func TestWrapperRejectsOversizedWrite(t *testing.T) {
	w := New(&byteStream{}, 1, 16)
	if err := w.Write(make([]byte, maxPayload+1)); !errors.Is(err, base.ErrInvalidFieldValue) {
		t.Fatalf("got %v", err)
	}
}

func TestWrapperBufferTooSmall(t *testing.T) {
	raw := &byteStream{}
	tx := New(raw, 1, 16)
	rx := New(raw, 16, 1)
	if err := tx.Write(make([]byte, 32)); err != nil {
		t.Fatal(err)
	}
	if _, err := rx.Read(make([]byte, 8)); !errors.Is(err, base.ErrInvalidFieldValue) {
		t.Fatalf("got %v", err)
	}
}
