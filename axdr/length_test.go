package axdr

import (
	"bytes"
	"errors"
	"testing"

	"github.com/enercore/libcosem-go/base"
)

func TestLengthRoundTrip(t *testing.T) {
	for _, l := range []uint{0, 1, 127, 128, 255, 256, 65535, 65536, 16777215, 16777216} {
		var out bytes.Buffer
		EncodeLength(&out, l)
		if out.Len() != CodedLength(l) {
			t.Fatalf("length %d: encoded %d bytes, CodedLength says %d", l, out.Len(), CodedLength(l))
		}
		got, c, err := DecodeLength(bytes.NewReader(out.Bytes()))
		if err != nil {
			t.Fatalf("length %d: %v", l, err)
		}
		if got != l || c != out.Len() {
			t.Fatalf("length %d: decoded %d from %d bytes", l, got, c)
		}
	}
}

func TestLengthShortForm(t *testing.T) {
	var out bytes.Buffer
	EncodeLength(&out, 5)
	if !bytes.Equal(out.Bytes(), []byte{0x05}) {
		t.Fatalf("unexpected encoding % 02x", out.Bytes())
	}
	out.Reset()
	EncodeLength(&out, 130)
	if !bytes.Equal(out.Bytes(), []byte{0x81, 0x82}) {
		t.Fatalf("unexpected encoding % 02x", out.Bytes())
	}
}

func TestLengthEncodeTo(t *testing.T) {
	var out bytes.Buffer
	var dst [8]byte
	for _, l := range []uint{0, 127, 128, 1000, 70000} {
		out.Reset()
		EncodeLength(&out, l)
		n := EncodeLengthTo(dst[:], l)
		if !bytes.Equal(out.Bytes(), dst[:n]) {
			t.Fatalf("length %d: buffer and slice form differ", l)
		}
	}
}

func TestLengthErrors(t *testing.T) {
	_, _, err := DecodeLength(bytes.NewReader(nil))
	if !errors.Is(err, base.ErrTruncatedInput) {
		t.Fatalf("empty input: %v", err)
	}
	_, _, err = DecodeLength(bytes.NewReader([]byte{0x80}))
	if !errors.Is(err, base.ErrUnsupportedEncoding) {
		t.Fatalf("infinite form: %v", err)
	}
	_, _, err = DecodeLength(bytes.NewReader([]byte{0x85, 1, 2, 3, 4, 5}))
	if !errors.Is(err, base.ErrInvalidFieldValue) {
		t.Fatalf("oversized length: %v", err)
	}
	_, _, err = DecodeLength(bytes.NewReader([]byte{0x82, 0x01}))
	if !errors.Is(err, base.ErrTruncatedInput) {
		t.Fatalf("cut long form: %v", err)
	}
}
