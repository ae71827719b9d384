package security

import (
	"bytes"
	"errors"
	"testing"

	"github.com/enercore/libcosem-go/base"
)

var envelopeTitle = NewSystemTitle([8]byte{'E', 'N', 'C', 0x00, 0x12, 0x34, 0x56, 0x78})

func TestGlobalEnvelopeWireLayout(t *testing.T) {
	title := NewSystemTitle([8]byte{1, 2, 3, 4, 5, 6, 7, 8})
	var tag [AuthenticationTagLength]byte
	for i := range tag {
		tag[i] = byte(i)
	}
	p := NewGlobalEncryptedPdu(PduGetRequest, title, 0x12345678, []byte{0xab, 0xcd}, tag)
	enc := p.Encode()
	want := []byte{
		0x01,                                           // global key, get request
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, // system title
		0x12, 0x34, 0x56, 0x78, // frame counter
		0xab, 0xcd, // ciphertext
		0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, // tag
	}
	if len(enc) != 27 || !bytes.Equal(enc, want) {
		t.Fatalf("got  % 02x\nwant % 02x", enc, want)
	}

	got, err := DecodeGlobalEncryptedPdu(enc)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != PduGetRequest || got.SystemTitle != title || got.FrameCounter != 0x12345678 {
		t.Fatalf("got %#v", got)
	}
	if !bytes.Equal(got.Ciphertext, []byte{0xab, 0xcd}) || got.AuthenticationTag != tag {
		t.Fatalf("got %#v", got)
	}
}

func TestEnvelopeEmptyCiphertext(t *testing.T) {
	var tag [AuthenticationTagLength]byte
	p := NewDedicatedEncryptedPdu(PduEventNotification, envelopeTitle, 7, nil, tag)
	enc := p.Encode()
	if len(enc) != MinEnvelopeLength {
		t.Fatalf("envelope is %d bytes", len(enc))
	}
	got, err := DecodeDedicatedEncryptedPdu(enc)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Ciphertext) != 0 {
		t.Fatalf("ciphertext % 02x", got.Ciphertext)
	}
}

func TestEnvelopeKeySelectorMismatch(t *testing.T) {
	var tag [AuthenticationTagLength]byte
	glo := NewGlobalEncryptedPdu(PduGetResponse, envelopeTitle, 1, []byte{1}, tag)
	if _, err := DecodeDedicatedEncryptedPdu(glo.Encode()); !errors.Is(err, base.ErrKeySelectorMismatch) {
		t.Fatalf("global frame decoded as dedicated: %v", err)
	}
	ded := NewDedicatedEncryptedPdu(PduGetResponse, envelopeTitle, 1, []byte{1}, tag)
	if _, err := DecodeGlobalEncryptedPdu(ded.Encode()); !errors.Is(err, base.ErrKeySelectorMismatch) {
		t.Fatalf("dedicated frame decoded as global: %v", err)
	}
}

func TestEnvelopeAutoDetect(t *testing.T) {
	var tag [AuthenticationTagLength]byte
	glo := NewGlobalEncryptedPdu(PduSetRequest, envelopeTitle, 9, []byte{0xaa}, tag)
	p, err := DecodeEncryptedPdu(glo.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsGlobal() {
		t.Fatal("global frame detected as dedicated")
	}
	k, typ, title, fc, ct, _ := p.Fields()
	if k != KeyGlobal || typ != PduSetRequest || title != envelopeTitle || fc != 9 || !bytes.Equal(ct, []byte{0xaa}) {
		t.Fatalf("fields %v %v %v %d % 02x", k, typ, title, fc, ct)
	}
	if !bytes.Equal(p.Encode(), glo.Encode()) {
		t.Fatal("re-encode differs")
	}

	ded := NewDedicatedEncryptedPdu(PduSetRequest, envelopeTitle, 9, []byte{0xaa}, tag)
	p, err = DecodeEncryptedPdu(ded.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if p.IsGlobal() {
		t.Fatal("dedicated frame detected as global")
	}
}

func TestEnvelopeTruncated(t *testing.T) {
	var tag [AuthenticationTagLength]byte
	pdu := NewGlobalEncryptedPdu(PduGetRequest, envelopeTitle, 1, nil, tag)
	enc := pdu.Encode()
	for _, n := range []int{0, 1, 12, MinEnvelopeLength - 1} {
		if _, err := DecodeEncryptedPdu(enc[:n]); !errors.Is(err, base.ErrTruncatedInput) {
			t.Fatalf("%d bytes: %v", n, err)
		}
	}
}

func TestEnvelopeBadControlByte(t *testing.T) {
	var tag [AuthenticationTagLength]byte
	pdu := NewGlobalEncryptedPdu(PduGetRequest, envelopeTitle, 1, nil, tag)
	enc := pdu.Encode()
	enc[0] = 0x7f // pdu type 127 is unassigned
	if _, err := DecodeEncryptedPdu(enc); !errors.Is(err, base.ErrInvalidTag) {
		t.Fatalf("got %v", err)
	}
}
