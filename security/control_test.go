package security

import (
	"errors"
	"testing"

	"github.com/enercore/libcosem-go/base"
)

func TestSecurityControlPacking(t *testing.T) {
	if v := NewSecurityControl(KeyGlobal, PduGetRequest).Value(); v != 0x01 {
		t.Fatalf("global get request packs to %#02x", v)
	}
	if v := NewSecurityControl(KeyDedicated, PduActionRequest).Value(); v != 0x85 {
		t.Fatalf("dedicated action request packs to %#02x", v)
	}
}

func TestSecurityControlRoundTrip(t *testing.T) {
	for _, k := range []KeyType{KeyGlobal, KeyDedicated} {
		for typ := PduReserved; typ <= PduOther; typ++ {
			sc, err := DecodeSecurityControl(NewSecurityControl(k, typ).Value())
			if err != nil {
				t.Fatalf("%s/%d: %v", k, typ, err)
			}
			if sc.KeyType() != k || sc.PduType() != typ {
				t.Fatalf("%s/%d decoded as %s/%d", k, typ, sc.KeyType(), sc.PduType())
			}
		}
	}
}

func TestSecurityControlRejectsUnknownPduType(t *testing.T) {
	for _, b := range []byte{17, 0x7f, 0x80 | 17, 0xff} {
		if _, err := DecodeSecurityControl(b); !errors.Is(err, base.ErrInvalidTag) {
			t.Fatalf("byte %#02x: %v", b, err)
		}
	}
}
