package xdlms

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/enercore/libcosem-go/base"
	"github.com/enercore/libcosem-go/security"
)

var (
	testMasterKey = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	testTitle     = security.NewSystemTitle([8]byte{'E', 'N', 'C', 1, 2, 3, 4, 5})
)

// loopback context: both titles identical, so Unprotect reverses Protect
func newLoopbackContext(t *testing.T, initialFc uint32) *Context {
	t.Helper()
	ctx, err := NewContext(&ContextSettings{
		ClientSystemTitle:   testTitle,
		ServerSystemTitle:   testTitle,
		MasterKey:           testMasterKey,
		Security:            base.SecurityAuthentication | base.SecurityEncryption,
		InitialFrameCounter: initialFc,
	})
	if err != nil {
		t.Fatal(err)
	}
	return ctx
}

func TestContextSettingsValidation(t *testing.T) {
	_, err := NewContext(&ContextSettings{
		ClientSystemTitle: testTitle,
		ServerSystemTitle: testTitle,
		MasterKey:         make([]byte, 10),
		Security:          base.SecurityAuthentication,
	})
	if !errors.Is(err, base.ErrInvalidFieldValue) {
		t.Fatalf("10 byte master key accepted: %v", err)
	}
	_, err = NewContext(&ContextSettings{
		ClientSystemTitle: testTitle,
		ServerSystemTitle: testTitle,
		MasterKey:         testMasterKey,
		Security:          base.SecurityEncryption, // no tag, cannot fill the envelope
	})
	if !errors.Is(err, base.ErrInvalidFieldValue) {
		t.Fatalf("encryption-only class accepted: %v", err)
	}
}

func TestContextDerivesKeysEagerly(t *testing.T) {
	ctx := newLoopbackContext(t, 0)
	keys := ctx.Keys()
	if len(keys.UnicastEncryption) != security.DerivedKeyLength ||
		len(keys.BroadcastEncryption) != security.DerivedKeyLength ||
		len(keys.Authentication) != security.DerivedKeyLength {
		t.Fatalf("keys %#v", keys)
	}
	if bytes.Equal(keys.UnicastEncryption, keys.Authentication) {
		t.Fatal("encryption and authentication keys are identical")
	}

	want, err := security.DeriveUnicastEncryptionKey(testMasterKey, testTitle)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(keys.UnicastEncryption, want) {
		t.Fatal("cached key does not match direct derivation")
	}
}

func TestProtectUnprotectRoundTrip(t *testing.T) {
	ctx := newLoopbackContext(t, 0)
	plain := []byte{0xc0, 0x01, 0x81, 0x00, 0x00, 0x03, 0x01, 0x01, 0x08, 0x00, 0xff, 0x02, 0x00}
	frame, err := ctx.Protect(security.PduGetRequest, security.KeyGlobal, plain)
	if err != nil {
		t.Fatal(err)
	}
	if ctx.SendCounter() != 1 {
		t.Fatalf("send counter %d", ctx.SendCounter())
	}
	if len(frame) != security.MinEnvelopeLength+len(plain) {
		t.Fatalf("frame is %d bytes", len(frame))
	}
	typ, got, err := ctx.Unprotect(frame)
	if err != nil {
		t.Fatal(err)
	}
	if typ != security.PduGetRequest || !bytes.Equal(got, plain) {
		t.Fatalf("type %d, pdu % 02x", typ, got)
	}
	if ctx.LastReceived() != 1 {
		t.Fatalf("receive window %d", ctx.LastReceived())
	}
}

func TestUnprotectRejectsReplay(t *testing.T) {
	ctx := newLoopbackContext(t, 0)
	frame, err := ctx.Protect(security.PduSetRequest, security.KeyGlobal, []byte{0x01})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err = ctx.Unprotect(frame); err != nil {
		t.Fatal(err)
	}
	if _, _, err = ctx.Unprotect(frame); !errors.Is(err, base.ErrInvalidFieldValue) {
		t.Fatalf("replay accepted: %v", err)
	}
}

func TestUnprotectLeavesWindowOnFailure(t *testing.T) {
	ctx := newLoopbackContext(t, 0)
	frame, err := ctx.Protect(security.PduGetResponse, security.KeyGlobal, []byte{0xaa, 0xbb})
	if err != nil {
		t.Fatal(err)
	}
	bad := bytes.Clone(frame)
	bad[len(bad)-1] ^= 0x01 // break the authentication tag
	if _, _, err = ctx.Unprotect(bad); err == nil {
		t.Fatal("forged tag accepted")
	}
	if ctx.LastReceived() != 0 {
		t.Fatalf("window moved to %d on a forged frame", ctx.LastReceived())
	}
	// the untampered frame is still acceptable
	if _, _, err = ctx.Unprotect(frame); err != nil {
		t.Fatal(err)
	}
}

func TestUnprotectRejectsForeignTitle(t *testing.T) {
	ctx := newLoopbackContext(t, 0)
	frame, err := ctx.Protect(security.PduGetRequest, security.KeyGlobal, []byte{0x01})
	if err != nil {
		t.Fatal(err)
	}
	frame[1] ^= 0xff // not the expected server title anymore
	if _, _, err = ctx.Unprotect(frame); !errors.Is(err, base.ErrInvalidFieldValue) {
		t.Fatalf("foreign title accepted: %v", err)
	}
}

func TestProtectDedicatedKey(t *testing.T) {
	ctx := newLoopbackContext(t, 0)
	if _, err := ctx.Protect(security.PduActionRequest, security.KeyDedicated, []byte{0x01}); !errors.Is(err, base.ErrKeySelectorMismatch) {
		t.Fatalf("dedicated frame without a key: %v", err)
	}
	if ctx.SendCounter() != 0 {
		t.Fatalf("failed protect burned counter value %d", ctx.SendCounter())
	}
	if err := ctx.SetDedicatedKey(bytes.Repeat([]byte{0x5a}, 16)); err != nil {
		t.Fatal(err)
	}
	plain := []byte{0xc3, 0x01, 0x00}
	frame, err := ctx.Protect(security.PduActionRequest, security.KeyDedicated, plain)
	if err != nil {
		t.Fatal(err)
	}
	if frame[0]&0x80 == 0 {
		t.Fatalf("security control %#02x lacks the dedicated selector", frame[0])
	}
	typ, got, err := ctx.Unprotect(frame)
	if err != nil {
		t.Fatal(err)
	}
	if typ != security.PduActionRequest || !bytes.Equal(got, plain) {
		t.Fatalf("type %d, pdu % 02x", typ, got)
	}
}

func TestProtectKeyEpochExhausted(t *testing.T) {
	ctx := newLoopbackContext(t, math.MaxUint32)
	if _, err := ctx.Protect(security.PduGetRequest, security.KeyGlobal, []byte{0x01}); !errors.Is(err, base.ErrKeyEpochExhausted) {
		t.Fatalf("wrap-around not refused: %v", err)
	}
}

func TestSetMasterKeyRederives(t *testing.T) {
	ctx := newLoopbackContext(t, 0)
	before := ctx.Keys()
	other := bytes.Repeat([]byte{0x77}, 16)
	if err := ctx.SetMasterKey(other); err != nil {
		t.Fatal(err)
	}
	after := ctx.Keys()
	if bytes.Equal(before.UnicastEncryption, after.UnicastEncryption) {
		t.Fatal("re-keying kept the old session keys")
	}
	// frames produced under the new key still round trip
	frame, err := ctx.Protect(security.PduGetRequest, security.KeyGlobal, []byte{0x0f})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err = ctx.Unprotect(frame); err != nil {
		t.Fatal(err)
	}
}

func TestProtectCounterIsStrictlyIncreasing(t *testing.T) {
	ctx := newLoopbackContext(t, 100)
	var last uint32 = 100
	for range 5 {
		frame, err := ctx.Protect(security.PduDataNotification, security.KeyGlobal, []byte{0x0f})
		if err != nil {
			t.Fatal(err)
		}
		p, err := security.DecodeGlobalEncryptedPdu(frame)
		if err != nil {
			t.Fatal(err)
		}
		if p.FrameCounter != last+1 {
			t.Fatalf("counter jumped from %d to %d", last, p.FrameCounter)
		}
		last = p.FrameCounter
	}
}
