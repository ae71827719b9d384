package security

import (
	"encoding/binary"
	"fmt"

	"github.com/enercore/libcosem-go/base"
)

// AuthenticationTagLength is the GMAC tag size used throughout DLMS
// security suite 0.
const AuthenticationTagLength = 12

// MinEnvelopeLength is control(1) + title(8) + counter(4) + tag(12) with an
// empty ciphertext.
const MinEnvelopeLength = 1 + SystemTitleLength + 4 + AuthenticationTagLength

// GlobalEncryptedPdu is the encrypted envelope protected with global
// (master-key derived) session keys. Wire layout: security control byte,
// system title, big-endian frame counter, ciphertext, authentication tag.
type GlobalEncryptedPdu struct {
	Type              EncryptedPduType
	SystemTitle       SystemTitle
	FrameCounter      uint32
	Ciphertext        []byte
	AuthenticationTag [AuthenticationTagLength]byte
}

// DedicatedEncryptedPdu is byte-identical to the global envelope except for
// the key-selector bit; it is protected with the per-association dedicated
// key.
type DedicatedEncryptedPdu struct {
	Type              EncryptedPduType
	SystemTitle       SystemTitle
	FrameCounter      uint32
	Ciphertext        []byte
	AuthenticationTag [AuthenticationTagLength]byte
}

func NewGlobalEncryptedPdu(t EncryptedPduType, title SystemTitle, fc uint32, ciphertext []byte, tag [AuthenticationTagLength]byte) GlobalEncryptedPdu {
	return GlobalEncryptedPdu{Type: t, SystemTitle: title, FrameCounter: fc, Ciphertext: ciphertext, AuthenticationTag: tag}
}

func NewDedicatedEncryptedPdu(t EncryptedPduType, title SystemTitle, fc uint32, ciphertext []byte, tag [AuthenticationTagLength]byte) DedicatedEncryptedPdu {
	return DedicatedEncryptedPdu{Type: t, SystemTitle: title, FrameCounter: fc, Ciphertext: ciphertext, AuthenticationTag: tag}
}

func encodeEnvelope(k KeyType, t EncryptedPduType, title SystemTitle, fc uint32, ciphertext []byte, tag [AuthenticationTagLength]byte) []byte {
	out := make([]byte, MinEnvelopeLength+len(ciphertext))
	out[0] = NewSecurityControl(k, t).Value()
	copy(out[1:], title[:])
	binary.BigEndian.PutUint32(out[1+SystemTitleLength:], fc)
	copy(out[1+SystemTitleLength+4:], ciphertext)
	copy(out[len(out)-AuthenticationTagLength:], tag[:])
	return out
}

type envelopeFields struct {
	typ    EncryptedPduType
	title  SystemTitle
	fc     uint32
	cipher []byte
	tag    [AuthenticationTagLength]byte
}

func decodeEnvelope(src []byte, want KeyType) (f envelopeFields, err error) {
	if len(src) < MinEnvelopeLength {
		return f, fmt.Errorf("%w: encrypted envelope needs at least %d bytes, got %d", base.ErrTruncatedInput, MinEnvelopeLength, len(src))
	}
	sc, err := DecodeSecurityControl(src[0])
	if err != nil {
		return f, err
	}
	if sc.KeyType() != want {
		return f, fmt.Errorf("%w: envelope uses %s key, expected %s", base.ErrKeySelectorMismatch, sc.KeyType(), want)
	}
	f.typ = sc.PduType()
	copy(f.title[:], src[1:1+SystemTitleLength])
	f.fc = binary.BigEndian.Uint32(src[1+SystemTitleLength:])
	f.cipher = make([]byte, len(src)-MinEnvelopeLength)
	copy(f.cipher, src[1+SystemTitleLength+4:len(src)-AuthenticationTagLength])
	copy(f.tag[:], src[len(src)-AuthenticationTagLength:])
	return f, nil
}

func (p *GlobalEncryptedPdu) Encode() []byte {
	return encodeEnvelope(KeyGlobal, p.Type, p.SystemTitle, p.FrameCounter, p.Ciphertext, p.AuthenticationTag)
}

// DecodeGlobalEncryptedPdu parses a global envelope. A dedicated-key frame is
// rejected with ErrKeySelectorMismatch instead of being silently accepted
// under the wrong key category.
func DecodeGlobalEncryptedPdu(src []byte) (p GlobalEncryptedPdu, err error) {
	f, err := decodeEnvelope(src, KeyGlobal)
	if err != nil {
		return p, err
	}
	return GlobalEncryptedPdu{Type: f.typ, SystemTitle: f.title, FrameCounter: f.fc, Ciphertext: f.cipher, AuthenticationTag: f.tag}, nil
}

func (p *DedicatedEncryptedPdu) Encode() []byte {
	return encodeEnvelope(KeyDedicated, p.Type, p.SystemTitle, p.FrameCounter, p.Ciphertext, p.AuthenticationTag)
}

func DecodeDedicatedEncryptedPdu(src []byte) (p DedicatedEncryptedPdu, err error) {
	f, err := decodeEnvelope(src, KeyDedicated)
	if err != nil {
		return p, err
	}
	return DedicatedEncryptedPdu{Type: f.typ, SystemTitle: f.title, FrameCounter: f.fc, Ciphertext: f.cipher, AuthenticationTag: f.tag}, nil
}

// EncryptedPdu holds either envelope variant. DecodeEncryptedPdu is the
// receive-side entry point when the peer's key category is not known yet.
type EncryptedPdu struct {
	Global    *GlobalEncryptedPdu
	Dedicated *DedicatedEncryptedPdu
}

// DecodeEncryptedPdu auto-detects the variant from the key-selector bit of
// the first byte and dispatches to the matching decoder.
func DecodeEncryptedPdu(src []byte) (p EncryptedPdu, err error) {
	if len(src) == 0 {
		return p, fmt.Errorf("%w: empty envelope", base.ErrTruncatedInput)
	}
	if SecurityControl(src[0]).KeyType() == KeyDedicated {
		ded, err := DecodeDedicatedEncryptedPdu(src)
		if err != nil {
			return p, err
		}
		return EncryptedPdu{Dedicated: &ded}, nil
	}
	glo, err := DecodeGlobalEncryptedPdu(src)
	if err != nil {
		return p, err
	}
	return EncryptedPdu{Global: &glo}, nil
}

func (p *EncryptedPdu) IsGlobal() bool {
	return p.Global != nil
}

func (p *EncryptedPdu) Encode() []byte {
	if p.Global != nil {
		return p.Global.Encode()
	}
	if p.Dedicated != nil {
		return p.Dedicated.Encode()
	}
	return nil
}

// Fields returns the variant-independent envelope content.
func (p *EncryptedPdu) Fields() (KeyType, EncryptedPduType, SystemTitle, uint32, []byte, [AuthenticationTagLength]byte) {
	if p.Global != nil {
		g := p.Global
		return KeyGlobal, g.Type, g.SystemTitle, g.FrameCounter, g.Ciphertext, g.AuthenticationTag
	}
	d := p.Dedicated
	return KeyDedicated, d.Type, d.SystemTitle, d.FrameCounter, d.Ciphertext, d.AuthenticationTag
}
