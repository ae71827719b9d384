package security

import (
	"fmt"

	"github.com/enercore/libcosem-go/base"
)

// KeyType is the key-selector bit of the security control byte: global keys
// are derived from the master key, dedicated keys are negotiated per
// association.
type KeyType byte

const (
	KeyGlobal    KeyType = 0
	KeyDedicated KeyType = 1
)

func (k KeyType) String() string {
	if k == KeyDedicated {
		return "dedicated"
	}
	return "global"
}

// EncryptedPduType names the application pdu carried inside an encrypted
// envelope. Values above Other are not assigned and fail decode.
type EncryptedPduType byte

const (
	PduReserved              EncryptedPduType = 0
	PduGetRequest            EncryptedPduType = 1
	PduGetResponse           EncryptedPduType = 2
	PduSetRequest            EncryptedPduType = 3
	PduSetResponse           EncryptedPduType = 4
	PduActionRequest         EncryptedPduType = 5
	PduActionResponse        EncryptedPduType = 6
	PduEventNotification     EncryptedPduType = 7
	PduInitiateRequest       EncryptedPduType = 8
	PduInitiateResponse      EncryptedPduType = 9
	PduReadRequest           EncryptedPduType = 10
	PduReadResponse          EncryptedPduType = 11
	PduWriteRequest          EncryptedPduType = 12
	PduWriteResponse         EncryptedPduType = 13
	PduDataNotification      EncryptedPduType = 14
	PduConfirmedServiceError EncryptedPduType = 15
	PduOther                 EncryptedPduType = 16
)

func pduTypeValid(t EncryptedPduType) bool {
	return t <= PduOther
}

// SecurityControl packs the key selector and carried pdu type into the first
// byte of every encrypted envelope: bit 7 selects the key category, the low
// seven bits name the pdu.
type SecurityControl byte

func NewSecurityControl(k KeyType, t EncryptedPduType) SecurityControl {
	v := byte(t) & 0x7f
	if k == KeyDedicated {
		v |= 0x80
	}
	return SecurityControl(v)
}

// DecodeSecurityControl validates the pdu-type field; unknown values are a
// decode error, never a silent default.
func DecodeSecurityControl(b byte) (SecurityControl, error) {
	sc := SecurityControl(b)
	if !pduTypeValid(sc.PduType()) {
		return 0, fmt.Errorf("%w: security control pdu type %d", base.ErrInvalidTag, sc.PduType())
	}
	return sc, nil
}

func (sc SecurityControl) Value() byte {
	return byte(sc)
}

func (sc SecurityControl) KeyType() KeyType {
	if sc&0x80 != 0 {
		return KeyDedicated
	}
	return KeyGlobal
}

func (sc SecurityControl) PduType() EncryptedPduType {
	return EncryptedPduType(sc & 0x7f)
}
