package axdr

import (
	"bytes"
	"fmt"
	"io"

	"github.com/enercore/libcosem-go/base"
)

// Positional codecs for fixed-schema pdu fields. These are never
// tag-prefixed: the field type is fixed by its position in the pdu, so only
// the raw big-endian payload goes on the wire.

func EncodeUnsigned8(dst *bytes.Buffer, v uint8) {
	dst.WriteByte(v)
}

func EncodeUnsigned16(dst *bytes.Buffer, v uint16) {
	dst.WriteByte(byte(v >> 8))
	dst.WriteByte(byte(v))
}

func EncodeInteger8(dst *bytes.Buffer, v int8) {
	dst.WriteByte(byte(v))
}

func EncodeInteger16(dst *bytes.Buffer, v int16) {
	dst.WriteByte(byte(v >> 8))
	dst.WriteByte(byte(v))
}

func DecodeUnsigned8(src io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(src, b[:]); err != nil {
		return 0, fmt.Errorf("%w: unsigned8 field", base.ErrTruncatedInput)
	}
	return b[0], nil
}

func DecodeUnsigned16(src io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(src, b[:]); err != nil {
		return 0, fmt.Errorf("%w: unsigned16 field", base.ErrTruncatedInput)
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func DecodeInteger8(src io.Reader) (int8, error) {
	v, err := DecodeUnsigned8(src)
	return int8(v), err
}

func DecodeInteger16(src io.Reader) (int16, error) {
	v, err := DecodeUnsigned16(src)
	return int16(v), err
}

// EncodeOptional pins the optional-field wire convention in one place: a
// one-byte usage flag followed by the value when present. Getting this order
// wrong silently misaligns every following field, so no call site hand-rolls
// the flag dance.
func EncodeOptional(dst *bytes.Buffer, present bool, writeValue func(*bytes.Buffer)) {
	if !present {
		dst.WriteByte(0x00)
		return
	}
	dst.WriteByte(0x01)
	writeValue(dst)
}

// DecodeOptional reads the usage flag and invokes readValue only when the
// flag marks the value as present. It reports whether the value was present.
func DecodeOptional(src io.Reader, readValue func(io.Reader) error) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(src, b[:]); err != nil {
		return false, fmt.Errorf("%w: optional usage flag", base.ErrTruncatedInput)
	}
	switch b[0] {
	case 0x00:
		return false, nil
	case 0x01:
		return true, readValue(src)
	}
	return false, fmt.Errorf("%w: optional usage flag %#02x", base.ErrInvalidFieldValue, b[0])
}
