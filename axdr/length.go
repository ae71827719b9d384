package axdr

import (
	"bytes"
	"fmt"
	"io"

	"github.com/enercore/libcosem-go/base"
)

// CodedLength returns the number of bytes EncodeLength emits for l.
func CodedLength(l uint) int {
	if l < 128 {
		return 1
	}
	if l < 256 {
		return 2
	}
	if l < 65536 {
		return 3
	}
	if l < 16777216 {
		return 4
	}
	return 5
}

// EncodeLength writes the short form for lengths below 128 and the long form
// (marker byte 0x80|n followed by n big-endian bytes, minimal n) otherwise.
func EncodeLength(dst *bytes.Buffer, l uint) {
	if l < 128 {
		dst.WriteByte(byte(l))
		return
	}
	if l < 256 {
		dst.WriteByte(0x81)
		dst.WriteByte(byte(l))
		return
	}
	if l < 65536 {
		dst.WriteByte(0x82)
		dst.WriteByte(byte(l >> 8))
		dst.WriteByte(byte(l))
		return
	}
	if l < 16777216 {
		dst.WriteByte(0x83)
		dst.WriteByte(byte(l >> 16))
		dst.WriteByte(byte(l >> 8))
		dst.WriteByte(byte(l))
		return
	}
	dst.WriteByte(0x84)
	dst.WriteByte(byte(l >> 24))
	dst.WriteByte(byte(l >> 16))
	dst.WriteByte(byte(l >> 8))
	dst.WriteByte(byte(l))
}

// EncodeLengthTo is EncodeLength into a preallocated slice, returning the
// number of bytes written.
func EncodeLengthTo(dst []byte, l uint) int {
	if l < 128 {
		dst[0] = byte(l)
		return 1
	}
	if l < 256 {
		dst[0] = 0x81
		dst[1] = byte(l)
		return 2
	}
	if l < 65536 {
		dst[0] = 0x82
		dst[1] = byte(l >> 8)
		dst[2] = byte(l)
		return 3
	}
	if l < 16777216 {
		dst[0] = 0x83
		dst[1] = byte(l >> 16)
		dst[2] = byte(l >> 8)
		dst[3] = byte(l)
		return 4
	}
	dst[0] = 0x84
	dst[1] = byte(l >> 24)
	dst[2] = byte(l >> 16)
	dst[3] = byte(l >> 8)
	dst[4] = byte(l)
	return 5
}

func decodelength(src io.Reader, tmp *tmpbuffer) (uint, int, error) {
	_, err := io.ReadFull(src, tmp[:1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: no length byte", base.ErrTruncatedInput)
	}
	b := tmp[0]
	if b < 128 {
		return uint(b), 1, nil
	}
	if b == 128 {
		return 0, 0, fmt.Errorf("%w: infinite length", base.ErrUnsupportedEncoding)
	}
	r := uint(0)
	c := int(b & 0x7f)
	if c > 4 {
		return 0, 0, fmt.Errorf("%w: too many bytes for length", base.ErrInvalidFieldValue)
	}
	_, err = io.ReadFull(src, tmp[:c])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %d length bytes declared", base.ErrTruncatedInput, c)
	}
	for i := range c {
		r = (r << 8) | uint(tmp[i])
	}
	return r, c + 1, nil
}

// DecodeLength reads one length prefix and reports the value together with
// the number of bytes consumed.
func DecodeLength(src io.Reader) (uint, int, error) {
	var tmp tmpbuffer
	return decodelength(src, &tmp)
}
