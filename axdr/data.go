package axdr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/enercore/libcosem-go/base"
)

// Decode reads one tag-prefixed data object from src and returns it together
// with the number of bytes consumed. A failed decode leaves src untouched.
func Decode(src []byte) (DlmsData, int, error) {
	return DecodeStream(bytes.NewReader(src))
}

// DecodeStream is Decode over an io.Reader. On error the reader position is
// undefined and the caller must discard the current pdu.
func DecodeStream(src io.Reader) (DlmsData, int, error) {
	var tmp tmpbuffer
	return decodeDataTag(src, &tmp)
}

// Encode serializes one tag-prefixed data object.
func Encode(d DlmsData) ([]byte, error) {
	var out bytes.Buffer
	err := encodeData(&out, &d)
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func decodeDataTag(src io.Reader, tmp *tmpbuffer) (data DlmsData, c int, err error) {
	_, err = io.ReadFull(src, tmp[:1])
	if err != nil {
		return data, 0, fmt.Errorf("%w: no tag byte", base.ErrTruncatedInput)
	}
	t := DataTag(tmp[0])
	data, c, err = decodeData(src, t, tmp)
	return data, c + 1, err
}

// maxPrealloc bounds what a wire-declared length may allocate before any
// payload byte proved the data exists; a 5-byte hostile prefix must not be
// able to demand gigabytes.
const maxPrealloc = 4096

// readOctets reads exactly l bytes, growing the buffer with the input
// instead of trusting l for the up-front allocation.
func readOctets(src io.Reader, l uint) ([]byte, error) {
	if l <= maxPrealloc {
		v := make([]byte, l)
		if _, err := io.ReadFull(src, v); err != nil {
			return nil, err
		}
		return v, nil
	}
	var buf bytes.Buffer
	if n, err := io.CopyN(&buf, src, int64(l)); err != nil || n != int64(l) {
		return nil, io.ErrUnexpectedEOF
	}
	return buf.Bytes(), nil
}

func decodeDataArray(src io.Reader, tag DataTag, tmp *tmpbuffer) (data DlmsData, c int, err error) {
	l, c, err := decodelength(src, tmp)
	if err != nil {
		return data, 0, err
	}
	d := make([]DlmsData, 0, min(l, maxPrealloc))
	for range l {
		e, ii, err := decodeDataTag(src, tmp)
		if err != nil {
			return data, 0, err
		}
		d = append(d, e)
		c += ii
	}
	return DlmsData{Tag: tag, Value: d}, c, nil
}

func decodeData(src io.Reader, tag DataTag, tmp *tmpbuffer) (data DlmsData, c int, err error) {
	switch tag {
	case TagNull:
		return DlmsData{Tag: tag}, 0, nil
	case TagDontCare: // placeholder without payload
		return DlmsData{Tag: tag}, 0, nil
	case TagArray:
		return decodeDataArray(src, tag, tmp)
	case TagStructure:
		return decodeDataArray(src, tag, tmp)
	case TagBoolean:
		_, err = io.ReadFull(src, tmp[:1])
		if err != nil {
			return data, 0, fmt.Errorf("%w: boolean", base.ErrTruncatedInput)
		}
		return DlmsData{Tag: tag, Value: tmp[0] != 0}, 1, nil
	case TagBitString:
		return decodeBitString(src, tmp)
	case TagDoubleLong:
		_, err = io.ReadFull(src, tmp[:4])
		if err != nil {
			return data, 0, fmt.Errorf("%w: double long", base.ErrTruncatedInput)
		}
		v := int32(tmp[0])<<24 | int32(tmp[1])<<16 | int32(tmp[2])<<8 | int32(tmp[3])
		return DlmsData{Tag: tag, Value: v}, 4, nil
	case TagDoubleLongUnsigned:
		_, err = io.ReadFull(src, tmp[:4])
		if err != nil {
			return data, 0, fmt.Errorf("%w: double long unsigned", base.ErrTruncatedInput)
		}
		return DlmsData{Tag: tag, Value: binary.BigEndian.Uint32(tmp[:4])}, 4, nil
	case TagFloatingPoint, TagFloat32:
		_, err = io.ReadFull(src, tmp[:4])
		if err != nil {
			return data, 0, fmt.Errorf("%w: float32", base.ErrTruncatedInput)
		}
		return DlmsData{Tag: tag, Value: math.Float32frombits(binary.BigEndian.Uint32(tmp[:4]))}, 4, nil
	case TagOctetString:
		l, c, err := decodelength(src, tmp)
		if err != nil {
			return data, 0, err
		}
		v, err := readOctets(src, l)
		if err != nil {
			return data, 0, fmt.Errorf("%w: octet string of %d bytes", base.ErrTruncatedInput, l)
		}
		return DlmsData{Tag: tag, Value: v}, c + int(l), nil
	case TagVisibleString:
		l, c, err := decodelength(src, tmp)
		if err != nil {
			return data, 0, err
		}
		v, err := readOctets(src, l)
		if err != nil {
			return data, 0, fmt.Errorf("%w: visible string of %d bytes", base.ErrTruncatedInput, l)
		}
		return DlmsData{Tag: tag, Value: string(v)}, c + int(l), nil
	case TagUTF8String:
		l, c, err := decodelength(src, tmp)
		if err != nil {
			return data, 0, err
		}
		v, err := readOctets(src, l)
		if err != nil {
			return data, 0, fmt.Errorf("%w: utf-8 string of %d bytes", base.ErrTruncatedInput, l)
		}
		if !utf8.Valid(v) {
			return data, 0, fmt.Errorf("%w: invalid utf-8 runes", base.ErrInvalidFieldValue)
		}
		return DlmsData{Tag: tag, Value: string(v)}, c + int(l), nil
	case TagBCD:
		_, err = io.ReadFull(src, tmp[:1])
		if err != nil {
			return data, 0, fmt.Errorf("%w: bcd", base.ErrTruncatedInput)
		}
		v := int(tmp[0]&0xf) + 10*(int(tmp[0]>>4)&7)
		if (tmp[0] & 0x80) != 0 {
			v = -v
		}
		return DlmsData{Tag: tag, Value: int8(v)}, 1, nil
	case TagInteger:
		_, err = io.ReadFull(src, tmp[:1])
		if err != nil {
			return data, 0, fmt.Errorf("%w: integer", base.ErrTruncatedInput)
		}
		return DlmsData{Tag: tag, Value: int8(tmp[0])}, 1, nil
	case TagLong:
		_, err = io.ReadFull(src, tmp[:2])
		if err != nil {
			return data, 0, fmt.Errorf("%w: long", base.ErrTruncatedInput)
		}
		v := int16(tmp[0])<<8 | int16(tmp[1])
		return DlmsData{Tag: tag, Value: v}, 2, nil
	case TagUnsigned:
		_, err = io.ReadFull(src, tmp[:1])
		if err != nil {
			return data, 0, fmt.Errorf("%w: unsigned", base.ErrTruncatedInput)
		}
		return DlmsData{Tag: tag, Value: tmp[0]}, 1, nil
	case TagLongUnsigned:
		_, err = io.ReadFull(src, tmp[:2])
		if err != nil {
			return data, 0, fmt.Errorf("%w: long unsigned", base.ErrTruncatedInput)
		}
		return DlmsData{Tag: tag, Value: binary.BigEndian.Uint16(tmp[:2])}, 2, nil
	case TagCompactArray:
		// deliberately not implemented, misreading the packed payload would
		// corrupt every following field
		return data, 0, fmt.Errorf("%w: compact array", base.ErrUnsupportedEncoding)
	case TagLong64:
		_, err = io.ReadFull(src, tmp[:8])
		if err != nil {
			return data, 0, fmt.Errorf("%w: long64", base.ErrTruncatedInput)
		}
		return DlmsData{Tag: tag, Value: int64(binary.BigEndian.Uint64(tmp[:8]))}, 8, nil
	case TagLong64Unsigned:
		_, err = io.ReadFull(src, tmp[:8])
		if err != nil {
			return data, 0, fmt.Errorf("%w: long64 unsigned", base.ErrTruncatedInput)
		}
		return DlmsData{Tag: tag, Value: binary.BigEndian.Uint64(tmp[:8])}, 8, nil
	case TagEnum:
		_, err = io.ReadFull(src, tmp[:1])
		if err != nil {
			return data, 0, fmt.Errorf("%w: enum", base.ErrTruncatedInput)
		}
		return DlmsData{Tag: tag, Value: tmp[0]}, 1, nil
	case TagFloat64:
		_, err = io.ReadFull(src, tmp[:8])
		if err != nil {
			return data, 0, fmt.Errorf("%w: float64", base.ErrTruncatedInput)
		}
		return DlmsData{Tag: tag, Value: math.Float64frombits(binary.BigEndian.Uint64(tmp[:8]))}, 8, nil
	case TagDateTime:
		_, err = io.ReadFull(src, tmp[:12])
		if err != nil {
			return data, 0, fmt.Errorf("%w: datetime", base.ErrTruncatedInput)
		}
		v, err := NewDlmsDateTimeFromSlice(tmp[:12])
		if err != nil {
			return data, 0, err
		}
		return DlmsData{Tag: tag, Value: v}, 12, nil
	case TagDate:
		_, err = io.ReadFull(src, tmp[:5])
		if err != nil {
			return data, 0, fmt.Errorf("%w: date", base.ErrTruncatedInput)
		}
		v, err := NewDlmsDateFromSlice(tmp[:5])
		if err != nil {
			return data, 0, err
		}
		return DlmsData{Tag: tag, Value: v}, 5, nil
	case TagTime:
		_, err = io.ReadFull(src, tmp[:4])
		if err != nil {
			return data, 0, fmt.Errorf("%w: time", base.ErrTruncatedInput)
		}
		v, err := NewDlmsTimeFromSlice(tmp[:4])
		if err != nil {
			return data, 0, err
		}
		return DlmsData{Tag: tag, Value: v}, 4, nil
	}
	return data, 0, fmt.Errorf("%w: unknown tag %d", base.ErrInvalidTag, tag)
}

func decodeBitString(src io.Reader, tmp *tmpbuffer) (data DlmsData, c int, err error) {
	l, c, err := decodelength(src, tmp)
	if err != nil {
		return data, 0, err
	}
	blen := (l + 7) >> 3
	var raw []byte
	if blen > uint(len(tmp)) {
		raw, err = readOctets(src, blen)
	} else {
		raw = tmp[:blen]
		_, err = io.ReadFull(src, raw)
	}
	if err != nil {
		return data, 0, fmt.Errorf("%w: bitstring of %d bits", base.ErrTruncatedInput, l)
	}
	// the declared bit count is preserved exactly, higher layers (conformance)
	// validate against it
	val := make([]bool, l)
	for i := uint(0); i < l; i++ {
		val[i] = raw[i>>3]&(1<<(7-(i&7))) != 0
	}
	return DlmsData{Tag: TagBitString, Value: val}, c + int(blen), nil
}

func encodeData(out *bytes.Buffer, d *DlmsData) error {
	if d == nil {
		return fmt.Errorf("nil data") // no panic here
	}
	out.WriteByte(byte(d.Tag))
	return encodeDataNoTag(out, d)
}

func encodeDataNoTag(out *bytes.Buffer, d *DlmsData) error {
	switch d.Tag {
	case TagNull, TagDontCare:
	case TagArray:
		return encodeArrayStructure(out, d)
	case TagStructure:
		return encodeArrayStructure(out, d)
	case TagBoolean:
		return encodeInteger(out, d, 1)
	case TagBitString:
		return encodeBitString(out, d)
	case TagDoubleLong:
		return encodeInteger(out, d, 4)
	case TagDoubleLongUnsigned:
		return encodeInteger(out, d, 4)
	case TagFloatingPoint:
		return encodeFloat(out, d, 4)
	case TagOctetString:
		return encodeOctetString(out, d)
	case TagVisibleString:
		return encodeVisibleString(out, d)
	case TagUTF8String:
		return encodeVisibleString(out, d)
	case TagBCD:
		return encodeBCD(out, d)
	case TagInteger:
		return encodeInteger(out, d, 1)
	case TagLong:
		return encodeInteger(out, d, 2)
	case TagUnsigned:
		return encodeInteger(out, d, 1)
	case TagLongUnsigned:
		return encodeInteger(out, d, 2)
	case TagCompactArray:
		return fmt.Errorf("%w: compact array", base.ErrUnsupportedEncoding)
	case TagLong64:
		return encodeInteger(out, d, 8)
	case TagLong64Unsigned:
		return encodeInteger(out, d, 8)
	case TagEnum:
		return encodeInteger(out, d, 1)
	case TagFloat32:
		return encodeFloat(out, d, 4)
	case TagFloat64:
		return encodeFloat(out, d, 8)
	case TagDateTime:
		return encodeDateTime(out, d)
	case TagDate:
		return encodeDate(out, d)
	case TagTime:
		return encodeTimeValue(out, d)
	default:
		return fmt.Errorf("%w: unsupported data tag %d", base.ErrInvalidTag, d.Tag)
	}
	return nil
}

func encodeBCD(out *bytes.Buffer, d *DlmsData) error {
	var lr int64
	switch t := d.Value.(type) {
	case int:
		lr = int64(t)
	case int8:
		lr = int64(t)
	case int16:
		lr = int64(t)
	case int32:
		lr = int64(t)
	case int64:
		lr = t
	default:
		return fmt.Errorf("unsupported data type for BCD: %T", d.Value)
	}
	n := lr
	if n < 0 {
		n = -n
	}
	// the tens digit only has three bits next to the sign, a tens digit of 8
	// or 9 would collide with the sign bit and decode as a different value
	if n > 79 {
		return fmt.Errorf("%w: BCD magnitude %d exceeds 79", base.ErrInvalidFieldValue, n)
	}
	b := byte((n/10)<<4) | byte(n%10)
	if lr < 0 {
		b |= 0x80
	}
	out.WriteByte(b)
	return nil
}

func encodeVisibleString(out *bytes.Buffer, d *DlmsData) error {
	switch t := d.Value.(type) {
	case string:
		EncodeLength(out, uint(len(t)))
		out.WriteString(t)
	case []byte:
		EncodeLength(out, uint(len(t)))
		out.Write(t)
	default:
		return fmt.Errorf("unsupported data type for visible string: %T", d.Value)
	}
	return nil
}

func encodeOctetString(out *bytes.Buffer, d *DlmsData) error {
	switch t := d.Value.(type) {
	case []byte:
		EncodeLength(out, uint(len(t)))
		out.Write(t)
	case DlmsDateTime:
		EncodeLength(out, 12)
		encodedatetime(out, &t)
	case *DlmsDateTime:
		EncodeLength(out, 12)
		encodedatetime(out, t)
	default:
		return fmt.Errorf("unsupported data type for octet string: %T", d.Value)
	}
	return nil
}

func encodeFloat(out *bytes.Buffer, d *DlmsData, size int) error {
	switch size {
	case 4, 8:
	default:
		return fmt.Errorf("strange target float length: %v", size)
	}
	switch t := d.Value.(type) {
	case float32:
		if size == 8 {
			_ = binary.Write(out, binary.BigEndian, float64(t))
		} else {
			_ = binary.Write(out, binary.BigEndian, t)
		}
	case float64:
		if size == 4 {
			_ = binary.Write(out, binary.BigEndian, float32(t))
		} else {
			_ = binary.Write(out, binary.BigEndian, t)
		}
	default:
		return fmt.Errorf("unsupported data type for float: %T", d.Value)
	}
	return nil
}

func encodeBitString(out *bytes.Buffer, d *DlmsData) error {
	var res []byte
	var bitlen int
	switch t := d.Value.(type) {
	case string:
		bitlen = len(t)
		res = make([]byte, (bitlen+7)>>3)
		for i, c := range t {
			switch c {
			case '0':
			case '1':
				res[i>>3] |= 1 << (7 - (i & 7))
			default:
				return fmt.Errorf("%w: invalid character in bitstring: %c", base.ErrInvalidFieldValue, c)
			}
		}
	case []bool:
		bitlen = len(t)
		res = make([]byte, (bitlen+7)>>3)
		for i, c := range t {
			if c {
				res[i>>3] |= 1 << (7 - (i & 7))
			}
		}
	default:
		return fmt.Errorf("unsupported data type for bitstring: %T", d.Value)
	}
	EncodeLength(out, uint(bitlen))
	out.Write(res)
	return nil
}

func encodeInteger(out *bytes.Buffer, d *DlmsData, size int) error {
	var lr uint64
	switch t := d.Value.(type) {
	case bool:
		if t {
			lr = 1
		}
	case uint:
		lr = uint64(t)
	case uint8:
		lr = uint64(t)
	case uint16:
		lr = uint64(t)
	case uint32:
		lr = uint64(t)
	case uint64:
		lr = t
	case int:
		lr = uint64(int64(t)) // sign bits deliberately expanded
	case int8:
		lr = uint64(int64(t))
	case int16:
		lr = uint64(int64(t))
	case int32:
		lr = uint64(int64(t))
	case int64:
		lr = uint64(t)
	default:
		return fmt.Errorf("unsupported data type for number: %T", d.Value)
	}
	switch size {
	case 1:
		out.WriteByte(byte(lr))
	case 2:
		out.WriteByte(byte(lr >> 8))
		out.WriteByte(byte(lr))
	case 4:
		out.WriteByte(byte(lr >> 24))
		out.WriteByte(byte(lr >> 16))
		out.WriteByte(byte(lr >> 8))
		out.WriteByte(byte(lr))
	case 8:
		out.WriteByte(byte(lr >> 56))
		out.WriteByte(byte(lr >> 48))
		out.WriteByte(byte(lr >> 40))
		out.WriteByte(byte(lr >> 32))
		out.WriteByte(byte(lr >> 24))
		out.WriteByte(byte(lr >> 16))
		out.WriteByte(byte(lr >> 8))
		out.WriteByte(byte(lr))
	default:
		return fmt.Errorf("strange target number length: %v", size)
	}
	return nil
}

func encodeArrayStructure(out *bytes.Buffer, d *DlmsData) error {
	if d.Value == nil {
		EncodeLength(out, 0)
		return nil
	}

	switch t := d.Value.(type) {
	case []*DlmsData:
		EncodeLength(out, uint(len(t)))
		for _, v := range t {
			err := encodeData(out, v)
			if err != nil {
				return err
			}
		}
	case []DlmsData:
		EncodeLength(out, uint(len(t)))
		for i := range t {
			err := encodeData(out, &t[i])
			if err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported data type for array/structure: %T", d.Value)
	}
	return nil
}
