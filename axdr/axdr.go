// Package axdr implements the A-XDR value encoding used for COSEM application
// data: the short/long form length prefix, the tag-driven self-describing
// codec for the full COSEM data type universe, and the tag-less positional
// helpers used by fixed-schema pdu fields.
//
// Generic data (register values, method parameters) is always tag-prefixed
// and goes through Decode/Encode. Fields whose type is known from their
// position in a pdu schema are never tag-prefixed and use the typed helpers
// in positional.go instead. Both modes share the same length and byte-order
// conventions and must stay bit-exact with third-party implementations.
package axdr

type DataTag byte

const (
	TagNull               DataTag = 0
	TagArray              DataTag = 1
	TagStructure          DataTag = 2
	TagBoolean            DataTag = 3
	TagBitString          DataTag = 4
	TagDoubleLong         DataTag = 5
	TagDoubleLongUnsigned DataTag = 6
	TagFloatingPoint      DataTag = 7
	TagOctetString        DataTag = 9
	TagVisibleString      DataTag = 10
	TagUTF8String         DataTag = 12
	TagBCD                DataTag = 13
	TagInteger            DataTag = 15
	TagLong               DataTag = 16
	TagUnsigned           DataTag = 17
	TagLongUnsigned       DataTag = 18
	TagCompactArray       DataTag = 19
	TagLong64             DataTag = 20
	TagLong64Unsigned     DataTag = 21
	TagEnum               DataTag = 22
	TagFloat32            DataTag = 23
	TagFloat64            DataTag = 24
	TagDateTime           DataTag = 25
	TagDate               DataTag = 26
	TagTime               DataTag = 27
	TagDontCare           DataTag = 255
)

// DlmsData is one self-describing COSEM value. Value holds the canonical Go
// representation for the tag: nil for Null and DontCare, bool, int8/16/32/64,
// uint8/16/32/64, float32/64, []byte for octet strings, string for
// visible/utf8 strings, []bool for bit strings, []DlmsData for arrays and
// structures and DlmsDate/DlmsTime/DlmsDateTime for the calendar types.
type DlmsData struct {
	Value interface{}
	Tag   DataTag
}

// NewArray builds an array value. The codec does not enforce element
// homogeneity, by convention arrays carry same-typed elements.
func NewArray(items []DlmsData) DlmsData {
	return DlmsData{Tag: TagArray, Value: items}
}

func NewStructure(items []DlmsData) DlmsData {
	return DlmsData{Tag: TagStructure, Value: items}
}

type tmpbuffer [128]byte
