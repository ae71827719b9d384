// Package xdlms implements the per-association secured application layer:
// the initiate negotiation pdus with the 24-bit conformance block, and the
// association context holding both system titles, the send/receive frame
// counters and the cached derived session keys.
package xdlms

import (
	"fmt"

	"github.com/enercore/libcosem-go/base"
)

// ConformanceBits is the exact width of the conformance block; bit strings
// of any other length are invalid where a conformance is expected.
const ConformanceBits = 24

// Conformance is the 24-bit capability set exchanged during initiate
// negotiation. The underlying value uses the bit constants from the base
// package (bit 0 of the wire bit string is ConformanceBlockReservedZero).
type Conformance uint32

// NewConformance returns an empty conformance block.
func NewConformance() Conformance {
	return 0
}

func NewConformanceFromValue(v uint32) Conformance {
	return Conformance(v & 0xffffff)
}

// NewConformanceFromBits builds a conformance from a decoded bit string.
// Exactly 24 bits are required.
func NewConformanceFromBits(bits []bool) (Conformance, error) {
	if len(bits) != ConformanceBits {
		return 0, fmt.Errorf("%w: conformance needs exactly %d bits, got %d", base.ErrInvalidFieldValue, ConformanceBits, len(bits))
	}
	var v uint32
	for _, b := range bits {
		v <<= 1
		if b {
			v |= 1
		}
	}
	return Conformance(v), nil
}

func (c Conformance) Value() uint32 {
	return uint32(c)
}

// Bits returns the block as a 24-entry bit string, most significant bit
// first, for A-XDR bit string interop.
func (c Conformance) Bits() []bool {
	out := make([]bool, ConformanceBits)
	for i := range out {
		out[i] = c&(1<<(ConformanceBits-1-i)) != 0
	}
	return out
}

func (c Conformance) Has(flag uint32) bool {
	return uint32(c)&flag == flag
}

func (c Conformance) With(flag uint32) Conformance {
	return NewConformanceFromValue(uint32(c) | flag)
}

// Intersect applies the negotiation policy: the server picks the bitwise
// intersection of the client proposal and its own support.
func (c Conformance) Intersect(other Conformance) Conformance {
	return c & other
}
