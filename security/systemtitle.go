// Package security implements the DLMS security framing layer: the 8-byte
// system title device identity, the monotonic frame counter used for replay
// protection, the single-block AES key derivation function and the
// authenticated encrypted envelope wrapping application pdus.
package security

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/enercore/libcosem-go/base"
)

// SystemTitleLength is fixed by the protocol; every envelope and every key
// derivation input carries exactly this many identity bytes.
const SystemTitleLength = 8

// SystemTitle is the 8-byte device identity. It is immutable once
// constructed and lives for the duration of an association's key epoch.
type SystemTitle [SystemTitleLength]byte

func NewSystemTitle(b [SystemTitleLength]byte) SystemTitle {
	return SystemTitle(b)
}

// NewSystemTitleFromSlice copies src into a SystemTitle. Anything but exactly
// 8 bytes fails.
func NewSystemTitleFromSlice(src []byte) (st SystemTitle, err error) {
	if len(src) != SystemTitleLength {
		return st, fmt.Errorf("%w: system title has to be 8 bytes long, got %d", base.ErrInvalidFieldValue, len(src))
	}
	copy(st[:], src)
	return st, nil
}

// NewSystemTitleForTesting seeds the first 4 bytes from a unix timestamp and
// zero-fills the rest. The constant tail defeats key diversity, so this
// constructor exists for tests only and must never feed production key
// derivation.
func NewSystemTitleForTesting(unixSeconds int64) SystemTitle {
	var st SystemTitle
	binary.BigEndian.PutUint32(st[:4], uint32(unixSeconds))
	return st
}

func (st SystemTitle) Bytes() []byte {
	out := make([]byte, SystemTitleLength)
	copy(out, st[:])
	return out
}

func (st SystemTitle) String() string {
	return hex.EncodeToString(st[:])
}
