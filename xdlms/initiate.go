package xdlms

import (
	"bytes"
	"fmt"
	"io"

	"k8s.io/utils/ptr"

	"github.com/enercore/libcosem-go/axdr"
	"github.com/enercore/libcosem-go/base"
)

// Conformance block wire prefix: application tag 31, length 4, no unused
// bits in the 24-bit string.
var conformanceHeader = []byte{0x5f, 0x1f, 0x04, 0x00}

// InitiateRequest is the client half of the xDLMS context negotiation. The
// dedicated key travels inside an already-encrypted envelope, never in the
// clear. ResponseAllowed defaults to true and is omitted from the wire in
// that case.
type InitiateRequest struct {
	DedicatedKey              []byte
	ResponseAllowed           bool
	ProposedQualityOfService  *int8
	ProposedDlmsVersionNumber uint8
	ProposedConformance       Conformance
	ClientMaxReceivePduSize   uint16
}

// NewInitiateRequest builds a request with the current protocol version, no
// dedicated key and no quality-of-service proposal.
func NewInitiateRequest(conformance Conformance, maxReceivePduSize uint16) *InitiateRequest {
	return &InitiateRequest{
		ResponseAllowed:           true,
		ProposedDlmsVersionNumber: base.DlmsVersion,
		ProposedConformance:       conformance,
		ClientMaxReceivePduSize:   maxReceivePduSize,
	}
}

func (r *InitiateRequest) Encode() ([]byte, error) {
	if len(r.DedicatedKey) > 0 && len(r.DedicatedKey) != 16 && len(r.DedicatedKey) != 24 && len(r.DedicatedKey) != 32 {
		return nil, fmt.Errorf("%w: dedicated key has to be 16, 24 or 32 bytes long, got %d", base.ErrInvalidFieldValue, len(r.DedicatedKey))
	}
	var out bytes.Buffer
	out.WriteByte(byte(base.TagInitiateRequest))
	axdr.EncodeOptional(&out, len(r.DedicatedKey) > 0, func(dst *bytes.Buffer) {
		axdr.EncodeLength(dst, uint(len(r.DedicatedKey)))
		dst.Write(r.DedicatedKey)
	})
	// response-allowed is DEFAULT TRUE, the explicit value only appears on
	// the wire when it deviates.
	axdr.EncodeOptional(&out, !r.ResponseAllowed, func(dst *bytes.Buffer) {
		dst.WriteByte(0x00)
	})
	axdr.EncodeOptional(&out, r.ProposedQualityOfService != nil, func(dst *bytes.Buffer) {
		axdr.EncodeInteger8(dst, *r.ProposedQualityOfService)
	})
	axdr.EncodeUnsigned8(&out, r.ProposedDlmsVersionNumber)
	encodeConformance(&out, r.ProposedConformance)
	axdr.EncodeUnsigned16(&out, r.ClientMaxReceivePduSize)
	return out.Bytes(), nil
}

// DecodeInitiateRequest parses a request pdu, reporting the number of bytes
// consumed so the caller can detect trailing garbage.
func DecodeInitiateRequest(src []byte) (r InitiateRequest, c int, err error) {
	rd := bytes.NewReader(src)
	tag, err := axdr.DecodeUnsigned8(rd)
	if err != nil {
		return r, 0, err
	}
	if tag != byte(base.TagInitiateRequest) {
		return r, 0, fmt.Errorf("%w: expected initiate request tag, got %#02x", base.ErrInvalidTag, tag)
	}
	if _, err = axdr.DecodeOptional(rd, func(v io.Reader) error {
		l, _, err := axdr.DecodeLength(v)
		if err != nil {
			return err
		}
		switch l {
		case 16, 24, 32:
		default:
			return fmt.Errorf("%w: dedicated key has to be 16, 24 or 32 bytes long, got %d", base.ErrInvalidFieldValue, l)
		}
		r.DedicatedKey = make([]byte, l)
		if _, err := io.ReadFull(v, r.DedicatedKey); err != nil {
			return fmt.Errorf("%w: dedicated key", base.ErrTruncatedInput)
		}
		return nil
	}); err != nil {
		return r, 0, err
	}
	r.ResponseAllowed = true
	if _, err = axdr.DecodeOptional(rd, func(v io.Reader) error {
		b, err := axdr.DecodeUnsigned8(v)
		if err != nil {
			return err
		}
		r.ResponseAllowed = b != 0
		return nil
	}); err != nil {
		return r, 0, err
	}
	if _, err = axdr.DecodeOptional(rd, func(v io.Reader) error {
		q, err := axdr.DecodeInteger8(v)
		if err != nil {
			return err
		}
		r.ProposedQualityOfService = ptr.To(q)
		return nil
	}); err != nil {
		return r, 0, err
	}
	if r.ProposedDlmsVersionNumber, err = axdr.DecodeUnsigned8(rd); err != nil {
		return r, 0, err
	}
	if r.ProposedConformance, err = decodeConformance(rd); err != nil {
		return r, 0, err
	}
	if r.ClientMaxReceivePduSize, err = axdr.DecodeUnsigned16(rd); err != nil {
		return r, 0, err
	}
	return r, len(src) - rd.Len(), nil
}

// InitiateResponse is the server half of the negotiation, carrying the final
// agreed parameters.
type InitiateResponse struct {
	NegotiatedQualityOfService *int8
	NegotiatedDlmsVersion      uint8
	NegotiatedConformance      Conformance
	ServerMaxReceivePduSize    uint16
	VAAName                    int16
}

func (r *InitiateResponse) Encode() ([]byte, error) {
	var out bytes.Buffer
	out.WriteByte(byte(base.TagInitiateResponse))
	axdr.EncodeOptional(&out, r.NegotiatedQualityOfService != nil, func(dst *bytes.Buffer) {
		axdr.EncodeInteger8(dst, *r.NegotiatedQualityOfService)
	})
	axdr.EncodeUnsigned8(&out, r.NegotiatedDlmsVersion)
	encodeConformance(&out, r.NegotiatedConformance)
	axdr.EncodeUnsigned16(&out, r.ServerMaxReceivePduSize)
	axdr.EncodeInteger16(&out, r.VAAName)
	return out.Bytes(), nil
}

func DecodeInitiateResponse(src []byte) (r InitiateResponse, c int, err error) {
	rd := bytes.NewReader(src)
	tag, err := axdr.DecodeUnsigned8(rd)
	if err != nil {
		return r, 0, err
	}
	if tag != byte(base.TagInitiateResponse) {
		return r, 0, fmt.Errorf("%w: expected initiate response tag, got %#02x", base.ErrInvalidTag, tag)
	}
	if _, err = axdr.DecodeOptional(rd, func(v io.Reader) error {
		q, err := axdr.DecodeInteger8(v)
		if err != nil {
			return err
		}
		r.NegotiatedQualityOfService = ptr.To(q)
		return nil
	}); err != nil {
		return r, 0, err
	}
	if r.NegotiatedDlmsVersion, err = axdr.DecodeUnsigned8(rd); err != nil {
		return r, 0, err
	}
	if r.NegotiatedConformance, err = decodeConformance(rd); err != nil {
		return r, 0, err
	}
	if r.ServerMaxReceivePduSize, err = axdr.DecodeUnsigned16(rd); err != nil {
		return r, 0, err
	}
	if r.VAAName, err = axdr.DecodeInteger16(rd); err != nil {
		return r, 0, err
	}
	return r, len(src) - rd.Len(), nil
}

func encodeConformance(dst *bytes.Buffer, c Conformance) {
	dst.Write(conformanceHeader)
	v := c.Value()
	dst.WriteByte(byte(v >> 16))
	dst.WriteByte(byte(v >> 8))
	dst.WriteByte(byte(v))
}

func decodeConformance(src io.Reader) (Conformance, error) {
	var b [7]byte
	if _, err := io.ReadFull(src, b[:]); err != nil {
		return 0, fmt.Errorf("%w: conformance block", base.ErrTruncatedInput)
	}
	if !bytes.Equal(b[:4], conformanceHeader) {
		return 0, fmt.Errorf("%w: conformance block header % 02x", base.ErrInvalidFieldValue, b[:4])
	}
	return NewConformanceFromValue(uint32(b[4])<<16 | uint32(b[5])<<8 | uint32(b[6])), nil
}

// Negotiate computes the server answer to a client proposal: versions and
// pdu sizes floor to the smaller side, the conformance block intersects, and
// the quality of service echoes the proposal when the server can honor it.
func Negotiate(req *InitiateRequest, serverVersion uint8, serverConformance Conformance, serverMaxPduSize uint16) InitiateResponse {
	resp := InitiateResponse{
		NegotiatedDlmsVersion:   min(req.ProposedDlmsVersionNumber, serverVersion),
		NegotiatedConformance:   req.ProposedConformance.Intersect(serverConformance),
		ServerMaxReceivePduSize: min(req.ClientMaxReceivePduSize, serverMaxPduSize),
		VAAName:                 base.VAANameLN,
	}
	if req.ProposedQualityOfService != nil {
		resp.NegotiatedQualityOfService = ptr.To(*req.ProposedQualityOfService)
	}
	return resp
}
