// Package ciphering provides the symmetric cipher providers consumed by the
// secured-pdu layer: a software AES-GCM/GMAC suite-0 implementation keyed
// with derived session keys, and a remote KMS-backed provider for
// deployments where key material never leaves an HSM service.
//
// The initialization vector is always SystemTitle || FrameCounter (12 bytes)
// and authentication tags are 12 bytes, per standard DLMS practice. The
// security byte selects the protection class: 0x10 authentication only
// (GMAC), 0x20 encryption only, 0x30 authenticated encryption.
package ciphering

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/enercore/libcosem-go/base"
	"github.com/enercore/libcosem-go/security"
)

const (
	AesBlockSize = 16
	GcmTagLength = security.AuthenticationTagLength
)

// Ciphering is the boundary to a symmetric cipher provider. Encrypt and
// Decrypt take the raw security byte, the frame counter forming the IV tail
// and the apdu payload; for the authenticated classes the apdu on the
// decrypt side carries the ciphertext followed by the 12-byte tag. The ret
// slice is reused when large enough, exactly like the transport buffers.
type Ciphering interface {
	Setup(serverTitle []byte) error
	GetEncryptLength(sc byte, apdu []byte) (int, error)
	Encrypt(ret []byte, sc byte, fc uint32, apdu []byte) ([]byte, error)
	Decrypt(ret []byte, sc byte, fc uint32, apdu []byte) ([]byte, error)
}

type ciphering struct {
	aes         cipher.Block
	gcm         cipher.AEAD
	ak          []byte
	clientTitle security.SystemTitle
	serverTitle security.SystemTitle
	serverSet   bool
}

// NewCiphering creates the software suite-0 provider. The encryption key has
// to be 16, 24 or 32 bytes long, the authentication key as well when
// present. The client title seeds the IV of outgoing frames; Setup provides
// the server title for incoming ones.
func NewCiphering(ek []byte, ak []byte, clientTitle security.SystemTitle) (Ciphering, error) {
	switch len(ek) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("EK has to be 16, 24 or 32 bytes long")
	}
	if ak != nil {
		switch len(ak) {
		case 16, 24, 32:
		default:
			return nil, fmt.Errorf("AK has to be 16, 24 or 32 bytes long")
		}
	}
	block, err := aes.NewCipher(ek)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithTagSize(block, GcmTagLength)
	if err != nil {
		return nil, err
	}
	g := &ciphering{
		aes:         block,
		gcm:         aead,
		ak:          bytes.Clone(ak),
		clientTitle: clientTitle,
	}
	return g, nil
}

func (g *ciphering) Setup(serverTitle []byte) error {
	st, err := security.NewSystemTitleFromSlice(serverTitle)
	if err != nil {
		return err
	}
	g.serverTitle = st
	g.serverSet = true
	return nil
}

func (g *ciphering) GetEncryptLength(sc byte, apdu []byte) (int, error) {
	switch sc & 0x30 {
	case 0x10, 0x30:
		return len(apdu) + GcmTagLength, nil
	case 0x20:
		return len(apdu), nil
	}
	return 0, fmt.Errorf("unsupported security byte: %#02x", sc)
}

func nonce(title security.SystemTitle, fc uint32) []byte {
	iv := make([]byte, 12)
	copy(iv, title[:])
	binary.BigEndian.PutUint32(iv[8:], fc)
	return iv
}

// aad builds the additional authenticated data: security byte, then the
// authentication key, then (for the authentication-only class) the plaintext
// itself.
func (g *ciphering) aad(sc byte, plain []byte) []byte {
	out := make([]byte, 1+len(g.ak)+len(plain))
	out[0] = sc
	copy(out[1:], g.ak)
	copy(out[1+len(g.ak):], plain)
	return out
}

// ctrStream yields the same keystream GCM would use for payload blocks: the
// counter starts at IV || 2 because IV || 1 is reserved for the tag.
func (g *ciphering) ctrStream(title security.SystemTitle, fc uint32) cipher.Stream {
	iv := make([]byte, AesBlockSize)
	copy(iv, title[:])
	binary.BigEndian.PutUint32(iv[8:], fc)
	iv[15] = 2
	return cipher.NewCTR(g.aes, iv)
}

func reuse(ret []byte, n int) []byte {
	if ret != nil && cap(ret) >= n {
		return ret[:n]
	}
	return make([]byte, n)
}

func (g *ciphering) Encrypt(ret []byte, sc byte, fc uint32, apdu []byte) ([]byte, error) {
	if apdu == nil {
		return nil, fmt.Errorf("apdu is nil")
	}
	wl, err := g.GetEncryptLength(sc, apdu)
	if err != nil {
		return nil, err
	}
	iv := nonce(g.clientTitle, fc)
	switch sc & 0x30 {
	case 0x10:
		ret = reuse(ret, wl)
		tag := g.gcm.Seal(nil, iv, nil, g.aad(sc, apdu))
		copy(ret, apdu)
		copy(ret[len(apdu):], tag)
		return ret, nil
	case 0x20:
		ret = reuse(ret, wl)
		g.ctrStream(g.clientTitle, fc).XORKeyStream(ret, apdu)
		return ret, nil
	case 0x30:
		ret = reuse(ret, wl)
		g.gcm.Seal(ret[:0], iv, apdu, g.aad(sc, nil))
		return ret, nil
	}
	return nil, fmt.Errorf("unsupported security byte: %#02x", sc)
}

func (g *ciphering) Decrypt(ret []byte, sc byte, fc uint32, apdu []byte) ([]byte, error) {
	if apdu == nil {
		return nil, fmt.Errorf("apdu is nil")
	}
	if !g.serverSet {
		return nil, fmt.Errorf("%w: server system title not set", base.ErrNotOpened)
	}
	iv := nonce(g.serverTitle, fc)
	switch sc & 0x30 {
	case 0x10:
		if len(apdu) < GcmTagLength {
			return nil, fmt.Errorf("%w: no space for authentication tag", base.ErrTruncatedInput)
		}
		wl := len(apdu) - GcmTagLength
		if _, err := g.gcm.Open(nil, iv, apdu[wl:], g.aad(sc, apdu[:wl])); err != nil {
			return nil, fmt.Errorf("authentication tag mismatch: %w", err)
		}
		ret = reuse(ret, wl)
		copy(ret, apdu[:wl])
		return ret, nil
	case 0x20:
		ret = reuse(ret, len(apdu))
		g.ctrStreamServer(fc).XORKeyStream(ret, apdu)
		return ret, nil
	case 0x30:
		if len(apdu) < GcmTagLength {
			return nil, fmt.Errorf("%w: no space for authentication tag", base.ErrTruncatedInput)
		}
		wl := len(apdu) - GcmTagLength
		ret = reuse(ret, wl)
		if _, err := g.gcm.Open(ret[:0], iv, apdu, g.aad(sc, nil)); err != nil {
			return nil, fmt.Errorf("authentication tag mismatch: %w", err)
		}
		return ret, nil
	}
	return nil, fmt.Errorf("unsupported security byte: %#02x", sc)
}

func (g *ciphering) ctrStreamServer(fc uint32) cipher.Stream {
	return g.ctrStream(g.serverTitle, fc)
}
