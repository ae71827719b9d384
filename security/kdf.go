package security

import (
	"crypto/aes"
	"fmt"
)

// KeyID selects the purpose of a derived session key.
type KeyID byte

const (
	KeyIDUnicastEncryption   KeyID = 0x01
	KeyIDBroadcastEncryption KeyID = 0x02
	KeyIDAuthentication      KeyID = 0x03
)

// DerivedKeyLength is the size of every session key produced by the KDF, one
// AES block.
const DerivedKeyLength = 16

// DeriveKey derives a 16-byte session key from the master key, the system
// title and a key purpose identifier. The input block is
// title(8) || keyID(1) || 7 zero bytes, encrypted once in ECB mode with the
// master key; the ciphertext block is the derived key. The function is pure:
// identical inputs always produce identical output, and every input byte
// influences the result.
//
// The master key has to be 16, 24 or 32 bytes long (AES-128/192/256).
func DeriveKey(masterKey []byte, title SystemTitle, id KeyID) ([]byte, error) {
	switch len(masterKey) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("master key has to be 16, 24 or 32 bytes long, got %d", len(masterKey))
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}
	var in [DerivedKeyLength]byte
	copy(in[:SystemTitleLength], title[:])
	in[SystemTitleLength] = byte(id)
	out := make([]byte, DerivedKeyLength)
	block.Encrypt(out, in[:])
	return out, nil
}

func DeriveUnicastEncryptionKey(masterKey []byte, title SystemTitle) ([]byte, error) {
	return DeriveKey(masterKey, title, KeyIDUnicastEncryption)
}

func DeriveBroadcastEncryptionKey(masterKey []byte, title SystemTitle) ([]byte, error) {
	return DeriveKey(masterKey, title, KeyIDBroadcastEncryption)
}

func DeriveUnicastAuthenticationKey(masterKey []byte, title SystemTitle) ([]byte, error) {
	return DeriveKey(masterKey, title, KeyIDAuthentication)
}

// DeriveBroadcastAuthenticationKey currently reuses the unicast
// authentication key id. The Green Book key-identifier table may define a
// separate broadcast value; until that is resolved against the standard the
// shared id is kept rather than guessed at.
func DeriveBroadcastAuthenticationKey(masterKey []byte, title SystemTitle) ([]byte, error) {
	return DeriveKey(masterKey, title, KeyIDAuthentication)
}
