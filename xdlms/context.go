package xdlms

import (
	"bytes"
	"fmt"
	"math"
	"sync"

	"github.com/enercore/libcosem-go/base"
	"github.com/enercore/libcosem-go/ciphering"
	"github.com/enercore/libcosem-go/security"
)

// DerivedKeys caches the session keys derived once per master key and system
// title, so the per-frame path never reruns the KDF.
type DerivedKeys struct {
	UnicastEncryption   []byte
	BroadcastEncryption []byte
	Authentication      []byte
}

// ContextSettings configures an association context. Security selects the
// protection class of outgoing frames and has to include authentication,
// because the envelope always carries an authentication tag.
type ContextSettings struct {
	ClientSystemTitle   security.SystemTitle
	ServerSystemTitle   security.SystemTitle
	MasterKey           []byte
	Security            base.DlmsSecurity
	InitialFrameCounter uint32
}

func (s *ContextSettings) validate() error {
	switch len(s.MasterKey) {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: master key has to be 16, 24 or 32 bytes long, got %d", base.ErrInvalidFieldValue, len(s.MasterKey))
	}
	switch s.Security {
	case base.SecurityAuthentication, base.SecurityAuthentication | base.SecurityEncryption:
	default:
		return fmt.Errorf("%w: security %#02x, envelope needs an authenticated class", base.ErrInvalidFieldValue, byte(s.Security))
	}
	return nil
}

// Context holds the secured-association state: both system titles, the
// outgoing frame counter, the receive window and the ciphers keyed with the
// derived (and optionally dedicated) session keys. All methods are safe for
// concurrent use; the outgoing counter only advances when the whole frame was
// produced successfully.
type Context struct {
	mu          sync.Mutex
	clientTitle security.SystemTitle
	serverTitle security.SystemTitle
	sec         base.DlmsSecurity
	keys        DerivedKeys
	global      ciphering.Ciphering
	dedicated   ciphering.Ciphering
	send        *security.FrameCounter
	recv        *security.ReceiveWindow
}

// NewContext derives the session keys eagerly and builds the global cipher.
// A bad master key surfaces here, not on the first frame.
func NewContext(settings *ContextSettings) (*Context, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	c := &Context{
		clientTitle: settings.ClientSystemTitle,
		serverTitle: settings.ServerSystemTitle,
		sec:         settings.Security,
		send:        security.NewFrameCounter(settings.InitialFrameCounter),
		recv:        &security.ReceiveWindow{},
	}
	if err := c.rekey(settings.MasterKey); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Context) rekey(masterKey []byte) error {
	var keys DerivedKeys
	var err error
	if keys.UnicastEncryption, err = security.DeriveUnicastEncryptionKey(masterKey, c.clientTitle); err != nil {
		return err
	}
	if keys.BroadcastEncryption, err = security.DeriveBroadcastEncryptionKey(masterKey, c.clientTitle); err != nil {
		return err
	}
	if keys.Authentication, err = security.DeriveUnicastAuthenticationKey(masterKey, c.clientTitle); err != nil {
		return err
	}
	global, err := ciphering.NewCiphering(keys.UnicastEncryption, keys.Authentication, c.clientTitle)
	if err != nil {
		return err
	}
	if err = global.Setup(c.serverTitle.Bytes()); err != nil {
		return err
	}
	c.keys = keys
	c.global = global
	return nil
}

// SetMasterKey replaces the master key and rederives every cached session
// key. The frame counters are left alone; re-keying mid-association keeps the
// counter monotonic.
func (c *Context) SetMasterKey(masterKey []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rekey(masterKey)
}

// SetDedicatedKey installs the per-association dedicated key negotiated via
// the initiate request. The dedicated cipher shares the derived
// authentication key.
func (c *Context) SetDedicatedKey(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ded, err := ciphering.NewCiphering(key, c.keys.Authentication, c.clientTitle)
	if err != nil {
		return err
	}
	if err = ded.Setup(c.serverTitle.Bytes()); err != nil {
		return err
	}
	c.dedicated = ded
	return nil
}

// Keys returns the cached derived session keys.
func (c *Context) Keys() DerivedKeys {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys
}

func (c *Context) SendCounter() uint32 {
	return c.send.Get()
}

func (c *Context) LastReceived() uint32 {
	return c.recv.Last()
}

func (c *Context) cipherFor(k security.KeyType) (ciphering.Ciphering, error) {
	if k == security.KeyDedicated {
		if c.dedicated == nil {
			return nil, fmt.Errorf("%w: no dedicated key installed", base.ErrKeySelectorMismatch)
		}
		return c.dedicated, nil
	}
	return c.global, nil
}

// Protect encrypts plaintext and wraps it into an encrypted envelope. The
// send counter is claimed up front but only committed after the cipher
// succeeded, so a failed frame never burns a counter value. When the counter
// would wrap, the key epoch is exhausted and the caller has to re-key.
func (c *Context) Protect(t security.EncryptedPduType, k security.KeyType, plaintext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cph, err := c.cipherFor(k)
	if err != nil {
		return nil, err
	}
	if c.send.Get() == math.MaxUint32 {
		return nil, fmt.Errorf("%w: frame counter at %d", base.ErrKeyEpochExhausted, uint32(math.MaxUint32))
	}
	fc := c.send.Get() + 1
	sealed, err := cph.Encrypt(nil, byte(c.sec), fc, plaintext)
	if err != nil {
		return nil, err
	}
	cut := len(sealed) - security.AuthenticationTagLength
	var tag [security.AuthenticationTagLength]byte
	copy(tag[:], sealed[cut:])
	var frame []byte
	if k == security.KeyDedicated {
		p := security.NewDedicatedEncryptedPdu(t, c.clientTitle, fc, sealed[:cut], tag)
		frame = p.Encode()
	} else {
		p := security.NewGlobalEncryptedPdu(t, c.clientTitle, fc, sealed[:cut], tag)
		frame = p.Encode()
	}
	c.send.Set(fc)
	return frame, nil
}

// Unprotect decodes and decrypts an encrypted envelope from the peer. The
// system title has to match the configured server title and the frame counter
// has to strictly increase; the receive window only advances after the
// authentication tag verified, so a forged frame cannot move it.
func (c *Context) Unprotect(frame []byte) (security.EncryptedPduType, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pdu, err := security.DecodeEncryptedPdu(frame)
	if err != nil {
		return 0, nil, err
	}
	kt, typ, title, fc, ciphertext, tag := pdu.Fields()
	if !bytes.Equal(title[:], c.serverTitle[:]) {
		return 0, nil, fmt.Errorf("%w: envelope from %s, expected %s", base.ErrInvalidFieldValue, title.String(), c.serverTitle.String())
	}
	if !c.recv.Fresh(fc) {
		return 0, nil, fmt.Errorf("%w: replayed frame counter %d", base.ErrInvalidFieldValue, fc)
	}
	cph, err := c.cipherFor(kt)
	if err != nil {
		return 0, nil, err
	}
	apdu := make([]byte, len(ciphertext)+security.AuthenticationTagLength)
	copy(apdu, ciphertext)
	copy(apdu[len(ciphertext):], tag[:])
	plain, err := cph.Decrypt(nil, byte(c.sec), fc, apdu)
	if err != nil {
		return 0, nil, err
	}
	if err = c.recv.Accept(fc); err != nil {
		return 0, nil, err
	}
	return typ, plain, nil
}
