package xdlms

import (
	"go.uber.org/zap"

	"github.com/enercore/libcosem-go/base"
	"github.com/enercore/libcosem-go/security"
)

// maxReceiveFrame matches the wrapper transport's 16-bit length field; any
// frame a conforming peer can send fits.
const maxReceiveFrame = 65535

// SecureChannel glues an association context to a transport stream: every
// outgoing pdu is wrapped in an encrypted envelope before it reaches the
// wire, every incoming frame is unwrapped and replay-checked before the
// caller sees it.
type SecureChannel struct {
	transport base.Stream
	ctx       *Context
	logger    *zap.SugaredLogger
	rxbuf     []byte
}

func NewSecureChannel(transport base.Stream, ctx *Context) *SecureChannel {
	return &SecureChannel{
		transport: transport,
		ctx:       ctx,
		rxbuf:     make([]byte, maxReceiveFrame),
	}
}

// SetReceiveBufferSize shrinks (or grows) the frame buffer for constrained
// associations whose negotiated pdu size makes the default wasteful.
func (s *SecureChannel) SetReceiveBufferSize(n int) {
	if n > 0 {
		s.rxbuf = make([]byte, n)
	}
}

func (s *SecureChannel) SetLogger(logger *zap.SugaredLogger) {
	s.logger = logger
	s.transport.SetLogger(logger)
}

func (s *SecureChannel) logf(format string, v ...any) {
	if s.logger != nil {
		s.logger.Infof(format, v...)
	}
}

func (s *SecureChannel) Open() error {
	return s.transport.Open()
}

func (s *SecureChannel) Close() error {
	return s.transport.Close()
}

func (s *SecureChannel) Disconnect() error {
	return s.transport.Disconnect()
}

func (s *SecureChannel) IsOpen() bool {
	return s.transport.IsOpen()
}

// Send protects pdu under the given key category and writes the resulting
// envelope as one frame.
func (s *SecureChannel) Send(t security.EncryptedPduType, k security.KeyType, pdu []byte) error {
	if !s.transport.IsOpen() {
		return base.ErrNotOpened
	}
	frame, err := s.ctx.Protect(t, k, pdu)
	if err != nil {
		return err
	}
	s.logf("sending %d byte %s envelope, frame counter %d", len(frame), k, s.ctx.SendCounter())
	return s.transport.Write(frame)
}

// Receive reads one frame from the transport and unwraps it. The transport
// contract is one whole frame per Read call.
func (s *SecureChannel) Receive() (security.EncryptedPduType, []byte, error) {
	if !s.transport.IsOpen() {
		return 0, nil, base.ErrNotOpened
	}
	n, err := s.transport.Read(s.rxbuf)
	if err != nil {
		return 0, nil, err
	}
	if n == 0 {
		return 0, nil, base.ErrNothingToRead
	}
	typ, plain, err := s.ctx.Unprotect(s.rxbuf[:n])
	if err != nil {
		return 0, nil, err
	}
	s.logf("received %d byte pdu, type %d", len(plain), typ)
	return typ, plain, nil
}
