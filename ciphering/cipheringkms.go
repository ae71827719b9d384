package ciphering

import (
	"context"
	"fmt"
	"slices"

	"github.com/cybroslabs/ouro-api-shared/gen/go/crypto"
	"github.com/cybroslabs/ouro-api-shared/gen/go/services/svccrypto"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"k8s.io/utils/ptr"
)

// CipheringKMS is a Ciphering provider whose key material lives behind the
// remote crypto service; every operation is proxied over a bidirectional
// grpc stream and no key bytes ever reach this process.
type CipheringKMS interface {
	Ciphering
	Dispose()
}

type CipheringKMSSettings struct {
	Logger        *zap.SugaredLogger
	ServiceClient svccrypto.CryproServiceClient
	AccessLevel   string
	SerialNumber  string
	DriverId      string
	ClientTitle   []byte
	Context       context.Context
}

type cipheringkms struct {
	logger        *zap.SugaredLogger
	serviceclient svccrypto.CryproServiceClient
	accessLevel   string
	serialNumber  string
	driverId      string
	clientTitle   []byte
	initdone      bool
	ctx           context.Context
	stream        grpc.BidiStreamingClient[crypto.DlmsIn, crypto.DlmsOut]
	cmdid         uint64
}

// NewCipheringKMS creates the remote provider. Not safe for concurrent use,
// one instance per association.
func NewCipheringKMS(settings *CipheringKMSSettings) (CipheringKMS, error) {
	return &cipheringkms{
		logger:        settings.Logger,
		serviceclient: settings.ServiceClient,
		accessLevel:   settings.AccessLevel,
		serialNumber:  settings.SerialNumber,
		driverId:      settings.DriverId,
		clientTitle:   slices.Clone(settings.ClientTitle),
		ctx:           settings.Context,
	}, nil
}

func (g *cipheringkms) sendcmd(input *crypto.DlmsIn) ([]byte, error) {
	input.SetId(g.cmdid)
	g.cmdid++
	err := g.stream.Send(input)
	if err != nil {
		return nil, err
	}
	out, err := g.stream.Recv()
	if err != nil {
		return nil, err
	}
	if out.GetId() != input.GetId() {
		return nil, fmt.Errorf("id not match %d != %d", out.GetId(), input.GetId())
	}
	if codes.Code(out.GetError().GetCode()) != codes.OK {
		if g.logger != nil {
			g.logger.Errorf("kms error %s", out.GetError().GetMessage())
		}
		return nil, fmt.Errorf("kms error %s", out.GetError().GetMessage())
	}
	return out.GetData(), nil
}

func (g *cipheringkms) init() (err error) {
	if g.initdone {
		return
	}
	g.stream, err = g.serviceclient.Dlms(g.ctx)
	if err != nil {
		return
	}

	_, err = g.sendcmd(crypto.DlmsIn_builder{
		Init: crypto.DlmsInit_builder{
			Encryption:   ptr.To(crypto.AuthenticatedEncryption_AE_AES_GCM_128),
			Signature:    ptr.To(crypto.DigitalSignature_DS_ECDSA_NONE),
			DriverId:     &g.driverId,
			SerialNumber: &g.serialNumber,
			AccessLevel:  &g.accessLevel,
			SystemTitleC: g.clientTitle,
		}.Build(),
	}.Build())
	if err != nil {
		_ = g.stream.CloseSend()
		return
	}
	g.initdone = true
	return
}

func (g *cipheringkms) Setup(serverTitle []byte) (err error) {
	err = g.init()
	if err != nil {
		return
	}

	_, err = g.sendcmd(crypto.DlmsIn_builder{
		Setup: crypto.DlmsSetServerInfo_builder{
			SystemTitleS: serverTitle,
		}.Build(),
	}.Build())
	return
}

func (g *cipheringkms) GetEncryptLength(sc byte, apdu []byte) (int, error) {
	switch sc & 0x30 {
	case 0x10, 0x30:
		return len(apdu) + GcmTagLength, nil
	}
	return 0, fmt.Errorf("security byte %#02x not supported by the kms provider", sc)
}

func (g *cipheringkms) Encrypt(ret []byte, sc byte, fc uint32, apdu []byte) ([]byte, error) {
	err := g.init()
	if err != nil {
		return nil, err
	}

	b, err := g.sendcmd(crypto.DlmsIn_builder{
		Encrypt: crypto.DlmsEncrypt_builder{
			FrameCounter:    &fc,
			SecurityControl: ptr.To(uint32(sc)),
			Data:            apdu,
		}.Build(),
	}.Build())
	if err != nil {
		return nil, err
	}
	if ret != nil && cap(ret) >= len(b) {
		ret = ret[:len(b)]
		copy(ret, b)
		return ret, nil
	}
	return b, nil
}

func (g *cipheringkms) Decrypt(ret []byte, sc byte, fc uint32, apdu []byte) ([]byte, error) {
	err := g.init()
	if err != nil {
		return nil, err
	}

	b, err := g.sendcmd(crypto.DlmsIn_builder{
		Decrypt: crypto.DlmsDecrypt_builder{
			FrameCounter:    &fc,
			SecurityControl: ptr.To(uint32(sc)),
			Data:            apdu,
		}.Build(),
	}.Build())
	if err != nil {
		return nil, err
	}
	if ret != nil && cap(ret) >= len(b) {
		ret = ret[:len(b)]
		copy(ret, b)
		return ret, nil
	}
	return b, nil
}

func (g *cipheringkms) Dispose() {
	if g.initdone {
		_ = g.stream.CloseSend()
	}
}
