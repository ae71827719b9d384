// Package tcp dials a meter over plain TCP. It is a raw byte stream: framing
// comes from the wrapper layer stacked on top of it, so Read here returns
// whatever the socket currently has.
package tcp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/enercore/libcosem-go/base"
)

type tcp struct {
	hostname string
	port     int
	logger   *zap.SugaredLogger
	timeout  time.Duration
	conn     net.Conn
	deadline time.Time
	incoming int64
	maxin    int64
}

// New creates a TCP byte stream for the given meter endpoint. The timeout
// bounds both the dial and every single read or write.
func New(hostname string, port int, timeout time.Duration) base.Stream {
	return &tcp{
		hostname: hostname,
		port:     port,
		timeout:  timeout,
	}
}

func (t *tcp) logf(format string, v ...any) {
	if t.logger != nil {
		t.logger.Infof(format, v...)
	}
}

func (t *tcp) Close() error {
	return nil // nothing to release on a bare socket, the association lives above
}

func (t *tcp) Open() error {
	if t.conn != nil {
		return nil
	}
	address := net.JoinHostPort(t.hostname, strconv.Itoa(t.port))
	conn, err := net.DialTimeout("tcp", address, t.timeout)
	if err != nil {
		t.logf("connect to %s failed: %v", address, err)
		return fmt.Errorf("connect failed: %w", err)
	}
	t.logf("connected to %s", address)
	t.conn = conn
	return nil
}

func (t *tcp) Disconnect() error {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
		t.logf("disconnected from %s", t.hostname)
	}
	return nil
}

func (t *tcp) IsOpen() bool {
	return t.conn != nil
}

func (t *tcp) SetMaxReceivedBytes(m int64) {
	t.incoming = 0
	t.maxin = m
}

func (t *tcp) SetDeadline(d time.Time) {
	t.deadline = d
}

func (t *tcp) SetLogger(logger *zap.SugaredLogger) {
	t.logger = logger
}

// setcommdeadline applies the shorter of the per-operation timeout and the
// caller-provided absolute deadline.
func (t *tcp) setcommdeadline() {
	cd := time.Now().Add(t.timeout)
	if !t.deadline.IsZero() && t.deadline.Before(cd) {
		cd = t.deadline
	}
	_ = t.conn.SetDeadline(cd)
}

func (t *tcp) Write(src []byte) error {
	if t.conn == nil {
		return base.ErrNotOpened
	}
	for len(src) > 0 {
		t.setcommdeadline()
		n, err := t.conn.Write(src)
		if err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
		if t.logger != nil {
			t.logger.Debugf("TX (%s): %6d bytes", t.hostname, n)
		}
		src = src[n:]
	}
	return nil
}

func (t *tcp) Read(p []byte) (n int, err error) {
	if t.conn == nil {
		return 0, base.ErrNotOpened
	}
	if len(p) == 0 {
		return 0, base.ErrNothingToRead
	}
	t.setcommdeadline()
	n, err = t.conn.Read(p)
	t.incoming += int64(n)
	if t.maxin > 0 && t.incoming > t.maxin {
		return 0, fmt.Errorf("received more than allowed %d bytes", t.maxin)
	}
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return 0, fmt.Errorf("%w: %v", base.ErrCommunicationTimeout, err)
		}
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	if t.logger != nil {
		t.logger.Debugf("RX (%s): %6d bytes", t.hostname, n)
	}
	return n, nil
}
