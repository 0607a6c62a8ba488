// Package transport carries signaling envelopes between two nodes over a
// length-prefixed TCP stream, optionally wrapped in TLS.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

var ErrClosed = errors.New("transport closed")

const DefaultDialTimeout = 10 * time.Second

type Transport struct {
	ln      *net.TCPListener
	tlsConf *tls.Config

	mu     sync.Mutex
	closed bool
}

// NewTransport listens on addr. A nil tlsConf keeps connections in plain TCP.
func NewTransport(addr string, tlsConf *tls.Config) (*Transport, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &Transport{ln: ln, tlsConf: tlsConf}, nil
}

func (t *Transport) LocalAddr() net.Addr {
	return t.ln.Addr()
}

func (t *Transport) Accept(ctx context.Context) (*Peer, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = t.ln.SetDeadline(time.Now())
	})
	conn, err := t.ln.Accept()
	stop()
	if ctx.Err() != nil {
		_ = t.ln.SetDeadline(time.Time{})
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if t.isClosed() {
			return nil, ErrClosed
		}
		return nil, err
	}

	if t.tlsConf == nil {
		return NewPeer(conn), nil
	}
	tlsConn := tls.Server(conn, t.tlsConf)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("tls handshake failed: %w", err)
	}
	return NewPeer(tlsConn), nil
}

func (t *Transport) Dial(ctx context.Context, addr string) (*Peer, error) {
	if t.isClosed() {
		return nil, ErrClosed
	}
	return Dial(ctx, addr, t.tlsConf)
}

// Dial connects to a listening transport without listening itself.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config) (*Peer, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultDialTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	if tlsConf == nil {
		return NewPeer(conn), nil
	}
	tlsConn := tls.Client(conn, tlsConf)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("tls handshake failed: %w", err)
	}
	return NewPeer(tlsConn), nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.ln.Close()
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
