package transport

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
)

// Peer is one signaling connection. Send is safe for concurrent use; only
// one goroutine should Receive.
type Peer struct {
	codec *protocol.Codec
	conn  net.Conn
	r     *bufio.Reader

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func NewPeer(conn net.Conn) *Peer {
	return &Peer{
		codec: protocol.NewCodec(),
		conn:  conn,
		r:     bufio.NewReader(conn),
	}
}

func (p *Peer) Send(ctx context.Context, env *protocol.Envelope) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = p.conn.SetWriteDeadline(deadline)
		defer func() { _ = p.conn.SetWriteDeadline(time.Time{}) }()
	}
	return p.codec.Encode(p.conn, env)
}

// Receive blocks for the next envelope. A cancelled ctx interrupts the read
// and may leave a partial frame behind, so the peer should be closed after.
func (p *Peer) Receive(ctx context.Context) (*protocol.Envelope, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = p.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	env, err := p.codec.Decode(p.r)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return env, err
}

func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.conn.Close()
	})
	return p.closeErr
}
