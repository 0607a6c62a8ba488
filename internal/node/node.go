// Package node owns the sessions of one process. It routes inbound
// signaling envelopes by session id, creates responder sessions for
// inbound offers and records every ended session.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rudransh-shrivastava/pitshare/internal/logger"
	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/rudransh-shrivastava/pitshare/internal/session"
	"github.com/rudransh-shrivastava/pitshare/internal/store"
	"github.com/rudransh-shrivastava/pitshare/internal/transport"
	"github.com/sirupsen/logrus"
)

const sendTimeout = 10 * time.Second

// EngineFactory creates a fresh peer-connection engine for each session.
type EngineFactory func() (session.Engine, error)

// IncomingFunc decides whether to accept an inbound offer. It runs on its
// own goroutine and may block.
type IncomingFunc func(s *session.Session, meta session.Metadata) bool

type Options struct {
	NewEngine     EngineFactory
	Transfers     session.TransferFactory
	History       store.TransferRepository
	Observer      session.Observer
	Incoming      IncomingFunc
	HashAlgorithm string
	Logger        *logrus.Logger
}

type Node struct {
	newEngine EngineFactory
	transfers session.TransferFactory
	history   store.TransferRepository
	observer  session.Observer
	incoming  IncomingFunc
	algo      string
	logger    *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool
}

func New(opts Options) (*Node, error) {
	if opts.NewEngine == nil || opts.Transfers == nil {
		return nil, errors.New("engine factory and transfer factory are required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewLogger()
	}
	observer := opts.Observer
	if observer == nil {
		observer = session.NopObserver{}
	}
	algo := opts.HashAlgorithm
	if algo == "" {
		algo = protocol.HashAlgoSHA1
	}

	return &Node{
		newEngine: opts.NewEngine,
		transfers: opts.Transfers,
		history:   opts.History,
		observer:  observer,
		incoming:  opts.Incoming,
		algo:      algo,
		logger:    log,
		sessions:  make(map[string]*entry),
	}, nil
}

// Send offers file to the node behind peer and returns the new session.
func (n *Node) Send(peer *transport.Peer, file *session.File) (*session.Session, error) {
	s, err := n.newSession(uuid.NewString(), peer)
	if err != nil {
		return nil, err
	}
	e := n.lookup(s.ID())
	e.setOutgoing(file, n.algo)

	if err := s.Start(file); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	n.logger.Infof("Offered %q (%d bytes) to %s", file.Name, file.Size, peer.RemoteAddr())
	return s, nil
}

// Serve handles envelopes from peer until ctx is cancelled or the
// connection fails. Sessions bound to peer end when Serve returns.
func (n *Node) Serve(ctx context.Context, peer *transport.Peer) error {
	n.logger.Infof("Serving signaling from %s", peer.RemoteAddr())
	defer n.dropPeer(peer)

	for {
		env, err := peer.Receive(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		n.handle(peer, env)
	}
}

func (n *Node) Session(sid string) (*session.Session, bool) {
	e := n.lookup(sid)
	if e == nil {
		return nil, false
	}
	return e.s, true
}

func (n *Node) Sessions() []*session.Session {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*session.Session, 0, len(n.sessions))
	for _, e := range n.sessions {
		out = append(out, e.s)
	}
	return out
}

// Close ends every live session and refuses new ones.
func (n *Node) Close() {
	n.mu.Lock()
	n.closed = true
	live := make([]*session.Session, 0, len(n.sessions))
	for _, e := range n.sessions {
		live = append(live, e.s)
	}
	n.mu.Unlock()

	for _, s := range live {
		s.End(protocol.ReasonGone, false)
	}
}

func (n *Node) newSession(sid string, peer *transport.Peer) (*session.Session, error) {
	engine, err := n.newEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	s, err := session.New(session.Options{
		SID:           sid,
		Peer:          peer.RemoteAddr(),
		Engine:        engine,
		Signaler:      &peerSignaler{peer: peer},
		Transfers:     n.transfers,
		Observer:      &sessionObserver{n: n},
		HashAlgorithm: n.algo,
		Logger:        n.logger,
	})
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		_ = engine.Close()
		return nil, errors.New("node is closed")
	}
	if _, exists := n.sessions[sid]; exists {
		_ = engine.Close()
		return nil, fmt.Errorf("session %s already exists", sid)
	}
	n.sessions[sid] = &entry{s: s, peer: peer, started: time.Now()}
	return s, nil
}

func (n *Node) lookup(sid string) *entry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sessions[sid]
}

// lookupFrom finds sid only if it is bound to peer. Other signaling
// connections cannot reach into it.
func (n *Node) lookupFrom(peer *transport.Peer, sid string) *entry {
	e := n.lookup(sid)
	if e == nil || e.peer != peer {
		return nil
	}
	return e
}

func (n *Node) remove(sid string) *entry {
	n.mu.Lock()
	defer n.mu.Unlock()
	e := n.sessions[sid]
	delete(n.sessions, sid)
	return e
}

func (n *Node) dropPeer(peer *transport.Peer) {
	n.mu.Lock()
	var bound []*session.Session
	for _, e := range n.sessions {
		if e.peer == peer {
			bound = append(bound, e.s)
		}
	}
	n.mu.Unlock()

	for _, s := range bound {
		s.End(protocol.ReasonGone, true)
	}
}

// peerSignaler sends a session's outbound actions over its signaling peer.
type peerSignaler struct {
	peer *transport.Peer
}

func (p *peerSignaler) Send(sid string, action protocol.Action, payload *protocol.Payload) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	return p.peer.Send(ctx, &protocol.Envelope{SID: sid, Action: action, Payload: payload})
}
