package memory

import (
	"errors"
	"sync"

	"github.com/rudransh-shrivastava/pitshare/internal/async"
	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/rudransh-shrivastava/pitshare/internal/session"
)

var ErrEngineClosed = errors.New("engine closed")

// Engine is one side of an in-process peer connection. The pair connects
// once the initiator has applied the answer.
type Engine struct {
	name string
	peer *Engine

	mu        sync.Mutex
	initiator bool
	signaling session.SignalingState
	local     *protocol.Payload
	channels  []*Channel
	closed    bool

	onCandidate func(*protocol.Payload)
	onState     func(session.TransportState)
	onChannel   func(session.Channel)
}

var _ session.Engine = (*Engine)(nil)

func NewPair() (*Engine, *Engine) {
	a := &Engine{name: "a"}
	b := &Engine{name: "b"}
	a.peer, b.peer = b, a
	return a, b
}

func (e *Engine) description(creator string) *protocol.Payload {
	return &protocol.Payload{Contents: []protocol.Content{{
		Creator:     creator,
		Name:        "data",
		Description: &protocol.Description{DescType: protocol.DescDataChannel},
		Transport:   &protocol.Transport{TransportType: "memory", SDP: "memory:" + e.name},
	}}}
}

func (e *Engine) Offer(session.OfferConstraints) *async.Future[*protocol.Payload] {
	return async.Go(func() (*protocol.Payload, error) {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return nil, ErrEngineClosed
		}
		e.local = e.description("initiator")
		e.signaling = session.SignalingHaveLocalOffer
		local := e.local.Clone()
		e.mu.Unlock()

		e.emitCandidate()
		return local, nil
	})
}

func (e *Engine) HandleOffer(offer *protocol.Payload) *async.Future[struct{}] {
	return async.Go(func() (struct{}, error) {
		if offer.FirstContent() == nil {
			return struct{}{}, errors.New("offer has no content")
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return struct{}{}, ErrEngineClosed
		}
		e.signaling = session.SignalingHaveRemoteOffer
		return struct{}{}, nil
	})
}

func (e *Engine) Answer() *async.Future[*protocol.Payload] {
	return async.Go(func() (*protocol.Payload, error) {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return nil, ErrEngineClosed
		}
		if e.signaling != session.SignalingHaveRemoteOffer {
			e.mu.Unlock()
			return nil, errors.New("no remote offer to answer")
		}
		e.local = e.description("initiator")
		e.signaling = session.SignalingStable
		local := e.local.Clone()
		e.mu.Unlock()

		e.emitCandidate()
		return local, nil
	})
}

func (e *Engine) HandleAnswer(answer *protocol.Payload) *async.Future[struct{}] {
	return async.Go(func() (struct{}, error) {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return struct{}{}, ErrEngineClosed
		}
		if e.signaling != session.SignalingHaveLocalOffer {
			e.mu.Unlock()
			return struct{}{}, errors.New("no local offer for answer")
		}
		e.signaling = session.SignalingStable
		e.mu.Unlock()

		go e.connect()
		return struct{}{}, nil
	})
}

func (e *Engine) ProcessICE(*protocol.Payload) *async.Future[struct{}] {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return async.Resolved(struct{}{}, ErrEngineClosed)
	}
	return async.Resolved(struct{}{}, nil)
}

func (e *Engine) connect() {
	for _, s := range []session.TransportState{session.TransportChecking, session.TransportConnected} {
		e.emitState(s)
		e.peer.emitState(s)
	}

	e.mu.Lock()
	channels := append([]*Channel(nil), e.channels...)
	e.mu.Unlock()

	for _, local := range channels {
		e.peer.mu.Lock()
		fn := e.peer.onChannel
		e.peer.mu.Unlock()
		if fn != nil {
			fn(local.peer)
		}
		local.Open()
	}
}

func (e *Engine) CreateDataChannel(label string) (session.Channel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrEngineClosed
	}
	local, _ := NewChannelPair(label)
	e.channels = append(e.channels, local)
	return local, nil
}

func (e *Engine) LocalDescription() *protocol.Payload {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.Clone()
}

func (e *Engine) SignalingState() session.SignalingState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.signaling
}

func (e *Engine) SetInitiator(initiator bool) {
	e.mu.Lock()
	e.initiator = initiator
	e.mu.Unlock()
}

func (e *Engine) IsInitiator() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initiator
}

func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.signaling = session.SignalingClosed
	channels := e.channels
	e.channels = nil
	e.mu.Unlock()

	for _, ch := range channels {
		_ = ch.Close()
	}
	go e.emitState(session.TransportClosed)
	return nil
}

func (e *Engine) OnCandidate(fn func(*protocol.Payload)) {
	e.mu.Lock()
	e.onCandidate = fn
	e.mu.Unlock()
}

func (e *Engine) OnTransportStateChange(fn func(session.TransportState)) {
	e.mu.Lock()
	e.onState = fn
	e.mu.Unlock()
}

func (e *Engine) OnChannel(fn func(session.Channel)) {
	e.mu.Lock()
	e.onChannel = fn
	e.mu.Unlock()
}

func (e *Engine) emitCandidate() {
	e.mu.Lock()
	fn := e.onCandidate
	e.mu.Unlock()
	if fn == nil {
		return
	}
	fn(&protocol.Payload{Contents: []protocol.Content{{
		Name: "data",
		Transport: &protocol.Transport{
			TransportType: "memory",
			Candidates:    []protocol.Candidate{{Candidate: "candidate:memory " + e.name}},
		},
	}}})
}

func (e *Engine) emitState(s session.TransportState) {
	e.mu.Lock()
	fn := e.onState
	e.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}
