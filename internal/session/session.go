// Package session implements the lifecycle of one negotiated file transfer:
// negotiation, candidate relay, transfer wiring and the integrity decision.
package session

import (
	"errors"
	"fmt"

	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/sirupsen/logrus"
)

type Options struct {
	SID       string
	Peer      string
	Engine    Engine
	Signaler  Signaler
	Transfers TransferFactory
	Observer  Observer
	// HashAlgorithm is declared in outbound offers. Defaults to sha-1.
	HashAlgorithm string
	Logger        *logrus.Logger
}

type Session struct {
	base

	loop      loop
	engine    Engine
	transfers TransferFactory
	observer  Observer
	algo      string

	negotiator *negotiator
	ice        *iceRelay
	transfer   *transferController

	connState ConnectionState
}

func New(opts Options) (*Session, error) {
	if opts.SID == "" {
		return nil, errors.New("session id is required")
	}
	if opts.Engine == nil || opts.Signaler == nil || opts.Transfers == nil {
		return nil, errors.New("engine, signaler and transfer factory are required")
	}

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	algo := opts.HashAlgorithm
	if algo == "" {
		algo = protocol.HashAlgoSHA1
	}

	s := &Session{
		base:      newBase(opts.SID, opts.Peer, opts.Signaler, log),
		engine:    opts.Engine,
		transfers: opts.Transfers,
		observer:  observer,
		algo:      algo,
	}
	s.negotiator = &negotiator{s: s}
	s.ice = &iceRelay{s: s}
	s.transfer = &transferController{s: s}

	s.engine.OnCandidate(func(info *protocol.Payload) {
		s.loop.post(func() { s.ice.localCandidate(info) })
	})
	s.engine.OnTransportStateChange(func(ts TransportState) {
		s.loop.post(func() { s.onTransportState(ts) })
	})
	s.engine.OnChannel(func(ch Channel) {
		s.loop.post(func() { s.transfer.channelAdded(ch) })
	})

	return s, nil
}

func (s *Session) ID() string {
	return s.sid
}

func (s *Session) Peer() string {
	return s.peer
}

func (s *Session) Role() Role {
	return s.currentRole()
}

func (s *Session) State() State {
	return s.currentState()
}

func (s *Session) ConnectionState() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connState
}

// EndReason is empty until the session has ended.
func (s *Session) EndReason() protocol.Reason {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Metadata returns the receiving side's view of the file.
func (s *Session) Metadata() (Metadata, bool) {
	var (
		meta Metadata
		ok   bool
	)
	s.loop.run(func() {
		if r := s.transfer.receiver; r != nil {
			meta, ok = r.meta, true
			if r.meta.Computed != nil {
				computed := *r.meta.Computed
				meta.Computed = &computed
			}
		}
	})
	return meta, ok
}

// Start offers file to the peer. Bytes flow once the data channel opens.
func (s *Session) Start(file *File) error {
	var err error
	s.loop.run(func() { err = s.start(file) })
	return err
}

func (s *Session) start(file *File) error {
	if file == nil {
		return errors.New("file is required")
	}
	switch s.currentState() {
	case StateNew:
	case StateEnded:
		return ErrEnded
	default:
		return fmt.Errorf("start in state %s: %w", s.currentState(), ErrInvalidState)
	}

	s.setRole(RoleInitiator)
	s.advance(StatePending)
	s.engine.SetInitiator(true)

	if err := s.transfer.prepareSend(file); err != nil {
		s.end(protocol.ReasonFailedApplication, true)
		return err
	}
	s.negotiator.offer(file)
	return nil
}

// Accept answers a pending inbound offer.
func (s *Session) Accept() error {
	var err error
	s.loop.run(func() { err = s.accept() })
	return err
}

func (s *Session) accept() error {
	state := s.currentState()
	if state == StateEnded {
		return ErrEnded
	}
	if state != StatePending || s.currentRole() != RoleResponder {
		return fmt.Errorf("accept as %s in state %s: %w", s.currentRole(), state, ErrInvalidState)
	}
	s.advance(StateActive)
	s.negotiator.accept()
	return nil
}

// End terminates the session. Only the first call has any effect; the peer
// is told why unless silent is set.
func (s *Session) End(reason protocol.Reason, silent bool) {
	s.loop.run(func() { s.end(reason, silent) })
}

func (s *Session) end(reason protocol.Reason, silent bool) {
	if s.ended() {
		return
	}
	if err := s.engine.Close(); err != nil {
		s.log.Debugf("Failed to close engine: %v", err)
	}
	s.transfer.abort()
	if !s.terminate(reason, silent) {
		return
	}
	s.loop.notify(func() { s.observer.Ended(s, reason) })
}

// Dispatch applies an inbound action. done is called exactly once, outside
// the session's loop, with nil or a *protocol.Error.
func (s *Session) Dispatch(action protocol.Action, payload *protocol.Payload, done func(error)) {
	reply := func(err error) {
		if done != nil {
			s.loop.notify(func() { done(err) })
		}
	}
	s.loop.post(func() { s.dispatch(action, payload, reply) })
}

func (s *Session) dispatch(action protocol.Action, payload *protocol.Payload, done func(error)) {
	s.log.Debugf("Received %s", action)
	switch action {
	case protocol.ActionSessionInitiate:
		s.negotiator.onInitiate(payload, done)
	case protocol.ActionSessionAccept:
		s.negotiator.onAccept(payload, done)
	case protocol.ActionSessionTerminate:
		s.onTerminate(payload, done)
	case protocol.ActionDescriptionInfo:
		s.transfer.onDescriptionInfo(payload, done)
	case protocol.ActionTransportInfo:
		s.ice.remoteCandidate(payload, done)
	default:
		done(protocol.NewError(protocol.ConditionUnsupportedInfo, "action %s", action))
	}
}

func (s *Session) OnSessionInitiate(payload *protocol.Payload, done func(error)) {
	s.Dispatch(protocol.ActionSessionInitiate, payload, done)
}

func (s *Session) OnSessionAccept(payload *protocol.Payload, done func(error)) {
	s.Dispatch(protocol.ActionSessionAccept, payload, done)
}

func (s *Session) OnSessionTerminate(payload *protocol.Payload, done func(error)) {
	s.Dispatch(protocol.ActionSessionTerminate, payload, done)
}

func (s *Session) OnDescriptionInfo(payload *protocol.Payload, done func(error)) {
	s.Dispatch(protocol.ActionDescriptionInfo, payload, done)
}

func (s *Session) OnTransportInfo(payload *protocol.Payload, done func(error)) {
	s.Dispatch(protocol.ActionTransportInfo, payload, done)
}

func (s *Session) onTerminate(payload *protocol.Payload, done func(error)) {
	reason := protocol.ReasonGone
	if payload != nil && payload.Reason != "" {
		reason = payload.Reason
	}
	s.end(reason, true)
	done(nil)
}

func (s *Session) onTransportState(ts TransportState) {
	if s.ended() {
		return
	}
	stable := s.engine.SignalingState() == SignalingStable
	next, ok := ConnectionStateFor(ts, stable)
	if !ok {
		return
	}

	s.mu.Lock()
	changed := s.connState != next
	s.connState = next
	s.mu.Unlock()

	if changed {
		s.log.Infof("Connection state %s (transport %s)", next, ts)
		s.loop.notify(func() { s.observer.ConnectionStateChanged(s, next) })
	}
	if ts == TransportFailed {
		s.end(protocol.ReasonFailedTransport, false)
	}
}
