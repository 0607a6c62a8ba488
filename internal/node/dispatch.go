package node

import (
	"context"
	"errors"

	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/rudransh-shrivastava/pitshare/internal/session"
	"github.com/rudransh-shrivastava/pitshare/internal/transport"
)

func (n *Node) handle(peer *transport.Peer, env *protocol.Envelope) {
	switch env.Action {
	case protocol.ActionError:
		n.handleError(peer, env)
	case protocol.ActionSessionInitiate:
		n.handleInitiate(peer, env)
	default:
		e := n.lookupFrom(peer, env.SID)
		if e == nil {
			n.logger.Debugf("Dropping %s for unknown session %s", env.Action, env.SID)
			n.reject(peer, env, protocol.NewError(protocol.ConditionUnknownSession, "no session %s", env.SID))
			return
		}
		e.s.Dispatch(env.Action, env.Payload, n.replier(peer, env))
	}
}

func (n *Node) handleInitiate(peer *transport.Peer, env *protocol.Envelope) {
	if e := n.lookup(env.SID); e != nil {
		if e.peer == peer {
			n.logger.Debugf("Ignoring repeated session-initiate for %s", env.SID)
			return
		}
		n.logger.Warnf("Session id %s from %s is already in use", env.SID, peer.RemoteAddr())
		n.reject(peer, env, protocol.NewError(protocol.ConditionGeneralError, "session %s already exists", env.SID))
		return
	}

	s, err := n.newSession(env.SID, peer)
	if err != nil {
		n.logger.Warnf("Failed to create session for %s: %v", env.SID, err)
		n.reject(peer, env, protocol.NewError(protocol.ConditionGeneralError, "%v", err))
		return
	}

	s.Dispatch(env.Action, env.Payload, func(err error) {
		if err != nil {
			n.reject(peer, env, asProtocolError(err))
			s.End(protocol.ReasonFailedApplication, true)
			return
		}
		go n.decide(s)
	})
}

// decide asks the application about an inbound offer. Without an Incoming
// hook every offer is accepted.
func (n *Node) decide(s *session.Session) {
	meta, _ := s.Metadata()
	accept := true
	if n.incoming != nil {
		accept = n.incoming(s, meta)
	}

	if !accept {
		n.logger.Infof("Declined %q from %s", meta.Name, s.Peer())
		s.End(protocol.ReasonDecline, false)
		return
	}
	if err := s.Accept(); err != nil && !errors.Is(err, session.ErrEnded) {
		n.logger.Warnf("Failed to accept session %s: %v", s.ID(), err)
	}
}

// handleError ends the session when the peer rejected a negotiation step
// or does not know the session at all.
func (n *Node) handleError(peer *transport.Peer, env *protocol.Envelope) {
	e := n.lookupFrom(peer, env.SID)
	if e == nil {
		return
	}
	n.logger.Warnf("Peer rejected %s for session %s: %v", env.Ref, env.SID, env.Error)

	fatal := env.Ref == protocol.ActionSessionInitiate || env.Ref == protocol.ActionSessionAccept
	if env.Error != nil && env.Error.Condition == protocol.ConditionUnknownSession {
		fatal = true
	}
	if fatal {
		e.s.End(protocol.ReasonFailedApplication, true)
	}
}

func (n *Node) replier(peer *transport.Peer, env *protocol.Envelope) func(error) {
	return func(err error) {
		if err != nil {
			n.reject(peer, env, asProtocolError(err))
		}
	}
}

func (n *Node) reject(peer *transport.Peer, env *protocol.Envelope, perr *protocol.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := peer.Send(ctx, protocol.BuildErrorEnvelope(env.SID, env.Action, perr)); err != nil {
		n.logger.Warnf("Failed to send error for %s: %v", env.Action, err)
	}
}

func asProtocolError(err error) *protocol.Error {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr
	}
	return protocol.NewError(protocol.ConditionGeneralError, "%v", err)
}
