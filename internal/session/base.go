package session

import (
	"sync"

	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/sirupsen/logrus"
)

// base carries the generic session lifecycle: identity, state, the
// terminal reason and outbound signaling. Fields are written only from
// loop steps; mu lets accessors read them from other goroutines.
type base struct {
	sid      string
	peer     string
	signaler Signaler
	log      *logrus.Entry

	mu     sync.RWMutex
	role   Role
	state  State
	reason protocol.Reason
	done   chan struct{}
}

func newBase(sid, peer string, signaler Signaler, log *logrus.Logger) base {
	return base{
		sid:      sid,
		peer:     peer,
		signaler: signaler,
		log:      log.WithFields(logrus.Fields{"sid": sid, "peer": peer}),
		done:     make(chan struct{}),
	}
}

func (b *base) currentState() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *base) currentRole() Role {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.role
}

func (b *base) ended() bool {
	return b.currentState() == StateEnded
}

// advance moves the state forward and refuses to move it back.
func (b *base) advance(next State) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if next <= b.state {
		return false
	}
	b.log.Debugf("State %s -> %s", b.state, next)
	b.state = next
	return true
}

func (b *base) setRole(role Role) {
	b.mu.Lock()
	b.role = role
	b.mu.Unlock()
	b.log = b.log.WithField("role", role.String())
}

func (b *base) send(action protocol.Action, payload *protocol.Payload) {
	if err := b.signaler.Send(b.sid, action, payload); err != nil {
		b.log.Warnf("Failed to send %s: %v", action, err)
	}
}

// terminate marks the session ended and reports whether this call did so.
func (b *base) terminate(reason protocol.Reason, silent bool) bool {
	b.mu.Lock()
	if b.state == StateEnded {
		b.mu.Unlock()
		return false
	}
	b.state = StateEnded
	b.reason = reason
	close(b.done)
	b.mu.Unlock()

	b.log.Infof("Session ended: %s", reason)
	if !silent {
		b.send(protocol.ActionSessionTerminate, protocol.BuildTerminatePayload(reason))
	}
	return true
}
