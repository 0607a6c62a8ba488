package session

import "github.com/rudransh-shrivastava/pitshare/internal/protocol"

// iceRelay forwards candidates between the engine and the signaling path.
// Local candidates are held until the peer has our initiate or accept.
type iceRelay struct {
	s      *Session
	ready  bool
	queued []*protocol.Payload
}

func (r *iceRelay) localCandidate(info *protocol.Payload) {
	if r.s.ended() || info == nil {
		return
	}
	if !r.ready {
		r.queued = append(r.queued, info)
		return
	}
	r.s.send(protocol.ActionTransportInfo, info)
}

// release sends the held candidates and lets later ones through directly.
func (r *iceRelay) release() {
	r.ready = true
	queued := r.queued
	r.queued = nil
	for _, info := range queued {
		if r.s.ended() {
			return
		}
		r.s.send(protocol.ActionTransportInfo, info)
	}
}

func (r *iceRelay) remoteCandidate(info *protocol.Payload, done func(error)) {
	s := r.s
	if s.ended() {
		done(nil)
		return
	}
	s.engine.ProcessICE(info).Then(func(_ struct{}, err error) {
		s.loop.post(func() {
			if err != nil {
				s.log.Debugf("Failed to add remote candidate: %v", err)
			}
			done(nil)
		})
	})
}
