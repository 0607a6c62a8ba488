package session

import (
	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
)

// negotiator layers file metadata onto the engine's offer/answer exchange.
// The engine itself only ever sees the datachannel placeholder.
type negotiator struct {
	s *Session
}

func (n *negotiator) offer(file *File) {
	s := n.s
	s.engine.Offer(OfferConstraints{}).Then(func(p *protocol.Payload, err error) {
		s.loop.post(func() {
			if s.ended() {
				return
			}
			if err == nil && p.FirstContent() == nil {
				err = protocol.NewError(protocol.ConditionGeneralError, "offer has no content")
			}
			if err != nil {
				s.log.Errorf("Failed to create offer: %v", err)
				s.end(protocol.ReasonFailedApplication, true)
				return
			}

			initiate := p.Clone()
			initiate.Contents[0].Description = fileDescription(file, s.algo)
			s.send(protocol.ActionSessionInitiate, initiate)
			s.ice.release()
		})
	})
}

func (n *negotiator) accept() {
	s := n.s
	s.engine.Answer().Then(func(p *protocol.Payload, err error) {
		s.loop.post(func() {
			if s.ended() {
				return
			}
			if err != nil {
				s.log.Errorf("Failed to create answer: %v", err)
				s.end(protocol.ReasonFailedApplication, false)
				return
			}
			s.send(protocol.ActionSessionAccept, p)
			s.ice.release()
		})
	})
}

// announceHash tells the peer the sender's hash once all bytes are out.
func (n *negotiator) announceHash(f SentFile) {
	s := n.s
	content := protocol.Content{Name: ChannelLabel}
	if local := s.engine.LocalDescription().FirstContent(); local != nil {
		content = *local
	}
	content.Transport = nil
	content.Description = &protocol.Description{
		DescType: protocol.DescFileTransfer,
		Offer: &protocol.FileOffer{
			Hash: &protocol.Hash{Algo: f.Algo, Value: f.Hash},
		},
	}
	s.send(protocol.ActionDescriptionInfo, &protocol.Payload{Contents: []protocol.Content{content}})
}

func (n *negotiator) onInitiate(p *protocol.Payload, done func(error)) {
	s := n.s
	if s.currentState() != StateNew {
		done(protocol.NewError(protocol.ConditionOutOfOrder, "session-initiate in state %s", s.currentState()))
		return
	}
	offer := p.FileOffer()
	if offer == nil {
		done(protocol.NewError(protocol.ConditionBadRequest, "session-initiate without file offer"))
		return
	}

	s.setRole(RoleResponder)
	s.advance(StatePending)
	s.engine.SetInitiator(false)

	meta := metadataFromOffer(offer, s.algo)
	if err := s.transfer.prepareReceive(meta); err != nil {
		s.log.Errorf("Failed to prepare receiver: %v", err)
		done(protocol.NewError(protocol.ConditionGeneralError, "%v", err))
		return
	}
	s.log.Infof("Incoming file %q (%d bytes)", meta.Name, meta.Size)

	s.engine.HandleOffer(withPlaceholder(p)).Then(func(_ struct{}, err error) {
		s.loop.post(func() {
			if err != nil {
				s.log.Warnf("Failed to handle offer: %v", err)
				done(protocol.NewError(protocol.ConditionGeneralError, "%v", err))
				return
			}
			done(nil)
		})
	})
}

func (n *negotiator) onAccept(p *protocol.Payload, done func(error)) {
	s := n.s
	if s.currentState() != StatePending || s.currentRole() != RoleInitiator {
		done(protocol.NewError(protocol.ConditionOutOfOrder, "session-accept as %s in state %s", s.currentRole(), s.currentState()))
		return
	}
	s.advance(StateActive)

	s.engine.HandleAnswer(withPlaceholder(p)).Then(func(_ struct{}, err error) {
		s.loop.post(func() {
			if err != nil {
				s.log.Warnf("Failed to handle answer: %v", err)
				done(protocol.NewError(protocol.ConditionGeneralError, "%v", err))
				return
			}
			if !s.ended() {
				s.loop.notify(func() { s.observer.Accepted(s) })
			}
			done(nil)
		})
	})
}

func fileDescription(file *File, algo string) *protocol.Description {
	date := file.LastModified
	offer := &protocol.FileOffer{
		Name: file.Name,
		Size: file.Size,
		Hash: &protocol.Hash{Algo: algo},
	}
	if !date.IsZero() {
		offer.Date = &date
	}
	return &protocol.Description{DescType: protocol.DescFileTransfer, Offer: offer}
}

// withPlaceholder swaps the leading description for the datachannel
// placeholder the engine understands.
func withPlaceholder(p *protocol.Payload) *protocol.Payload {
	out := p.Clone()
	if out == nil {
		out = &protocol.Payload{}
	}
	if len(out.Contents) == 0 {
		out.Contents = []protocol.Content{{Name: ChannelLabel}}
	}
	out.Contents[0].Description = &protocol.Description{DescType: protocol.DescDataChannel}
	return out
}
