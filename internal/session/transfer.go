package session

import (
	"fmt"

	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
)

type sendSide struct {
	file    *File
	sender  Sender
	channel Channel
	started bool
	sent    bool
}

type receiveSide struct {
	meta      Metadata
	receiver  Receiver
	channel   Channel
	received  bool
	committed bool
}

// transferController owns at most one side of the transfer.
type transferController struct {
	s        *Session
	sender   *sendSide
	receiver *receiveSide
}

func (t *transferController) prepareSend(file *File) error {
	s := t.s
	if t.receiver != nil || t.sender != nil {
		return ErrRoleConflict
	}

	sender, err := s.transfers.NewSender(s.algo, SenderEvents{
		Progress: func(sent, total int64) {
			s.loop.post(func() { t.progress(Upload, sent, total) })
		},
		Complete: func(f SentFile) {
			s.loop.post(func() { t.sendComplete(f) })
		},
		Failed: func(err error) {
			s.loop.post(func() { t.failed(Upload, err) })
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create sender: %w", err)
	}

	ch, err := s.engine.CreateDataChannel(ChannelLabel)
	if err != nil {
		return fmt.Errorf("failed to create data channel: %w", err)
	}
	t.sender = &sendSide{file: file, sender: sender, channel: ch}

	ch.OnOpen(func() {
		s.loop.post(t.channelOpen)
	})
	return nil
}

func (t *transferController) prepareReceive(meta Metadata) error {
	s := t.s
	if t.receiver != nil || t.sender != nil {
		return ErrRoleConflict
	}

	receiver, err := s.transfers.NewReceiver(meta, ReceiverEvents{
		Progress: func(received, total int64) {
			s.loop.post(func() { t.progress(Download, received, total) })
		},
		Complete: func(f ReceivedFile) {
			s.loop.post(func() { t.receiveComplete(f) })
		},
		Failed: func(err error) {
			s.loop.post(func() { t.failed(Download, err) })
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create receiver: %w", err)
	}
	t.receiver = &receiveSide{meta: meta, receiver: receiver}
	return nil
}

// commit keeps the verified file and returns its path.
func (t *transferController) commit() (string, error) {
	side := t.receiver
	path, err := side.receiver.Commit()
	if err != nil {
		return "", err
	}
	side.committed = true
	return path, nil
}

// abort discards an incoming file that was not committed.
func (t *transferController) abort() {
	side := t.receiver
	if side == nil || side.committed {
		return
	}
	side.receiver.Abort()
}

func (t *transferController) channelOpen() {
	side := t.sender
	if t.s.ended() || side == nil || side.started {
		return
	}
	side.started = true
	t.s.log.Infof("Data channel open, sending %q", side.file.Name)
	side.sender.Send(side.file, side.channel)
}

func (t *transferController) channelAdded(ch Channel) {
	side := t.receiver
	if t.s.ended() || side == nil || side.channel != nil {
		return
	}
	if ch.Label() != ChannelLabel {
		t.s.log.Debugf("Ignoring data channel %q", ch.Label())
		return
	}
	side.channel = ch
	side.receiver.Receive(nil, ch)
}

func (t *transferController) progress(dir Direction, done, total int64) {
	s := t.s
	if s.ended() {
		return
	}
	s.loop.notify(func() { s.observer.Progress(s, dir, done, total) })
}

func (t *transferController) failed(dir Direction, err error) {
	if t.s.ended() {
		return
	}
	t.s.log.Errorf("File %s failed: %v", dir, err)
	t.s.end(protocol.ReasonFailedApplication, false)
}

func (t *transferController) sendComplete(f SentFile) {
	s := t.s
	side := t.sender
	if s.ended() || side == nil || side.sent {
		return
	}
	side.sent = true
	s.log.Infof("Sent %q (%s %s)", side.file.Name, f.Algo, f.Hash)
	s.negotiator.announceHash(f)
	s.loop.notify(func() { s.observer.SentFile(s, f) })
}

func (t *transferController) receiveComplete(f ReceivedFile) {
	side := t.receiver
	if t.s.ended() || side == nil || side.received {
		return
	}
	side.received = true
	side.meta.Computed = &protocol.Hash{Algo: f.Algo, Value: f.Hash}
	t.s.checkCompletion()
}

// onDescriptionInfo applies a hash declared after the offer. The latest
// declaration wins.
func (t *transferController) onDescriptionInfo(p *protocol.Payload, done func(error)) {
	side := t.receiver
	if t.s.ended() {
		done(nil)
		return
	}
	if side == nil {
		done(protocol.NewError(protocol.ConditionOutOfOrder, "description-info without a receiver"))
		return
	}
	offer := p.FileOffer()
	if offer == nil || offer.Hash == nil {
		done(protocol.NewError(protocol.ConditionBadRequest, "description-info without hash"))
		return
	}

	if offer.Hash.Algo != "" {
		side.meta.Declared.Algo = offer.Hash.Algo
	}
	side.meta.Declared.Value = offer.Hash.Value
	t.s.checkCompletion()
	done(nil)
}
