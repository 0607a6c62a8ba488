package node

import (
	"context"
	"sync"
	"time"

	"github.com/rudransh-shrivastava/pitshare/internal/db"
	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/rudransh-shrivastava/pitshare/internal/session"
	"github.com/rudransh-shrivastava/pitshare/internal/transport"
)

type entry struct {
	s       *session.Session
	peer    *transport.Peer
	started time.Time

	mu   sync.Mutex
	file *session.File
	algo string
	sent *session.SentFile
}

func (e *entry) setOutgoing(file *session.File, algo string) {
	e.mu.Lock()
	e.file = file
	e.algo = algo
	e.mu.Unlock()
}

func (e *entry) setSent(f session.SentFile) {
	e.mu.Lock()
	e.sent = &f
	e.mu.Unlock()
}

func (e *entry) record(reason protocol.Reason) *db.TransferRecord {
	rec := &db.TransferRecord{
		SID:       e.s.ID(),
		Peer:      e.s.Peer(),
		Role:      e.s.Role().String(),
		Reason:    reason.String(),
		StartedAt: e.started,
		EndedAt:   time.Now(),
	}

	if e.s.Role() != session.RoleInitiator {
		rec.Direction = session.Download.String()
		if meta, ok := e.s.Metadata(); ok {
			rec.FileName = meta.Name
			rec.Size = meta.Size
			rec.Algo = meta.Declared.Algo
			rec.Declared = meta.Declared.Value
			if meta.Computed != nil {
				rec.Computed = meta.Computed.Value
			}
		}
		return rec
	}

	rec.Direction = session.Upload.String()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file != nil {
		rec.FileName = e.file.Name
		rec.Size = e.file.Size
	}
	rec.Algo = e.algo
	if e.sent != nil {
		rec.Declared = e.sent.Hash
		rec.Computed = e.sent.Hash
	}
	return rec
}

// sessionObserver keeps the registry and history current before passing
// each notification on to the application's observer.
type sessionObserver struct {
	n *Node
}

var _ session.Observer = (*sessionObserver)(nil)

func (o *sessionObserver) Accepted(s *session.Session) {
	o.n.observer.Accepted(s)
}

func (o *sessionObserver) SentFile(s *session.Session, f session.SentFile) {
	if e := o.n.lookup(s.ID()); e != nil {
		e.setSent(f)
	}
	o.n.observer.SentFile(s, f)
}

func (o *sessionObserver) ReceivedFile(s *session.Session, f session.ReceivedFile) {
	o.n.observer.ReceivedFile(s, f)
}

func (o *sessionObserver) Ended(s *session.Session, reason protocol.Reason) {
	e := o.n.remove(s.ID())
	if e != nil && o.n.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := o.n.history.Record(ctx, e.record(reason)); err != nil {
			o.n.logger.Warnf("Failed to record transfer %s: %v", s.ID(), err)
		}
		cancel()
	}
	o.n.logger.Infof("Session %s ended: %s", s.ID(), reason)
	o.n.observer.Ended(s, reason)
}

func (o *sessionObserver) ConnectionStateChanged(s *session.Session, state session.ConnectionState) {
	o.n.observer.ConnectionStateChanged(s, state)
}

func (o *sessionObserver) Progress(s *session.Session, dir session.Direction, done, total int64) {
	o.n.observer.Progress(s, dir, done, total)
}
