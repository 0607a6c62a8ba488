package filetransfer

import (
	"errors"
	"fmt"
	"hash"
	"sync"

	"github.com/rudransh-shrivastava/pitshare/internal/session"
	"github.com/sirupsen/logrus"
)

var (
	ErrReceiverClosed = errors.New("receiver already finished")
	ErrIncomplete     = errors.New("file not fully received")
)

// Receiver writes incoming chunks to a sink opened on Receive and reports
// completion once the declared size has arrived. The sink stays pending
// until the session commits or aborts it.
type Receiver struct {
	meta   session.Metadata
	algo   string
	open   SinkFunc
	hash   hash.Hash
	events session.ReceiverEvents
	log    *logrus.Entry

	mu       sync.Mutex
	sink     Sink
	received int64
	complete bool
	closed   bool
}

var _ session.Receiver = (*Receiver)(nil)

func (r *Receiver) Receive(initial []byte, ch session.Channel) {
	r.mu.Lock()
	if r.closed || r.sink != nil {
		r.mu.Unlock()
		return
	}
	sink, err := r.open(r.meta)
	if err != nil {
		r.closed = true
		r.mu.Unlock()
		r.fail(fmt.Errorf("failed to open destination: %w", err))
		return
	}
	r.sink = sink
	r.mu.Unlock()

	if len(initial) > 0 {
		r.onData(initial)
	}
	if r.meta.Size == 0 {
		r.onData(nil)
	}
	ch.OnMessage(r.onData)
}

// onData never calls out while holding mu: events may re-enter the
// receiver through Commit or Abort.
func (r *Receiver) onData(data []byte) {
	r.mu.Lock()
	if r.closed || r.complete || r.sink == nil {
		r.mu.Unlock()
		return
	}

	if len(data) > 0 {
		if _, err := r.sink.Write(data); err != nil {
			r.discard()
			r.mu.Unlock()
			r.fail(fmt.Errorf("failed to write chunk: %w", err))
			return
		}
		r.hash.Write(data)
		r.received += int64(len(data))
	}
	received := r.received
	done := received >= r.meta.Size
	var sum string
	if done {
		r.complete = true
		sum = fmt.Sprintf("%x", r.hash.Sum(nil))
	}
	r.mu.Unlock()

	if len(data) > 0 && r.events.Progress != nil {
		r.events.Progress(received, r.meta.Size)
	}
	if !done {
		return
	}

	r.log.Debugf("Received %d bytes, %s %s", received, r.algo, sum)
	if r.events.Complete != nil {
		r.events.Complete(session.ReceivedFile{
			Name: r.meta.Name,
			Size: received,
			Algo: r.algo,
			Hash: sum,
		})
	}
}

func (r *Receiver) Commit() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrReceiverClosed
	}
	if !r.complete {
		return "", ErrIncomplete
	}
	r.closed = true
	return r.sink.Commit()
}

func (r *Receiver) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discard()
}

func (r *Receiver) discard() {
	if r.closed {
		return
	}
	r.closed = true
	if r.sink == nil {
		return
	}
	if err := r.sink.Abort(); err != nil {
		r.log.Debugf("Failed to discard partial file: %v", err)
	}
}

func (r *Receiver) fail(err error) {
	r.log.Warnf("Receive failed: %v", err)
	if r.events.Failed != nil {
		r.events.Failed(err)
	}
}
