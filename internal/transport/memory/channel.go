// Package memory provides an in-process connection engine and data channels.
// Both ends live in the same process, which makes it useful for tests and
// local loopback transfers.
package memory

import (
	"errors"
	"sync"

	"github.com/rudransh-shrivastava/pitshare/internal/session"
)

var ErrClosed = errors.New("channel closed")

// Channel is one end of an in-memory ordered channel. Messages sent before
// the remote end registers a handler are buffered.
type Channel struct {
	label string
	peer  *Channel

	deliverMu sync.Mutex

	mu        sync.Mutex
	onOpen    func()
	onClose   func()
	onMessage func([]byte)
	pending   [][]byte
	open      bool
	closed    bool
}

var _ session.Channel = (*Channel)(nil)

func NewChannelPair(label string) (*Channel, *Channel) {
	a := &Channel{label: label}
	b := &Channel{label: label}
	a.peer, b.peer = b, a
	return a, b
}

func (c *Channel) Label() string {
	return c.label
}

func (c *Channel) Send(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	msg := make([]byte, len(data))
	copy(msg, data)
	return c.peer.deliver(msg)
}

func (c *Channel) deliver(msg []byte) error {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	fn := c.onMessage
	if fn == nil {
		c.pending = append(c.pending, msg)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	fn(msg)
	return nil
}

func (c *Channel) OnMessage(fn func([]byte)) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	c.onMessage = fn
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, msg := range pending {
		fn(msg)
	}
}

// OnOpen registers fn. If the channel is already open fn runs right away
// on its own goroutine.
func (c *Channel) OnOpen(fn func()) {
	c.mu.Lock()
	c.onOpen = fn
	open := c.open
	c.mu.Unlock()
	if open {
		go fn()
	}
}

func (c *Channel) OnClose(fn func()) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

func (c *Channel) BufferedAmount() uint64 {
	return 0
}

func (c *Channel) SetBufferedAmountLowThreshold(uint64) {}

func (c *Channel) OnBufferedAmountLow(func()) {}

// Open marks both ends open and fires their open handlers.
func (c *Channel) Open() {
	for _, end := range []*Channel{c, c.peer} {
		end.mu.Lock()
		if end.open || end.closed {
			end.mu.Unlock()
			continue
		}
		end.open = true
		fn := end.onOpen
		end.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}

// Close closes both ends.
func (c *Channel) Close() error {
	for _, end := range []*Channel{c, c.peer} {
		end.mu.Lock()
		if end.closed {
			end.mu.Unlock()
			continue
		}
		end.closed = true
		end.pending = nil
		fn := end.onClose
		end.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
	return nil
}
