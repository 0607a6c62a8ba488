package webrtc

import (
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/rudransh-shrivastava/pitshare/internal/session"
)

// channel wraps a pion DataChannel. Messages that arrive before a handler
// is registered are buffered.
type channel struct {
	dc *webrtc.DataChannel

	deliverMu sync.Mutex
	mu        sync.Mutex
	onMessage func([]byte)
	pending   [][]byte
}

var _ session.Channel = (*channel)(nil)

func newChannel(dc *webrtc.DataChannel) *channel {
	c := &channel{dc: dc}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.deliver(msg.Data)
	})
	return c
}

func (c *channel) deliver(data []byte) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	fn := c.onMessage
	if fn == nil {
		c.pending = append(c.pending, data)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn(data)
}

func (c *channel) Label() string {
	return c.dc.Label()
}

func (c *channel) Send(data []byte) error {
	return c.dc.Send(data)
}

func (c *channel) OnOpen(fn func()) {
	c.dc.OnOpen(fn)
}

func (c *channel) OnMessage(fn func([]byte)) {
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

func (c *channel) OnClose(fn func()) {
	c.dc.OnClose(fn)
}

func (c *channel) BufferedAmount() uint64 {
	return c.dc.BufferedAmount()
}

func (c *channel) SetBufferedAmountLowThreshold(threshold uint64) {
	c.dc.SetBufferedAmountLowThreshold(threshold)
}

func (c *channel) OnBufferedAmountLow(fn func()) {
	c.dc.OnBufferedAmountLow(fn)
}

func (c *channel) Close() error {
	return c.dc.Close()
}
