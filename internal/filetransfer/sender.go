// Package filetransfer streams a file over a data channel in fixed-size
// chunks and hashes it on both ends.
package filetransfer

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rudransh-shrivastava/pitshare/internal/session"
	"github.com/sirupsen/logrus"
)

const (
	DefaultChunkSize = 16 * 1024

	bufferedHighWater = 1024 * 1024
	bufferedLowWater  = 256 * 1024
)

var ErrChannelClosed = errors.New("data channel closed")

type Sender struct {
	algo      string
	chunkSize int
	events    session.SenderEvents
	log       *logrus.Entry
}

var _ session.Sender = (*Sender)(nil)

func (s *Sender) Send(file *session.File, ch session.Channel) {
	go s.stream(file, ch)
}

func (s *Sender) stream(file *session.File, ch session.Channel) {
	h, err := NewHash(s.algo)
	if err != nil {
		s.fail(err)
		return
	}

	low := make(chan struct{}, 1)
	closed := make(chan struct{})
	ch.SetBufferedAmountLowThreshold(bufferedLowWater)
	ch.OnBufferedAmountLow(func() {
		select {
		case low <- struct{}{}:
		default:
		}
	})
	var closeOnce sync.Once
	ch.OnClose(func() { closeOnce.Do(func() { close(closed) }) })

	s.log.Debugf("Sending %q: %d bytes in %d chunks", file.Name, file.Size,
		CalculateTotalChunks(file.Size, int64(s.chunkSize)))

	buf := make([]byte, s.chunkSize)
	var sent int64
	for {
		n, readErr := io.ReadFull(file.Body, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			h.Write(chunk)

			if err := ch.Send(chunk); err != nil {
				s.fail(fmt.Errorf("failed to send chunk: %w", err))
				return
			}
			sent += int64(n)
			if s.events.Progress != nil {
				s.events.Progress(sent, file.Size)
			}

			for ch.BufferedAmount() > bufferedHighWater {
				select {
				case <-low:
				case <-closed:
					s.fail(ErrChannelClosed)
					return
				}
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			s.fail(fmt.Errorf("failed to read file: %w", readErr))
			return
		}
	}

	sum := fmt.Sprintf("%x", h.Sum(nil))
	s.log.Debugf("Sent %d bytes, %s %s", sent, s.algo, sum)
	if s.events.Complete != nil {
		s.events.Complete(session.SentFile{Algo: s.algo, Hash: sum})
	}
}

func (s *Sender) fail(err error) {
	s.log.Warnf("Send failed: %v", err)
	if s.events.Failed != nil {
		s.events.Failed(err)
	}
}
