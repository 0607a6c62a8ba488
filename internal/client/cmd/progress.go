package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rudransh-shrivastava/pitshare/internal/filetransfer"
	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/rudransh-shrivastava/pitshare/internal/session"
	"github.com/schollz/progressbar/v3"
)

// progressObserver draws one progress bar per session.
type progressObserver struct {
	session.NopObserver

	out   io.Writer
	mu    sync.Mutex
	bars  map[string]*progressbar.ProgressBar
	ended func(s *session.Session, reason protocol.Reason)
}

func newProgressObserver(out io.Writer) *progressObserver {
	return &progressObserver{out: out, bars: make(map[string]*progressbar.ProgressBar)}
}

func (o *progressObserver) Progress(s *session.Session, dir session.Direction, done, total int64) {
	o.mu.Lock()
	bar, ok := o.bars[s.ID()]
	if !ok {
		description := "Sending"
		if dir == session.Download {
			description = "Receiving"
		}
		bar = progressbar.NewOptions64(
			total,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(o.out),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(10),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(o.out, "\n")
			}),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionFullWidth(),
		)
		o.bars[s.ID()] = bar
	}
	o.mu.Unlock()

	_ = bar.Set64(done)
}

func (o *progressObserver) ReceivedFile(s *session.Session, f session.ReceivedFile) {
	fmt.Fprintf(o.out, "Received %s (%s, %s %s)\n", f.Name, humanize.Bytes(uint64(f.Size)), f.Algo, f.Hash)
	if err := checkStored(f); err != nil {
		fmt.Fprintf(o.out, "Warning: %v\n", err)
		return
	}
	fmt.Fprintf(o.out, "Saved to %s\n", f.Path)
}

// checkStored re-hashes the file where it was saved.
func checkStored(f session.ReceivedFile) error {
	r, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("failed to reopen %s: %w", f.Path, err)
	}
	defer r.Close()

	sum, err := filetransfer.HashFile(r, f.Algo)
	if err != nil {
		return err
	}
	if !strings.EqualFold(sum, f.Hash) {
		return fmt.Errorf("%s changed after it was saved: %s %s", f.Path, f.Algo, sum)
	}
	return nil
}

func (o *progressObserver) SentFile(s *session.Session, f session.SentFile) {
	fmt.Fprintf(o.out, "Sent all bytes, %s %s\n", f.Algo, f.Hash)
}

func (o *progressObserver) Ended(s *session.Session, reason protocol.Reason) {
	o.mu.Lock()
	bar, ok := o.bars[s.ID()]
	delete(o.bars, s.ID())
	o.mu.Unlock()

	if ok && reason == protocol.ReasonSuccess {
		_ = bar.Finish()
	} else if ok {
		fmt.Fprint(o.out, "\n")
	}
	if reason != protocol.ReasonSuccess {
		fmt.Fprintf(o.out, "Transfer ended: %s\n", reason)
	}
	if o.ended != nil {
		o.ended(s, reason)
	}
}
