package filetransfer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rudransh-shrivastava/pitshare/internal/session"
	"github.com/sirupsen/logrus"
)

// Sink is the destination of one incoming file. Nothing is visible under
// the file's name until Commit.
type Sink interface {
	io.Writer
	// Commit stores the file and returns its path.
	Commit() (string, error)
	Abort() error
}

// SinkFunc opens the destination for an incoming file. It is called on
// the first Receive, after the offer was accepted.
type SinkFunc func(meta session.Metadata) (Sink, error)

type Options struct {
	ChunkSize int
	Sink      SinkFunc
	Logger    *logrus.Logger
}

// Factory builds hashed senders and receivers for sessions.
type Factory struct {
	chunkSize int
	sink      SinkFunc
	log       *logrus.Logger
}

var _ session.TransferFactory = (*Factory)(nil)

func NewFactory(opts Options) *Factory {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Factory{chunkSize: chunkSize, sink: opts.Sink, log: log}
}

func (f *Factory) NewSender(algo string, events session.SenderEvents) (session.Sender, error) {
	if _, err := NewHash(algo); err != nil {
		return nil, err
	}
	return &Sender{
		algo:      algo,
		chunkSize: f.chunkSize,
		events:    events,
		log:       f.log.WithField("component", "sender"),
	}, nil
}

func (f *Factory) NewReceiver(meta session.Metadata, events session.ReceiverEvents) (session.Receiver, error) {
	h, err := NewHash(meta.Declared.Algo)
	if err != nil {
		return nil, err
	}
	if meta.Size < 0 {
		return nil, fmt.Errorf("invalid file size %d", meta.Size)
	}
	if f.sink == nil {
		return nil, fmt.Errorf("no destination configured for incoming files")
	}

	return &Receiver{
		meta:   meta,
		algo:   meta.Declared.Algo,
		open:   f.sink,
		hash:   h,
		events: events,
		log:    f.log.WithFields(logrus.Fields{"component": "receiver", "file": meta.Name}),
	}, nil
}

// DirSink writes incoming files into dir, creating it when needed. Data
// goes to a hidden temporary file first. Commit moves it next to any
// existing file of the same name instead of replacing it.
func DirSink(dir string) SinkFunc {
	return func(meta session.Metadata) (Sink, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		f, err := os.CreateTemp(dir, tempPattern)
		if err != nil {
			return nil, err
		}
		return &fileSink{f: f, dir: dir, name: meta.Name}, nil
	}
}

const (
	tempPattern = ".pitshare-*"

	maxNameAttempts = 1000
)

type fileSink struct {
	f    *os.File
	dir  string
	name string
}

func (s *fileSink) Write(p []byte) (int, error) {
	return s.f.Write(p)
}

func (s *fileSink) Commit() (string, error) {
	tmp := s.f.Name()
	if err := s.f.Chmod(0o644); err != nil {
		_ = s.Abort()
		return "", err
	}
	if err := s.f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}

	path, err := reservePath(s.dir, s.name)
	if err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *fileSink) Abort() error {
	_ = s.f.Close()
	return os.Remove(s.f.Name())
}

// reservePath creates an empty file under the first free name derived from
// name, so that the rename that follows never replaces someone else's file.
func reservePath(dir, name string) (string, error) {
	base := BuildDownloadPath(dir, name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for i := 0; i < maxNameAttempts; i++ {
		path := base
		if i > 0 {
			path = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return path, f.Close()
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free name for %q in %s", name, dir)
}
