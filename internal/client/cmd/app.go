package cmd

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/rudransh-shrivastava/pitshare/internal/config"
	"github.com/rudransh-shrivastava/pitshare/internal/db"
	"github.com/rudransh-shrivastava/pitshare/internal/filetransfer"
	"github.com/rudransh-shrivastava/pitshare/internal/node"
	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/rudransh-shrivastava/pitshare/internal/session"
	"github.com/rudransh-shrivastava/pitshare/internal/store"
	"github.com/rudransh-shrivastava/pitshare/internal/transport"
	"github.com/rudransh-shrivastava/pitshare/internal/transport/webrtc"
	"gorm.io/gorm"
)

// app wires one node with its history database and signaling TLS config.
type app struct {
	gdb     *gorm.DB
	history *store.TransferStore
	node    *node.Node
	tls     *tls.Config
}

func newApp(observer session.Observer, incoming node.IncomingFunc) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	gdb, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	a := &app{gdb: gdb, history: store.NewTransferStore(gdb)}

	if cfg.TLS {
		if a.tls, err = transport.DefaultTLSConfig(); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.node, err = node.New(node.Options{
		NewEngine: func() (session.Engine, error) {
			return webrtc.New(webrtc.Options{
				Config:      cfg.WebRTC(),
				DataChannel: config.DefaultDataChannelConfig(),
				Logger:      log,
			})
		},
		Transfers: filetransfer.NewFactory(filetransfer.Options{
			ChunkSize: cfg.ChunkSize,
			Sink:      filetransfer.DirSink(cfg.DownloadDir),
			Logger:    log,
		}),
		History:       a.history,
		Observer:      observer,
		Incoming:      incoming,
		HashAlgorithm: cfg.HashAlgorithm,
		Logger:        log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.node != nil {
		a.node.Close()
	}
	if a.gdb != nil {
		if err := db.Close(a.gdb); err != nil {
			log.Debugf("Failed to close database: %v", err)
		}
	}
}

// waitSession blocks until s ends, cancelling it when ctx is done or the
// --timeout elapses.
func waitSession(ctx context.Context, s *session.Session) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-s.Done():
	case <-ctx.Done():
		s.End(protocol.ReasonCancel, false)
	case <-expired:
		s.End(protocol.ReasonTimeout, false)
	}
	<-s.Done()

	if reason := s.EndReason(); reason != protocol.ReasonSuccess {
		return fmt.Errorf("transfer ended: %s", reason)
	}
	return nil
}
