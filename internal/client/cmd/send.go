package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rudransh-shrivastava/pitshare/internal/discovery"
	"github.com/rudransh-shrivastava/pitshare/internal/filetransfer"
	"github.com/rudransh-shrivastava/pitshare/internal/transport"
	"github.com/spf13/cobra"
)

var (
	sendPeer     string
	sendDiscover bool
)

var sendCmd = &cobra.Command{
	Use:   "send file",
	Short: "send a file",
	Long:  `send a file to a receiver, given by --peer host:port or found on the local network with --discover`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr, err := resolvePeer(ctx)
		if err != nil {
			return err
		}

		file, f, err := filetransfer.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		a, err := newApp(newProgressObserver(os.Stderr), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		peer, err := transport.Dial(ctx, addr, a.tls)
		if err != nil {
			return err
		}
		defer peer.Close()

		serveCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := a.node.Serve(serveCtx, peer); err != nil {
				log.Warnf("Signaling with %s failed: %v", addr, err)
			}
		}()

		s, err := a.node.Send(peer, file)
		if err != nil {
			return err
		}
		return waitSession(ctx, s)
	},
}

func resolvePeer(ctx context.Context) (string, error) {
	if sendPeer != "" {
		return sendPeer, nil
	}
	if !sendDiscover {
		return "", errors.New("either --peer or --discover is required")
	}

	log.Info("Looking for receivers on the local network...")
	r, err := discovery.First(ctx, discovery.Config{})
	if err != nil {
		return "", fmt.Errorf("discovery failed: %w", err)
	}
	log.Infof("Found %s at %s", r.Instance, r.Addr)
	return r.Addr, nil
}

func init() {
	sendCmd.Flags().StringVar(&sendPeer, "peer", "", "receiver address (host:port)")
	sendCmd.Flags().BoolVar(&sendDiscover, "discover", false, "find a receiver with mDNS")
}
