package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rudransh-shrivastava/pitshare/internal/discovery"
	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/rudransh-shrivastava/pitshare/internal/session"
	"github.com/rudransh-shrivastava/pitshare/internal/transport"
	"github.com/spf13/cobra"
)

var (
	receiveListen    string
	receiveYes       bool
	receiveOnce      bool
	receiveAdvertise bool
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "wait for incoming files",
	Long:  `listen for senders and save accepted files into the download directory`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		observer := newProgressObserver(os.Stderr)
		if receiveOnce {
			observer.ended = func(*session.Session, protocol.Reason) { cancel() }
		}

		incoming := acceptAll
		if !receiveYes {
			incoming = (&prompter{in: bufio.NewReader(os.Stdin), out: os.Stderr}).ask
		}

		a, err := newApp(observer, incoming)
		if err != nil {
			return err
		}
		defer a.Close()

		listen := cfg.ListenAddr
		if cmd.Flags().Changed("listen") {
			listen = receiveListen
		}
		tr, err := transport.NewTransport(listen, a.tls)
		if err != nil {
			return err
		}
		defer tr.Close()
		log.Infof("Listening on %s, saving to %s", tr.LocalAddr(), cfg.DownloadDir)

		advertise := cfg.Discovery
		if cmd.Flags().Changed("advertise") {
			advertise = receiveAdvertise
		}
		if advertise {
			adv, err := advertiseReceiver(tr.LocalAddr())
			if err != nil {
				log.Warnf("Not advertising on the local network: %v", err)
			} else {
				defer adv.Stop()
			}
		}

		for {
			peer, err := tr.Accept(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, transport.ErrClosed) {
					return nil
				}
				log.Warnf("Failed to accept signaling connection: %v", err)
				continue
			}
			go func() {
				defer peer.Close()
				if err := a.node.Serve(ctx, peer); err != nil {
					log.Debugf("Signaling with %s closed: %v", peer.RemoteAddr(), err)
				}
			}()
		}
	},
}

func advertiseReceiver(addr net.Addr) (*discovery.Advertiser, error) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("unexpected listen address %s", addr)
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "pitshare"
	}
	return discovery.Advertise(discovery.Config{
		NodeID:   uuid.NewString(),
		Instance: host,
		Port:     tcpAddr.Port,
	})
}

func acceptAll(*session.Session, session.Metadata) bool {
	return true
}

// prompter asks on the terminal before accepting an offer. Offers are
// asked about one at a time.
type prompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func (p *prompter) ask(s *session.Session, meta session.Metadata) bool {
	return p.confirm(meta, s.Peer())
}

func (p *prompter) confirm(meta session.Metadata, from string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "Accept %q (%s) from %s? [y/N] ", meta.Name, humanize.Bytes(uint64(meta.Size)), from)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func init() {
	receiveCmd.Flags().StringVar(&receiveListen, "listen", "", "address to listen on (defaults to the configured listen_addr)")
	receiveCmd.Flags().BoolVarP(&receiveYes, "yes", "y", false, "accept every offer without asking")
	receiveCmd.Flags().BoolVar(&receiveOnce, "once", false, "exit after the first transfer ends")
	receiveCmd.Flags().BoolVar(&receiveAdvertise, "advertise", true, "advertise this receiver with mDNS")
}
