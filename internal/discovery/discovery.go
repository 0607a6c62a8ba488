// Package discovery advertises a listening receiver on the local network
// over mDNS and finds advertised receivers.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	DefaultService = "_pitshare._tcp"
	DefaultDomain  = "local."
	DefaultVersion = 1
	DefaultTimeout = 3 * time.Second

	nodeIDTXTKey  = "node_id"
	versionTXTKey = "version"
)

var ErrNoReceiver = errors.New("no receiver found")

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

type Config struct {
	Service string
	Domain  string
	Timeout time.Duration

	NodeID   string
	Instance string
	Port     int

	registerFn registerFunc
	browseFn   browseFunc
}

func (c Config) withDefaults() Config {
	out := c
	if out.Service == "" {
		out.Service = DefaultService
	}
	if out.Domain == "" {
		out.Domain = DefaultDomain
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.registerFn == nil {
		out.registerFn = zeroconf.Register
	}
	if out.browseFn == nil {
		out.browseFn = browse
	}
	return out
}

func browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("create mDNS resolver: %w", err)
	}
	return resolver.Browse(ctx, service, domain, entries)
}

// Receiver is an advertised node ready to accept files.
type Receiver struct {
	Instance string
	NodeID   string
	Addr     string
}

type Advertiser struct {
	server *zeroconf.Server
}

func Advertise(config Config) (*Advertiser, error) {
	cfg := config.withDefaults()
	if strings.TrimSpace(cfg.Instance) == "" {
		return nil, errors.New("instance name is required")
	}
	if cfg.Port <= 0 {
		return nil, errors.New("port must be > 0")
	}

	txt := []string{
		nodeIDTXTKey + "=" + cfg.NodeID,
		versionTXTKey + "=" + strconv.Itoa(DefaultVersion),
	}
	server, err := cfg.registerFn(cfg.Instance, cfg.Service, cfg.Domain, cfg.Port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Stop() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

// Lookup browses for cfg.Timeout and returns every receiver seen, skipping
// entries advertised by cfg.NodeID itself.
func Lookup(ctx context.Context, config Config) ([]Receiver, error) {
	cfg := config.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- cfg.browseFn(ctx, cfg.Service, cfg.Domain, entries)
	}()

	seen := map[string]bool{}
	var out []Receiver
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return out, nil
			}
			r, ok := toReceiver(entry)
			if !ok || seen[r.Addr] {
				continue
			}
			if cfg.NodeID != "" && r.NodeID == cfg.NodeID {
				continue
			}
			seen[r.Addr] = true
			out = append(out, r)
		case err := <-errCh:
			if err != nil {
				return nil, err
			}
			errCh = nil
		case <-ctx.Done():
			return out, nil
		}
	}
}

// First returns the first receiver found.
func First(ctx context.Context, config Config) (Receiver, error) {
	found, err := Lookup(ctx, config)
	if err != nil {
		return Receiver{}, err
	}
	if len(found) == 0 {
		return Receiver{}, ErrNoReceiver
	}
	return found[0], nil
}

func toReceiver(entry *zeroconf.ServiceEntry) (Receiver, bool) {
	if entry == nil || entry.Port <= 0 {
		return Receiver{}, false
	}
	var ip net.IP
	switch {
	case len(entry.AddrIPv4) > 0:
		ip = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		ip = entry.AddrIPv6[0]
	default:
		return Receiver{}, false
	}

	r := Receiver{
		Instance: entry.Instance,
		Addr:     net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port)),
	}
	for _, kv := range entry.Text {
		if v, ok := strings.CutPrefix(kv, nodeIDTXTKey+"="); ok {
			r.NodeID = v
		}
	}
	return r, true
}
