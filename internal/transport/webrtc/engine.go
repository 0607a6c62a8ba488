// Package webrtc adapts a pion PeerConnection to the session engine.
package webrtc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/rudransh-shrivastava/pitshare/internal/async"
	"github.com/rudransh-shrivastava/pitshare/internal/logger"
	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/rudransh-shrivastava/pitshare/internal/session"
	"github.com/sirupsen/logrus"
)

const (
	TransportType = "webrtc"
	contentName   = "data"
)

var ErrNoSDP = errors.New("payload carries no session description")

type Options struct {
	Config      webrtc.Configuration
	DataChannel *webrtc.DataChannelInit
	Logger      *logrus.Logger
}

// Engine drives one pion PeerConnection. Remote candidates that arrive
// before the remote description are held until it is applied.
type Engine struct {
	pc     *webrtc.PeerConnection
	dcInit *webrtc.DataChannelInit
	log    *logrus.Entry

	mu          sync.Mutex
	initiator   bool
	closed      bool
	remoteSet   bool
	pending     []webrtc.ICECandidateInit
	onCandidate func(*protocol.Payload)
	onState     func(session.TransportState)
	onChannel   func(session.Channel)
}

var _ session.Engine = (*Engine)(nil)

func New(opts Options) (*Engine, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	se := webrtc.SettingEngine{LoggerFactory: logger.NewPionFactory(log)}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	pc, err := api.NewPeerConnection(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	e := &Engine{
		pc:     pc,
		dcInit: opts.DataChannel,
		log:    log.WithField("component", "webrtc"),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		e.mu.Lock()
		fn := e.onCandidate
		e.mu.Unlock()
		if fn != nil {
			fn(candidatePayload(c.ToJSON()))
		}
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		e.log.Debugf("ICE connection state has changed: %s", s.String())
		e.mu.Lock()
		fn := e.onState
		e.mu.Unlock()
		if fn != nil {
			fn(transportState(s))
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		e.log.Debugf("Remote opened data channel '%s'", dc.Label())
		ch := newChannel(dc)
		e.mu.Lock()
		fn := e.onChannel
		e.mu.Unlock()
		if fn != nil {
			fn(ch)
		}
	})

	return e, nil
}

func (e *Engine) Offer(session.OfferConstraints) *async.Future[*protocol.Payload] {
	return async.Go(func() (*protocol.Payload, error) {
		offer, err := e.pc.CreateOffer(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create offer: %w", err)
		}
		if err := e.pc.SetLocalDescription(offer); err != nil {
			return nil, fmt.Errorf("failed to set local description: %w", err)
		}
		return descriptionPayload(offer.SDP), nil
	})
}

func (e *Engine) Answer() *async.Future[*protocol.Payload] {
	return async.Go(func() (*protocol.Payload, error) {
		answer, err := e.pc.CreateAnswer(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create answer: %w", err)
		}
		if err := e.pc.SetLocalDescription(answer); err != nil {
			return nil, fmt.Errorf("failed to set local description: %w", err)
		}
		return descriptionPayload(answer.SDP), nil
	})
}

func (e *Engine) HandleOffer(offer *protocol.Payload) *async.Future[struct{}] {
	return e.setRemote(offer, webrtc.SDPTypeOffer)
}

func (e *Engine) HandleAnswer(answer *protocol.Payload) *async.Future[struct{}] {
	return e.setRemote(answer, webrtc.SDPTypeAnswer)
}

func (e *Engine) setRemote(p *protocol.Payload, typ webrtc.SDPType) *async.Future[struct{}] {
	return async.Go(func() (struct{}, error) {
		c := p.FirstContent()
		if c == nil || c.Transport == nil || c.Transport.SDP == "" {
			return struct{}{}, ErrNoSDP
		}
		desc := webrtc.SessionDescription{Type: typ, SDP: c.Transport.SDP}
		if err := e.pc.SetRemoteDescription(desc); err != nil {
			return struct{}{}, fmt.Errorf("failed to set remote description: %w", err)
		}

		// Candidates may ride along with the description.
		e.mu.Lock()
		e.remoteSet = true
		pending := append(e.pending, candidatesOf(p)...)
		e.pending = nil
		e.mu.Unlock()
		for _, cand := range pending {
			if err := e.pc.AddICECandidate(cand); err != nil {
				e.log.Debugf("Failed to add queued candidate: %v", err)
			}
		}
		return struct{}{}, nil
	})
}

func (e *Engine) ProcessICE(info *protocol.Payload) *async.Future[struct{}] {
	cands := candidatesOf(info)
	e.mu.Lock()
	if !e.remoteSet {
		e.pending = append(e.pending, cands...)
		e.mu.Unlock()
		return async.Resolved(struct{}{}, nil)
	}
	e.mu.Unlock()

	var errs []error
	for _, cand := range cands {
		if err := e.pc.AddICECandidate(cand); err != nil {
			errs = append(errs, err)
		}
	}
	return async.Resolved(struct{}{}, errors.Join(errs...))
}

func (e *Engine) CreateDataChannel(label string) (session.Channel, error) {
	dc, err := e.pc.CreateDataChannel(label, e.dcInit)
	if err != nil {
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}
	return newChannel(dc), nil
}

func (e *Engine) LocalDescription() *protocol.Payload {
	desc := e.pc.LocalDescription()
	if desc == nil {
		return nil
	}
	return descriptionPayload(desc.SDP)
}

func (e *Engine) SignalingState() session.SignalingState {
	return signalingState(e.pc.SignalingState())
}

func (e *Engine) SetInitiator(initiator bool) {
	e.mu.Lock()
	e.initiator = initiator
	e.mu.Unlock()
}

func (e *Engine) IsInitiator() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initiator
}

func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	return e.pc.Close()
}

func (e *Engine) OnCandidate(fn func(*protocol.Payload)) {
	e.mu.Lock()
	e.onCandidate = fn
	e.mu.Unlock()
}

func (e *Engine) OnTransportStateChange(fn func(session.TransportState)) {
	e.mu.Lock()
	e.onState = fn
	e.mu.Unlock()
}

func (e *Engine) OnChannel(fn func(session.Channel)) {
	e.mu.Lock()
	e.onChannel = fn
	e.mu.Unlock()
}

func descriptionPayload(sdp string) *protocol.Payload {
	return &protocol.Payload{Contents: []protocol.Content{{
		Creator:     "initiator",
		Name:        contentName,
		Description: &protocol.Description{DescType: protocol.DescDataChannel},
		Transport:   &protocol.Transport{TransportType: TransportType, SDP: sdp},
	}}}
}

func candidatePayload(c webrtc.ICECandidateInit) *protocol.Payload {
	cand := protocol.Candidate{Candidate: c.Candidate}
	if c.SDPMid != nil {
		cand.SDPMid = *c.SDPMid
	}
	if c.SDPMLineIndex != nil {
		cand.SDPMLineIndex = *c.SDPMLineIndex
	}
	if c.UsernameFragment != nil {
		cand.UsernameFragment = *c.UsernameFragment
	}
	return &protocol.Payload{Contents: []protocol.Content{{
		Creator:   "initiator",
		Name:      contentName,
		Transport: &protocol.Transport{TransportType: TransportType, Candidates: []protocol.Candidate{cand}},
	}}}
}

func candidatesOf(p *protocol.Payload) []webrtc.ICECandidateInit {
	if p == nil {
		return nil
	}
	var out []webrtc.ICECandidateInit
	for _, c := range p.Contents {
		if c.Transport == nil {
			continue
		}
		for _, cand := range c.Transport.Candidates {
			if cand.Candidate == "" {
				continue
			}
			init := webrtc.ICECandidateInit{Candidate: cand.Candidate}
			mid, idx := cand.SDPMid, cand.SDPMLineIndex
			init.SDPMid = &mid
			init.SDPMLineIndex = &idx
			if cand.UsernameFragment != "" {
				ufrag := cand.UsernameFragment
				init.UsernameFragment = &ufrag
			}
			out = append(out, init)
		}
	}
	return out
}

func transportState(s webrtc.ICEConnectionState) session.TransportState {
	switch s {
	case webrtc.ICEConnectionStateChecking:
		return session.TransportChecking
	case webrtc.ICEConnectionStateConnected:
		return session.TransportConnected
	case webrtc.ICEConnectionStateCompleted:
		return session.TransportCompleted
	case webrtc.ICEConnectionStateDisconnected:
		return session.TransportDisconnected
	case webrtc.ICEConnectionStateFailed:
		return session.TransportFailed
	case webrtc.ICEConnectionStateClosed:
		return session.TransportClosed
	default:
		return session.TransportNew
	}
}

func signalingState(s webrtc.SignalingState) session.SignalingState {
	switch s {
	case webrtc.SignalingStateHaveLocalOffer:
		return session.SignalingHaveLocalOffer
	case webrtc.SignalingStateHaveRemoteOffer:
		return session.SignalingHaveRemoteOffer
	case webrtc.SignalingStateHaveLocalPranswer:
		return session.SignalingHaveLocalPranswer
	case webrtc.SignalingStateHaveRemotePranswer:
		return session.SignalingHaveRemotePranswer
	case webrtc.SignalingStateClosed:
		return session.SignalingClosed
	default:
		return session.SignalingStable
	}
}
