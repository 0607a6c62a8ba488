package webrtc

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/rudransh-shrivastava/pitshare/internal/config"
	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/rudransh-shrivastava/pitshare/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	e, err := New(Options{DataChannel: config.DefaultDataChannelConfig(), Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestCandidateConversion(t *testing.T) {
	mid := "0"
	idx := uint16(0)
	ufrag := "abcd"
	init := webrtc.ICECandidateInit{
		Candidate:        "candidate:1 1 udp 2130706431 192.168.1.2 50000 typ host",
		SDPMid:           &mid,
		SDPMLineIndex:    &idx,
		UsernameFragment: &ufrag,
	}

	p := candidatePayload(init)
	require.Len(t, p.Contents, 1)
	require.NotNil(t, p.Contents[0].Transport)
	assert.Equal(t, TransportType, p.Contents[0].Transport.TransportType)

	back := candidatesOf(p)
	require.Len(t, back, 1)
	assert.Equal(t, init.Candidate, back[0].Candidate)
	assert.Equal(t, "0", *back[0].SDPMid)
	assert.Equal(t, uint16(0), *back[0].SDPMLineIndex)
	assert.Equal(t, "abcd", *back[0].UsernameFragment)
}

func TestCandidatesOfSkipsEmpty(t *testing.T) {
	p := &protocol.Payload{Contents: []protocol.Content{
		{Name: "a"},
		{Name: "b", Transport: &protocol.Transport{Candidates: []protocol.Candidate{{}, {Candidate: "candidate:x"}}}},
	}}
	got := candidatesOf(p)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].UsernameFragment)
	assert.Empty(t, candidatesOf(nil))
}

func TestStateMapping(t *testing.T) {
	assert.Equal(t, session.TransportNew, transportState(webrtc.ICEConnectionStateNew))
	assert.Equal(t, session.TransportChecking, transportState(webrtc.ICEConnectionStateChecking))
	assert.Equal(t, session.TransportConnected, transportState(webrtc.ICEConnectionStateConnected))
	assert.Equal(t, session.TransportCompleted, transportState(webrtc.ICEConnectionStateCompleted))
	assert.Equal(t, session.TransportDisconnected, transportState(webrtc.ICEConnectionStateDisconnected))
	assert.Equal(t, session.TransportFailed, transportState(webrtc.ICEConnectionStateFailed))
	assert.Equal(t, session.TransportClosed, transportState(webrtc.ICEConnectionStateClosed))

	assert.Equal(t, session.SignalingStable, signalingState(webrtc.SignalingStateStable))
	assert.Equal(t, session.SignalingHaveLocalOffer, signalingState(webrtc.SignalingStateHaveLocalOffer))
	assert.Equal(t, session.SignalingHaveRemoteOffer, signalingState(webrtc.SignalingStateHaveRemoteOffer))
	assert.Equal(t, session.SignalingClosed, signalingState(webrtc.SignalingStateClosed))
}

func TestEngineOffer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e := newTestEngine(t)
	ch, err := e.CreateDataChannel(session.ChannelLabel)
	require.NoError(t, err)
	assert.Equal(t, session.ChannelLabel, ch.Label())

	offer, err := e.Offer(session.OfferConstraints{}).Wait(ctx)
	require.NoError(t, err)

	c := offer.FirstContent()
	require.NotNil(t, c)
	assert.Equal(t, protocol.DescDataChannel, c.Description.DescType)
	assert.True(t, strings.Contains(c.Transport.SDP, "m=application"))
	assert.Equal(t, session.SignalingHaveLocalOffer, e.SignalingState())
	assert.NotNil(t, e.LocalDescription())
}

func TestEngineHandleOfferAndAnswer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	offerer := newTestEngine(t)
	answerer := newTestEngine(t)

	_, err := offerer.CreateDataChannel(session.ChannelLabel)
	require.NoError(t, err)
	offer, err := offerer.Offer(session.OfferConstraints{}).Wait(ctx)
	require.NoError(t, err)

	// Candidates before the remote description are queued, not rejected.
	_, err = answerer.ProcessICE(candidatePayload(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 10.0.0.1 9 typ host"})).Wait(ctx)
	require.NoError(t, err)

	_, err = answerer.HandleOffer(offer).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.SignalingHaveRemoteOffer, answerer.SignalingState())

	answer, err := answerer.Answer().Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.SignalingStable, answerer.SignalingState())

	_, err = offerer.HandleAnswer(answer).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.SignalingStable, offerer.SignalingState())
}

func TestEngineRejectsPayloadWithoutSDP(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.HandleOffer(&protocol.Payload{Contents: []protocol.Content{{Name: "data"}}}).Wait(context.Background())
	assert.ErrorIs(t, err, ErrNoSDP)
}

func TestEngineCloseIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, session.SignalingClosed, e.SignalingState())
}
