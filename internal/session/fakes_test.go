package session

import (
	"fmt"
	"io"
	"sync"

	"github.com/rudransh-shrivastava/pitshare/internal/async"
	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/sirupsen/logrus"
)

type fakeEngine struct {
	mu sync.Mutex

	offer       *protocol.Payload
	offerErr    error
	offerFuture *async.Future[*protocol.Payload]
	answer      *protocol.Payload
	answerErr   error

	handleOfferErr  error
	handleAnswerErr error
	processICEErr   error

	handledOffers  []*protocol.Payload
	handledAnswers []*protocol.Payload
	processedICE   []*protocol.Payload

	channels  []*fakeChannel
	initiator bool
	signaling SignalingState
	closed    int

	onCandidate func(*protocol.Payload)
	onState     func(TransportState)
	onChannel   func(Channel)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		offer: &protocol.Payload{Contents: []protocol.Content{{
			Creator:     "initiator",
			Name:        "data",
			Description: &protocol.Description{DescType: protocol.DescDataChannel},
			Transport:   &protocol.Transport{TransportType: "iceUdp", SDP: "offer-sdp"},
		}}},
		answer: &protocol.Payload{Contents: []protocol.Content{{
			Creator:     "initiator",
			Name:        "data",
			Description: &protocol.Description{DescType: protocol.DescDataChannel},
			Transport:   &protocol.Transport{TransportType: "iceUdp", SDP: "answer-sdp"},
		}}},
	}
}

func (e *fakeEngine) Offer(OfferConstraints) *async.Future[*protocol.Payload] {
	if e.offerFuture != nil {
		return e.offerFuture
	}
	return async.Resolved(e.offer, e.offerErr)
}

func (e *fakeEngine) Answer() *async.Future[*protocol.Payload] {
	return async.Resolved(e.answer, e.answerErr)
}

func (e *fakeEngine) HandleOffer(p *protocol.Payload) *async.Future[struct{}] {
	e.mu.Lock()
	e.handledOffers = append(e.handledOffers, p)
	e.mu.Unlock()
	return async.Resolved(struct{}{}, e.handleOfferErr)
}

func (e *fakeEngine) HandleAnswer(p *protocol.Payload) *async.Future[struct{}] {
	e.mu.Lock()
	e.handledAnswers = append(e.handledAnswers, p)
	e.mu.Unlock()
	return async.Resolved(struct{}{}, e.handleAnswerErr)
}

func (e *fakeEngine) ProcessICE(p *protocol.Payload) *async.Future[struct{}] {
	e.mu.Lock()
	e.processedICE = append(e.processedICE, p)
	e.mu.Unlock()
	return async.Resolved(struct{}{}, e.processICEErr)
}

func (e *fakeEngine) CreateDataChannel(label string) (Channel, error) {
	ch := newFakeChannel(label)
	e.mu.Lock()
	e.channels = append(e.channels, ch)
	e.mu.Unlock()
	return ch, nil
}

func (e *fakeEngine) LocalDescription() *protocol.Payload {
	if e.initiator {
		return e.offer
	}
	return e.answer
}

func (e *fakeEngine) SignalingState() SignalingState { return e.signaling }
func (e *fakeEngine) SetInitiator(v bool) { e.initiator = v }
func (e *fakeEngine) IsInitiator() bool { return e.initiator }

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	e.closed++
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) OnCandidate(fn func(*protocol.Payload)) { e.onCandidate = fn }
func (e *fakeEngine) OnTransportStateChange(fn func(TransportState)) { e.onState = fn }
func (e *fakeEngine) OnChannel(fn func(Channel)) { e.onChannel = fn }

type fakeChannel struct {
	label  string
	open   func()
	sent   [][]byte
	closed bool
}

func newFakeChannel(label string) *fakeChannel {
	return &fakeChannel{label: label}
}

func (c *fakeChannel) Label() string { return c.label }
func (c *fakeChannel) Send(data []byte) error { c.sent = append(c.sent, data); return nil }
func (c *fakeChannel) OnOpen(fn func()) { c.open = fn }
func (c *fakeChannel) OnMessage(func([]byte)) {}
func (c *fakeChannel) OnClose(func()) {}
func (c *fakeChannel) BufferedAmount() uint64 { return 0 }
func (c *fakeChannel) SetBufferedAmountLowThreshold(uint64) {}
func (c *fakeChannel) OnBufferedAmountLow(func()) {}
func (c *fakeChannel) Close() error { c.closed = true; return nil }

type fakeSender struct {
	algo   string
	events SenderEvents
	sends  int
	file   *File
}

func (f *fakeSender) Send(file *File, _ Channel) {
	f.sends++
	f.file = file
}

type fakeReceiver struct {
	meta      Metadata
	events    ReceiverEvents
	channels  []Channel
	commits   int
	aborts    int
	commitErr error
}

func (f *fakeReceiver) Receive(_ []byte, ch Channel) {
	f.channels = append(f.channels, ch)
}

func (f *fakeReceiver) Commit() (string, error) {
	f.commits++
	if f.commitErr != nil {
		return "", f.commitErr
	}
	return "/downloads/" + f.meta.Name, nil
}

func (f *fakeReceiver) Abort() {
	f.aborts++
}

type fakeTransfers struct {
	sender      *fakeSender
	receiver    *fakeReceiver
	receiverErr error
}

func (f *fakeTransfers) NewSender(algo string, events SenderEvents) (Sender, error) {
	f.sender = &fakeSender{algo: algo, events: events}
	return f.sender, nil
}

func (f *fakeTransfers) NewReceiver(meta Metadata, events ReceiverEvents) (Receiver, error) {
	if f.receiverErr != nil {
		return nil, f.receiverErr
	}
	f.receiver = &fakeReceiver{meta: meta, events: events}
	return f.receiver, nil
}

type sentMessage struct {
	sid     string
	action  protocol.Action
	payload *protocol.Payload
}

type fakeSignaler struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeSignaler) Send(sid string, action protocol.Action, payload *protocol.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{sid: sid, action: action, payload: payload})
	return nil
}

func (f *fakeSignaler) actions() []protocol.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Action, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.action)
	}
	return out
}

func (f *fakeSignaler) last(action protocol.Action) *sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].action == action {
			m := f.sent[i]
			return &m
		}
	}
	return nil
}

func (f *fakeSignaler) count(action protocol.Action) int {
	n := 0
	for _, a := range f.actions() {
		if a == action {
			n++
		}
	}
	return n
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
	files  []ReceivedFile

	onAccepted func(s *Session)
	onEnded    func(s *Session)
}

func (o *recordingObserver) record(format string, args ...any) {
	o.mu.Lock()
	o.events = append(o.events, fmt.Sprintf(format, args...))
	o.mu.Unlock()
}

func (o *recordingObserver) Accepted(s *Session) {
	o.record("accepted")
	if o.onAccepted != nil {
		o.onAccepted(s)
	}
}

func (o *recordingObserver) SentFile(_ *Session, f SentFile) {
	o.record("sent %s:%s", f.Algo, f.Hash)
}

func (o *recordingObserver) ReceivedFile(_ *Session, f ReceivedFile) {
	o.mu.Lock()
	o.files = append(o.files, f)
	o.mu.Unlock()
	o.record("received %s:%s", f.Algo, f.Hash)
}

func (o *recordingObserver) Ended(s *Session, reason protocol.Reason) {
	o.record("ended %s", reason)
	if o.onEnded != nil {
		o.onEnded(s)
	}
}

func (o *recordingObserver) ConnectionStateChanged(_ *Session, state ConnectionState) {
	o.record("connection %s", state)
}

func (o *recordingObserver) Progress(_ *Session, dir Direction, done, total int64) {
	o.record("progress %s %d/%d", dir, done, total)
}

func (o *recordingObserver) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func (o *recordingObserver) count(event string) int {
	n := 0
	for _, e := range o.list() {
		if e == event {
			n++
		}
	}
	return n
}

type harness struct {
	session   *Session
	engine    *fakeEngine
	signaler  *fakeSignaler
	transfers *fakeTransfers
	observer  *recordingObserver
}

func newHarness() *harness {
	log := logrus.New()
	log.SetOutput(io.Discard)

	h := &harness{
		engine:    newFakeEngine(),
		signaler:  &fakeSignaler{},
		transfers: &fakeTransfers{},
		observer:  &recordingObserver{},
	}
	s, err := New(Options{
		SID:       "sid-1",
		Peer:      "peer-a",
		Engine:    h.engine,
		Signaler:  h.signaler,
		Transfers: h.transfers,
		Observer:  h.observer,
		Logger:    log,
	})
	if err != nil {
		panic(err)
	}
	h.session = s
	return h
}

func testFile() *File {
	return &File{Name: "notes.txt", Size: 11}
}

func initiatePayload(hash string) *protocol.Payload {
	return &protocol.Payload{Contents: []protocol.Content{{
		Creator: "initiator",
		Name:    "data",
		Description: &protocol.Description{
			DescType: protocol.DescFileTransfer,
			Offer: &protocol.FileOffer{
				Name: "notes.txt",
				Size: 11,
				Hash: &protocol.Hash{Algo: protocol.HashAlgoSHA1, Value: hash},
			},
		},
		Transport: &protocol.Transport{TransportType: "iceUdp", SDP: "offer-sdp"},
	}}}
}

func hashInfoPayload(algo, value string) *protocol.Payload {
	return &protocol.Payload{Contents: []protocol.Content{{
		Name: "data",
		Description: &protocol.Description{
			DescType: protocol.DescFileTransfer,
			Offer:    &protocol.FileOffer{Hash: &protocol.Hash{Algo: algo, Value: value}},
		},
	}}}
}

// dispatch delivers an inbound action and reports whether done was called and with what.
func (h *harness) dispatch(action protocol.Action, p *protocol.Payload) (called bool, err error) {
	h.session.Dispatch(action, p, func(e error) {
		called = true
		err = e
	})
	return called, err
}
