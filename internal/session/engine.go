package session

import (
	"io"
	"time"

	"github.com/rudransh-shrivastava/pitshare/internal/async"
	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
)

// ChannelLabel is the label of the data channel carrying file bytes.
const ChannelLabel = "filetransfer"

type OfferConstraints struct {
	OfferToReceiveAudio bool
	OfferToReceiveVideo bool
}

// Engine is the peer-connection engine a session drives. Callbacks may be
// invoked from any goroutine.
type Engine interface {
	Offer(constraints OfferConstraints) *async.Future[*protocol.Payload]
	Answer() *async.Future[*protocol.Payload]
	HandleOffer(offer *protocol.Payload) *async.Future[struct{}]
	HandleAnswer(answer *protocol.Payload) *async.Future[struct{}]
	ProcessICE(info *protocol.Payload) *async.Future[struct{}]

	CreateDataChannel(label string) (Channel, error)
	LocalDescription() *protocol.Payload
	SignalingState() SignalingState
	SetInitiator(initiator bool)
	IsInitiator() bool
	Close() error

	// OnCandidate receives each local candidate as a ready transport-info payload.
	OnCandidate(fn func(info *protocol.Payload))
	OnTransportStateChange(fn func(state TransportState))
	OnChannel(fn func(ch Channel))
}

// Channel is an ordered, reliable message channel with buffered-amount flow control.
type Channel interface {
	Label() string
	Send(data []byte) error
	OnOpen(fn func())
	OnMessage(fn func(data []byte))
	OnClose(fn func())
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(threshold uint64)
	OnBufferedAmountLow(fn func())
	Close() error
}

// File is the local file offered by an initiator.
type File struct {
	Name         string
	Size         int64
	LastModified time.Time
	Body         io.Reader
}

type SentFile struct {
	Algo string
	Hash string
}

type ReceivedFile struct {
	Name string
	Size int64
	Algo string
	Hash string
	// Path is where the file was stored once its hash was verified.
	Path string
}

type SenderEvents struct {
	Progress func(sent, total int64)
	Complete func(f SentFile)
	Failed   func(err error)
}

type ReceiverEvents struct {
	Progress func(received, total int64)
	Complete func(f ReceivedFile)
	Failed   func(err error)
}

// Sender streams a file over a channel. Send returns immediately.
type Sender interface {
	Send(file *File, ch Channel)
}

// Receiver consumes a file from a channel. initial holds bytes already read
// from the channel, if any. Nothing is written before Receive is called.
// Exactly one of Commit or Abort finishes a receiver: Commit once the hash
// has been verified, Abort on any other outcome.
type Receiver interface {
	Receive(initial []byte, ch Channel)
	Commit() (string, error)
	// Abort discards whatever was received. Calling it again is a no-op.
	Abort()
}

// TransferFactory builds the hashing sender and receiver for one session.
type TransferFactory interface {
	NewSender(algo string, events SenderEvents) (Sender, error)
	NewReceiver(meta Metadata, events ReceiverEvents) (Receiver, error)
}

// Signaler delivers outbound actions to the remote peer.
type Signaler interface {
	Send(sid string, action protocol.Action, payload *protocol.Payload) error
}
