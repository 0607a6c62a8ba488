package session

import (
	"time"

	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
)

type Direction int

const (
	Upload Direction = iota
	Download
)

func (d Direction) String() string {
	if d == Upload {
		return "upload"
	}
	return "download"
}

// Observer receives session notifications. Notifications are delivered
// outside the session's loop, so handlers may call back into the session.
type Observer interface {
	Accepted(s *Session)
	SentFile(s *Session, f SentFile)
	ReceivedFile(s *Session, f ReceivedFile)
	Ended(s *Session, reason protocol.Reason)
	ConnectionStateChanged(s *Session, state ConnectionState)
	Progress(s *Session, dir Direction, done, total int64)
}

type NopObserver struct{}

func (NopObserver) Accepted(*Session) {}
func (NopObserver) SentFile(*Session, SentFile) {}
func (NopObserver) ReceivedFile(*Session, ReceivedFile) {}
func (NopObserver) Ended(*Session, protocol.Reason) {}
func (NopObserver) ConnectionStateChanged(*Session, ConnectionState) {}
func (NopObserver) Progress(*Session, Direction, int64, int64) {}

var _ Observer = NopObserver{}

// Metadata describes the file a responder is receiving.
type Metadata struct {
	Name     string
	Size     int64
	Date     time.Time
	Declared protocol.Hash
	// Computed is set once the whole stream has been received and hashed.
	Computed *protocol.Hash
}

func metadataFromOffer(offer *protocol.FileOffer, fallbackAlgo string) Metadata {
	meta := Metadata{
		Name:     offer.Name,
		Size:     offer.Size,
		Declared: protocol.Hash{Algo: fallbackAlgo},
	}
	if offer.Date != nil {
		meta.Date = *offer.Date
	}
	if offer.Hash != nil {
		if offer.Hash.Algo != "" {
			meta.Declared.Algo = offer.Hash.Algo
		}
		meta.Declared.Value = offer.Hash.Value
	}
	return meta
}
