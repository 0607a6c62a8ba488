package protocol

import (
	"fmt"
	"strings"
	"time"
)

// Envelope is the unit exchanged on a signaling connection.
type Envelope struct {
	SID     string   `json:"sid"`
	Action  Action   `json:"action"`
	Payload *Payload `json:"payload,omitempty"`
	// Error is set on ActionError envelopes. Ref names the action being rejected.
	Error *Error `json:"error,omitempty"`
	Ref   Action `json:"ref,omitempty"`
}

type Payload struct {
	Contents []Content `json:"contents,omitempty"`
	Reason   Reason    `json:"reason,omitempty"`
}

type Content struct {
	Creator     string       `json:"creator,omitempty"`
	Name        string       `json:"name,omitempty"`
	Description *Description `json:"description,omitempty"`
	Transport   *Transport   `json:"transport,omitempty"`
}

type Description struct {
	DescType DescriptionType `json:"descType"`
	Offer    *FileOffer      `json:"offer,omitempty"`
}

// FileOffer is the file metadata layered onto a filetransfer description.
// A description-info update carries only Hash.
type FileOffer struct {
	Date *time.Time `json:"date,omitempty"`
	Name string     `json:"name,omitempty"`
	Size int64      `json:"size,omitempty"`
	Hash *Hash      `json:"hash,omitempty"`
}

type Hash struct {
	Algo  string `json:"algo"`
	Value string `json:"value"`
}

func (h Hash) Empty() bool {
	return h.Value == ""
}

func (h Hash) Equal(o Hash) bool {
	return strings.EqualFold(h.Algo, o.Algo) && strings.EqualFold(h.Value, o.Value)
}

// Transport holds what the connection engine needs to reach the peer.
// SDP is opaque outside the engine.
type Transport struct {
	TransportType string      `json:"transportType,omitempty"`
	SDP           string      `json:"sdp,omitempty"`
	Candidates    []Candidate `json:"candidates,omitempty"`
}

type Candidate struct {
	Candidate        string `json:"candidate"`
	SDPMid           string `json:"sdpMid,omitempty"`
	SDPMLineIndex    uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment string `json:"usernameFragment,omitempty"`
}

// Error is returned to the peer when an inbound action cannot be applied.
type Error struct {
	Condition Condition `json:"condition"`
	Text      string    `json:"text,omitempty"`
}

func (e *Error) Error() string {
	if e.Text == "" {
		return string(e.Condition)
	}
	return fmt.Sprintf("%s: %s", e.Condition, e.Text)
}

func NewError(cond Condition, format string, args ...any) *Error {
	return &Error{Condition: cond, Text: fmt.Sprintf(format, args...)}
}

// Clone returns a deep copy so callers can rewrite contents without
// touching a payload owned by someone else.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	out := &Payload{Reason: p.Reason}
	if p.Contents != nil {
		out.Contents = make([]Content, len(p.Contents))
		for i, c := range p.Contents {
			out.Contents[i] = c.clone()
		}
	}
	return out
}

func (c Content) clone() Content {
	out := Content{Creator: c.Creator, Name: c.Name}
	if c.Description != nil {
		d := *c.Description
		if d.Offer != nil {
			offer := *d.Offer
			if offer.Hash != nil {
				h := *offer.Hash
				offer.Hash = &h
			}
			if offer.Date != nil {
				date := *offer.Date
				offer.Date = &date
			}
			d.Offer = &offer
		}
		out.Description = &d
	}
	if c.Transport != nil {
		t := *c.Transport
		t.Candidates = append([]Candidate(nil), c.Transport.Candidates...)
		out.Transport = &t
	}
	return out
}

// FirstContent returns the leading content block, or nil.
func (p *Payload) FirstContent() *Content {
	if p == nil || len(p.Contents) == 0 {
		return nil
	}
	return &p.Contents[0]
}

// FileOffer returns the offer of the leading filetransfer description, or nil.
func (p *Payload) FileOffer() *FileOffer {
	c := p.FirstContent()
	if c == nil || c.Description == nil || c.Description.DescType != DescFileTransfer {
		return nil
	}
	return c.Description.Offer
}

func BuildTerminatePayload(reason Reason) *Payload {
	return &Payload{Reason: reason}
}

func BuildErrorEnvelope(sid string, ref Action, err *Error) *Envelope {
	return &Envelope{SID: sid, Action: ActionError, Ref: ref, Error: err}
}
