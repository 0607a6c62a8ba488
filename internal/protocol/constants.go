package protocol

const (
	// MaxEnvelopeSize bounds a single framed signaling message.
	MaxEnvelopeSize = 1 << 20

	HashAlgoSHA1   = "sha-1"
	HashAlgoSHA256 = "sha-256"
)

// Action names a signaling message.
type Action string

const (
	ActionSessionInitiate  Action = "session-initiate"
	ActionSessionAccept    Action = "session-accept"
	ActionSessionTerminate Action = "session-terminate"
	ActionTransportInfo    Action = "transport-info"
	ActionDescriptionInfo  Action = "description-info"
	// ActionError carries a negative acknowledgement for a previously received action.
	ActionError Action = "error"
)

func (a Action) String() string {
	return string(a)
}

func (a Action) Valid() bool {
	switch a {
	case ActionSessionInitiate, ActionSessionAccept, ActionSessionTerminate,
		ActionTransportInfo, ActionDescriptionInfo, ActionError:
		return true
	default:
		return false
	}
}

// Reason is the terminal reason of a session.
type Reason string

const (
	ReasonSuccess           Reason = "success"
	ReasonDecline           Reason = "decline"
	ReasonCancel            Reason = "cancel"
	ReasonTimeout           Reason = "timeout"
	ReasonGone              Reason = "gone"
	ReasonBusy              Reason = "busy"
	ReasonFailedApplication Reason = "failed-application"
	ReasonFailedTransport   Reason = "failed-transport"
	ReasonMediaError        Reason = "media-error"
	ReasonGeneralError      Reason = "general-error"
)

func (r Reason) String() string {
	if r == "" {
		return "unknown"
	}
	return string(r)
}

// Condition classifies an error returned for an inbound action.
type Condition string

const (
	ConditionGeneralError    Condition = "general-error"
	ConditionBadRequest      Condition = "bad-request"
	ConditionOutOfOrder      Condition = "out-of-order"
	ConditionUnknownSession  Condition = "unknown-session"
	ConditionUnsupportedInfo Condition = "unsupported-info"
)

// DescriptionType selects the variant of a content description.
type DescriptionType string

const (
	DescFileTransfer DescriptionType = "filetransfer"
	DescDataChannel  DescriptionType = "datachannel"
)
