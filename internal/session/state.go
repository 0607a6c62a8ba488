package session

type Role int

const (
	RoleUnset Role = iota
	RoleInitiator
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "unset"
	}
}

// State only moves forward: new, pending, active, ended.
type State int

const (
	StateNew State = iota
	StatePending
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

type ConnectionState int

const (
	ConnectionStarting ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionInterrupted
	ConnectionDisconnected
	ConnectionFailed
)

func (c ConnectionState) String() string {
	switch c {
	case ConnectionStarting:
		return "starting"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionConnected:
		return "connected"
	case ConnectionInterrupted:
		return "interrupted"
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TransportState mirrors the engine's ICE connection state.
type TransportState int

const (
	TransportNew TransportState = iota
	TransportChecking
	TransportConnected
	TransportCompleted
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (t TransportState) String() string {
	switch t {
	case TransportNew:
		return "new"
	case TransportChecking:
		return "checking"
	case TransportConnected:
		return "connected"
	case TransportCompleted:
		return "completed"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type SignalingState int

const (
	SignalingStable SignalingState = iota
	SignalingHaveLocalOffer
	SignalingHaveRemoteOffer
	SignalingHaveLocalPranswer
	SignalingHaveRemotePranswer
	SignalingClosed
)

func (s SignalingState) String() string {
	switch s {
	case SignalingStable:
		return "stable"
	case SignalingHaveLocalOffer:
		return "have-local-offer"
	case SignalingHaveRemoteOffer:
		return "have-remote-offer"
	case SignalingHaveLocalPranswer:
		return "have-local-pranswer"
	case SignalingHaveRemotePranswer:
		return "have-remote-pranswer"
	case SignalingClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionStateFor maps an engine transport state to the session's
// connection state. ok is false when the state leaves it unchanged.
func ConnectionStateFor(ts TransportState, signalingStable bool) (state ConnectionState, ok bool) {
	switch ts {
	case TransportChecking:
		return ConnectionConnecting, true
	case TransportConnected, TransportCompleted:
		return ConnectionConnected, true
	case TransportDisconnected:
		if signalingStable {
			return ConnectionInterrupted, true
		}
		return ConnectionDisconnected, true
	case TransportFailed:
		return ConnectionFailed, true
	case TransportClosed:
		return ConnectionDisconnected, true
	default:
		return 0, false
	}
}
