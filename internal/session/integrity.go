package session

import "github.com/rudransh-shrivastava/pitshare/internal/protocol"

type Verdict int

const (
	VerdictPending Verdict = iota
	VerdictVerified
	VerdictCorrupted
)

func (v Verdict) String() string {
	switch v {
	case VerdictVerified:
		return "verified"
	case VerdictCorrupted:
		return "corrupted"
	default:
		return "pending"
	}
}

// Verify compares the declared hash with the computed one. Nothing is
// decided until both are known.
func Verify(declared protocol.Hash, computed *protocol.Hash) Verdict {
	if declared.Empty() || computed == nil {
		return VerdictPending
	}
	if declared.Equal(*computed) {
		return VerdictVerified
	}
	return VerdictCorrupted
}

func (s *Session) checkCompletion() {
	side := s.transfer.receiver
	if s.ended() || side == nil {
		return
	}

	switch Verify(side.meta.Declared, side.meta.Computed) {
	case VerdictVerified:
		path, err := s.transfer.commit()
		if err != nil {
			s.log.Errorf("Failed to store %q: %v", side.meta.Name, err)
			s.end(protocol.ReasonFailedApplication, false)
			return
		}
		f := ReceivedFile{
			Name: side.meta.Name,
			Size: side.meta.Size,
			Algo: side.meta.Computed.Algo,
			Hash: side.meta.Computed.Value,
			Path: path,
		}
		s.log.Infof("Received %q into %s, hash verified", f.Name, path)
		s.loop.notify(func() { s.observer.ReceivedFile(s, f) })
		s.end(protocol.ReasonSuccess, false)
	case VerdictCorrupted:
		s.log.Warnf("Hash mismatch: declared %s:%s, computed %s:%s",
			side.meta.Declared.Algo, side.meta.Declared.Value,
			side.meta.Computed.Algo, side.meta.Computed.Value)
		s.end(protocol.ReasonMediaError, false)
	}
}
