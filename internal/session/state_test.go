package session

import (
	"testing"

	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
)

func TestConnectionStateFor(t *testing.T) {
	tests := []struct {
		transport TransportState
		stable    bool
		want      ConnectionState
		ok        bool
	}{
		{TransportNew, true, 0, false},
		{TransportChecking, false, ConnectionConnecting, true},
		{TransportConnected, false, ConnectionConnected, true},
		{TransportCompleted, true, ConnectionConnected, true},
		{TransportDisconnected, true, ConnectionInterrupted, true},
		{TransportDisconnected, false, ConnectionDisconnected, true},
		{TransportFailed, true, ConnectionFailed, true},
		{TransportClosed, true, ConnectionDisconnected, true},
		{TransportState(42), true, 0, false},
	}

	for _, tt := range tests {
		got, ok := ConnectionStateFor(tt.transport, tt.stable)
		if ok != tt.ok {
			t.Errorf("%s (stable=%v): expected ok=%v, got %v", tt.transport, tt.stable, tt.ok, ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("%s (stable=%v): expected %s, got %s", tt.transport, tt.stable, tt.want, got)
		}
	}
}

func TestStateOrdering(t *testing.T) {
	if !(StateNew < StatePending && StatePending < StateActive && StateActive < StateEnded) {
		t.Error("expected states to be ordered new < pending < active < ended")
	}
}

func TestVerify(t *testing.T) {
	sha1 := func(v string) protocol.Hash { return protocol.Hash{Algo: protocol.HashAlgoSHA1, Value: v} }
	computed := sha1("abc")

	tests := []struct {
		name     string
		declared protocol.Hash
		computed *protocol.Hash
		want     Verdict
	}{
		{"nothing known", sha1(""), nil, VerdictPending},
		{"declared only", sha1("abc"), nil, VerdictPending},
		{"computed only", sha1(""), &computed, VerdictPending},
		{"match", sha1("abc"), &computed, VerdictVerified},
		{"match ignoring case", sha1("ABC"), &computed, VerdictVerified},
		{"mismatch", sha1("abd"), &computed, VerdictCorrupted},
		{"other algorithm", protocol.Hash{Algo: protocol.HashAlgoSHA256, Value: "abc"}, &computed, VerdictCorrupted},
	}

	for _, tt := range tests {
		if got := Verify(tt.declared, tt.computed); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}
}
