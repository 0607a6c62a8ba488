package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"testing"
	"time"

	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
)

func newTestTransports(t *testing.T, tlsConf *tls.Config) (*Transport, *Transport) {
	t.Helper()
	server, err := NewTransport("127.0.0.1:0", tlsConf)
	if err != nil {
		t.Fatalf("NewTransport server failed: %v", err)
	}
	t.Cleanup(func() { _ = server.Close() })

	client, err := NewTransport("127.0.0.1:0", tlsConf)
	if err != nil {
		t.Fatalf("NewTransport client failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func TestTransportCreateAndClose(t *testing.T) {
	tr, err := NewTransport("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("NewTransport failed: %v", err)
	}

	if tr.LocalAddr() == nil {
		t.Error("Expected non-nil local address")
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}

	if _, err := tr.Accept(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Accept, got %v", err)
	}
	if _, err := tr.Dial(context.Background(), "127.0.0.1:1"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Dial, got %v", err)
	}
}

func TestTransportAcceptCancelled(t *testing.T) {
	tr, err := NewTransport("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("NewTransport failed: %v", err)
	}
	defer func() { _ = tr.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := tr.Accept(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func testPeerSendReceive(t *testing.T, tlsConf *tls.Config) {
	server, client := newTestTransports(t, tlsConf)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *protocol.Envelope, 1)
	errChan := make(chan error, 1)

	go func() {
		peer, err := server.Accept(ctx)
		if err != nil {
			errChan <- err
			return
		}
		defer func() { _ = peer.Close() }()

		env, err := peer.Receive(ctx)
		if err != nil {
			errChan <- err
			return
		}
		received <- env
	}()

	clientPeer, err := client.Dial(ctx, server.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = clientPeer.Close() }()

	err = clientPeer.Send(ctx, &protocol.Envelope{
		SID:     "s1",
		Action:  protocol.ActionSessionTerminate,
		Payload: protocol.BuildTerminatePayload(protocol.ReasonCancel),
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case env := <-received:
		if env.SID != "s1" || env.Action != protocol.ActionSessionTerminate {
			t.Errorf("Unexpected envelope: %+v", env)
		}
		if env.Payload == nil || env.Payload.Reason != protocol.ReasonCancel {
			t.Errorf("Expected cancel reason, got %+v", env.Payload)
		}
	case err := <-errChan:
		t.Fatalf("Receive failed: %v", err)
	case <-ctx.Done():
		t.Fatal("Timeout waiting for envelope")
	}
}

func TestPeerSendReceive(t *testing.T) {
	testPeerSendReceive(t, nil)
}

func TestPeerSendReceiveTLS(t *testing.T) {
	tlsConf, err := DefaultTLSConfig()
	if err != nil {
		t.Fatalf("DefaultTLSConfig failed: %v", err)
	}
	testPeerSendReceive(t, tlsConf)
}

func TestPeerBidirectionalExchange(t *testing.T) {
	server, client := newTestTransports(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	clientDone := make(chan struct{})

	go func() {
		peer, err := server.Accept(ctx)
		if err != nil {
			errChan <- err
			return
		}
		defer func() { _ = peer.Close() }()

		env, err := peer.Receive(ctx)
		if err != nil {
			errChan <- err
			return
		}

		reply := protocol.BuildErrorEnvelope(env.SID, env.Action,
			protocol.NewError(protocol.ConditionUnknownSession, "no session %s", env.SID))
		if err := peer.Send(ctx, reply); err != nil {
			errChan <- err
			return
		}

		<-clientDone
	}()

	clientPeer, err := client.Dial(ctx, server.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = clientPeer.Close() }()

	err = clientPeer.Send(ctx, &protocol.Envelope{SID: "missing", Action: protocol.ActionTransportInfo, Payload: &protocol.Payload{}})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	env, err := clientPeer.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	close(clientDone)

	if env.Action != protocol.ActionError {
		t.Fatalf("Expected error action, got %s", env.Action)
	}
	if env.Error == nil || env.Error.Condition != protocol.ConditionUnknownSession {
		t.Errorf("Expected unknown-session, got %+v", env.Error)
	}
	if env.Ref != protocol.ActionTransportInfo {
		t.Errorf("Expected ref transport-info, got %s", env.Ref)
	}

	select {
	case err := <-errChan:
		if err != nil {
			t.Fatalf("Server error: %v", err)
		}
	default:
	}
}

func TestPeerReceiveAfterRemoteClose(t *testing.T) {
	server, client := newTestTransports(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		peer, err := server.Accept(ctx)
		if err == nil {
			_ = peer.Close()
		}
	}()

	clientPeer, err := client.Dial(ctx, server.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = clientPeer.Close() }()

	if _, err := clientPeer.Receive(ctx); err == nil {
		t.Error("Expected error after remote close")
	}
}

func TestGenerateSelfSignedCert(t *testing.T) {
	cert, err := GenerateSelfSignedCert()
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert failed: %v", err)
	}

	if len(cert.Certificate) == 0 {
		t.Error("Expected non-empty certificate")
	}
}
