package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func pipeDialer(dials chan net.Conn) func(ctx context.Context) (io.ReadWriteCloser, error) {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		clientSide, serverSide := net.Pipe()
		dials <- serverSide
		return clientSide, nil
	}
}

func awaitDial(t *testing.T, dials chan net.Conn) net.Conn {
	t.Helper()
	select {
	case conn := <-dials:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a dial attempt")
		return nil
	}
}

// serveHandshake plays the server side of auth and join over a pipe.
func serveHandshake(t *testing.T, conn net.Conn) (*json.Decoder, *json.Encoder) {
	t.Helper()
	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var f map[string]interface{}
	if err := decoder.Decode(&f); err != nil {
		t.Fatalf("decode auth frame: %v", err)
	}
	if f["type"] != "auth" {
		t.Fatalf("first frame type = %v, want auth", f["type"])
	}
	if err := encoder.Encode(map[string]any{"type": "auth_success", "user_id": 1, "role": "user"}); err != nil {
		t.Fatalf("encode auth_success: %v", err)
	}

	if err := decoder.Decode(&f); err != nil {
		t.Fatalf("decode join frame: %v", err)
	}
	if f["type"] != "join_consultation" {
		t.Fatalf("second frame type = %v, want join_consultation", f["type"])
	}
	if err := encoder.Encode(map[string]any{"type": "joined_consultation", "consultation_id": 10}); err != nil {
		t.Fatalf("encode joined_consultation: %v", err)
	}
	return decoder, encoder
}

func newTestClient(dials chan net.Conn) *Client {
	return New(Config{
		Token:            "tok",
		ConsultationID:   10,
		ReconnectBackoff: 10 * time.Millisecond,
		PingInterval:     time.Hour,
		Dial:             pipeDialer(dials),
	})
}

func TestClientReconnectsWithFullHandshakeAfterDrop(t *testing.T) {
	dials := make(chan net.Conn, 4)
	client := newTestClient(dials)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	first := awaitDial(t, dials)
	serveHandshake(t, first)
	_ = first.Close() // simulate an unexpected drop

	// the client must redial and rerun auth and join from scratch
	second := awaitDial(t, dials)
	_, encoder := serveHandshake(t, second)

	if err := encoder.Encode(map[string]any{
		"type":    "message_sent",
		"message": map[string]any{"content": "hello again"},
	}); err != nil {
		t.Fatalf("encode message: %v", err)
	}

	select {
	case f := <-client.Frames():
		if f["type"] != "message_sent" {
			t.Fatalf("frame type = %v, want message_sent", f["type"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame from the second connection")
	}
}

func TestClientRetriesAfterFailedDial(t *testing.T) {
	dials := make(chan net.Conn, 4)
	failures := 1
	inner := pipeDialer(dials)
	client := New(Config{
		Token:            "tok",
		ConsultationID:   10,
		ReconnectBackoff: 10 * time.Millisecond,
		PingInterval:     time.Hour,
		Dial: func(ctx context.Context) (io.ReadWriteCloser, error) {
			if failures > 0 {
				failures--
				return nil, errors.New("connection refused")
			}
			return inner(ctx)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	conn := awaitDial(t, dials)
	serveHandshake(t, conn)
}

func TestReconnectCancelsInFlightAttempt(t *testing.T) {
	dials := make(chan net.Conn, 4)
	client := newTestClient(dials)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	// first attempt hangs: the server never reads the handshake, so the
	// client's auth write is blocked mid-Encode when Reconnect arrives
	stalled := awaitDial(t, dials)
	defer stalled.Close()

	client.Reconnect()

	fresh := awaitDial(t, dials)
	serveHandshake(t, fresh)
}

func TestClientDropsSilentConnection(t *testing.T) {
	dials := make(chan net.Conn, 4)
	client := New(Config{
		Token:            "tok",
		ConsultationID:   10,
		ReconnectBackoff: 10 * time.Millisecond,
		PingInterval:     15 * time.Millisecond,
		IdleTimeout:      40 * time.Millisecond,
		Dial:             pipeDialer(dials),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	first := awaitDial(t, dials)
	decoder, _ := serveHandshake(t, first)

	// the server goes silent: it drains pings but never writes back, so the
	// client must declare the connection dead and redial on its own
	go func() {
		var f map[string]interface{}
		for decoder.Decode(&f) == nil {
		}
	}()

	second := awaitDial(t, dials)
	serveHandshake(t, second)
}

func TestSendWithoutConnectionFails(t *testing.T) {
	client := New(Config{Token: "tok"})
	if err := client.SendChat("hello"); err != ErrNotConnected {
		t.Fatalf("SendChat err = %v, want ErrNotConnected", err)
	}
}
