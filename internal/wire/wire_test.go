package wire

import (
	"net"
	"testing"
	"time"
)

func pipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return server, client
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	server, client := pipe(t)

	req := Request{Command: CommandRegister, ParticipantID: "alice", IP: "127.0.0.1", Port: 9001}

	go func() {
		if err := WriteFrame(server, req); err != nil {
			t.Errorf("WriteFrame: %v", err)
		}
	}()

	var got Request
	if err := ReadFrame(client, &got); err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got != req {
		t.Fatalf("got %+v, want %+v", got, req)
	}
}

func TestWriteFrameOversize(t *testing.T) {
	_, client := pipe(t)

	big := Request{ParticipantID: string(make([]byte, MaxFrameSize+1))}
	if err := WriteFrame(client, big); err == nil {
		t.Fatal("expected error for oversized frame, got nil")
	}
}

func TestReadFrameMalformed(t *testing.T) {
	server, client := pipe(t)

	go func() {
		_, _ = server.Write([]byte("not json"))
	}()

	var req Request
	if err := ReadFrame(client, &req); err == nil {
		t.Fatal("expected decode error for malformed frame, got nil")
	}
}

func TestDeliveryTimeRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	d := NewDelivery("alice", "hello", at)

	got := d.Time()
	if got.Unix() != at.Unix() {
		t.Fatalf("got %v, want %v", got, at)
	}
}
