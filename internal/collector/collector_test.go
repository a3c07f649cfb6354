package collector

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"iotfleet-sim/internal/logging"
)

func TestCollectorCountsPayloads(t *testing.T) {
	c, err := New("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	quiet := logging.NewContext(context.Background(), slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(quiet)
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	payload := make([]byte, 1024)
	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", c.Addr().String())
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		if _, err := conn.Write(payload); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		conn.Close()
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		s := c.Stats()
		if s.Connections == 3 && s.Bytes == 3*1024 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stats = %+v, want 3 connections / %d bytes", s, 3*1024)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestCollectorCloseIsIdempotent(t *testing.T) {
	c, err := New("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
