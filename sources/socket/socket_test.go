package socket

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
)

func TestSocketReceivesLines(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &Config{Address: "127.0.0.1:0"}
	out := make(chan any, 10)
	task, err := cfg.Build(ctx, config.SourceContext{Name: "in", Globals: &config.GlobalOptions{}, Out: out})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- task() }()

	conn, err := net.Dial("tcp", cfg.bound.String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	fmt.Fprint(conn, "first\nsecond\n")
	conn.Close()

	for _, want := range []string{"first", "second"} {
		select {
		case msg := <-out:
			event := msg.(*events.LogEvent)
			if got, _ := event.Get("message"); got != want {
				t.Errorf("got message %v, want %q", got, want)
			}
			if host, _ := event.Get("host"); host == nil || host == "" {
				t.Error("expected the peer address in host")
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for %q", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("task error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for socket source to stop")
	}
}

func TestSocketResources(t *testing.T) {
	got := (&Config{Address: ":9000"}).Resources()
	want, _ := config.ParsePort("0.0.0.0:9000")
	if len(got) != 1 || got[0] != want {
		t.Errorf("got %v, want [%v]", got, want)
	}
	if got := (&Config{Address: "nope"}).Resources(); got != nil {
		t.Errorf("expected no resources for an invalid address, got %v", got)
	}
}

func TestSocketBuildRejectsBadAddress(t *testing.T) {
	_, err := (&Config{Address: "localhost"}).Build(context.Background(), config.SourceContext{Globals: &config.GlobalOptions{}})
	if err == nil {
		t.Error("expected an error for an address without a port")
	}
}
