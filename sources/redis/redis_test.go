package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
	"github.com/redis/go-redis/v9"
)

func start(t *testing.T, cfg *Config) chan any {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan any, 10)
	task, err := cfg.Build(ctx, config.SourceContext{Name: "in", Globals: &config.GlobalOptions{}, Out: out})
	if err != nil {
		cancel()
		t.Fatalf("Build() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- task() }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Error("timeout waiting for redis source to stop")
		}
	})
	return out
}

func receive(t *testing.T, out chan any) *events.LogEvent {
	t.Helper()
	select {
	case msg := <-out:
		event, ok := msg.(*events.LogEvent)
		if !ok {
			t.Fatalf("got %T, want *events.LogEvent", msg)
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return nil
}

func TestRedisListSource(t *testing.T) {
	mr := miniredis.RunT(t)
	out := start(t, &Config{Addr: mr.Addr(), Key: "logs", DataType: DataTypeList, Encoding: "json"})

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	if err := client.RPush(context.Background(), "logs", `{"message":"one"}`, `{"message":"two"}`).Err(); err != nil {
		t.Fatalf("RPush() error = %v", err)
	}

	for _, want := range []string{"one", "two"} {
		event := receive(t, out)
		if got, _ := event.Get("message"); got != want {
			t.Errorf("got message %v, want %q", got, want)
		}
		if got, _ := event.Get("redis_key"); got != "logs" {
			t.Errorf("got redis_key %v", got)
		}
	}
}

func TestRedisChannelSource(t *testing.T) {
	mr := miniredis.RunT(t)
	out := start(t, &Config{Addr: mr.Addr(), Key: "events"})

	// Publish until the subscription is live.
	deadline := time.After(2 * time.Second)
	for mr.Publish("events", "hello") == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for subscriber")
		case <-time.After(10 * time.Millisecond):
		}
	}

	event := receive(t, out)
	if got, _ := event.Get("message"); got != "hello" {
		t.Errorf("got message %v, want hello", got)
	}
	if got, _ := event.Get("source_type"); got != SourceType {
		t.Errorf("got source_type %v", got)
	}
}
