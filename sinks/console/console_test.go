package console

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/buffers"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/sinks"
)

// syncBuffer is a bytes.Buffer protected by a mutex for concurrent use in tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func run(t *testing.T, cfg *Config, msgs ...any) *buffers.CountingAcker {
	t.Helper()
	acker := &buffers.CountingAcker{}
	sink, healthcheck, err := cfg.Build(context.Background(), config.SinkContext{
		Name:    "out",
		Globals: &config.GlobalOptions{},
		Acker:   acker,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := healthcheck(context.Background()); err != nil {
		t.Errorf("healthcheck error = %v", err)
	}
	for _, msg := range msgs {
		sink.In() <- msg
	}
	close(sink.In())
	waitDone(t, sink)
	return acker
}

func waitDone(t *testing.T, sink sinks.Sink) {
	t.Helper()
	select {
	case <-sink.Done():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for the sink to drain")
	}
}

func TestConsoleWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	acker := run(t, &Config{writer: &buf},
		events.NewLogEvent(map[string]any{"message": "one"}),
		events.NewLogEvent(map[string]any{"message": "two"}),
	)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || lines[0] != `{"message":"one"}` || lines[1] != `{"message":"two"}` {
		t.Errorf("unexpected output %q", buf.String())
	}
	if acker.Acked() != 2 {
		t.Errorf("acked %d events, want 2", acker.Acked())
	}
}

func TestConsoleWritesText(t *testing.T) {
	var buf syncBuffer
	run(t, &Config{writer: &buf, Encoding: "text"}, events.NewLogEvent(map[string]any{"message": "plain", "other": 1}))
	if buf.String() != "plain\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestConsoleSkipsInvalidTypes(t *testing.T) {
	var buf syncBuffer
	acker := run(t, &Config{writer: &buf}, "not-an-event", events.NewLogEvent(map[string]any{"message": "ok"}))
	if acker.Acked() != 1 {
		t.Errorf("acked %d events, want 1", acker.Acked())
	}
}

func TestConsoleLogTarget(t *testing.T) {
	var buf syncBuffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	run(t, &Config{Target: TargetLog, Level: LevelWarn}, events.NewLogEvent(map[string]any{"vehicle": "v42", "empty": ""}))
	got := buf.String()
	if !strings.Contains(got, `"level":"WARN"`) || !strings.Contains(got, "v42") {
		t.Errorf("unexpected log output %s", got)
	}
	if strings.Contains(got, "empty") {
		t.Errorf("expected empty attributes to be skipped, got %s", got)
	}
}
