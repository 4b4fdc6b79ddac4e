package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/transforms"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func build(t *testing.T, cfg *Config) *transforms.FunctionTransform {
	t.Helper()
	transform, err := cfg.Build(context.Background(), config.TransformContext{Name: "throttle"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return transform.(*transforms.FunctionTransform)
}

func passed(th *transforms.FunctionTransform, n int, fields map[string]any) int {
	count := 0
	for i := 0; i < n; i++ {
		if th.Transform(events.NewLogEvent(fields)) != nil {
			count++
		}
	}
	return count
}

func TestThrottleWindow(t *testing.T) {
	c := &clock{t: time.Unix(1000, 0)}
	th := build(t, &Config{Threshold: 2, WindowSecs: 5, now: c.now})

	if got := passed(th, 5, nil); got != 2 {
		t.Errorf("passed %d events in the first window, want 2", got)
	}
	c.t = c.t.Add(5 * time.Second)
	if got := passed(th, 5, nil); got != 2 {
		t.Errorf("passed %d events in the next window, want 2", got)
	}
}

func TestThrottlePerKey(t *testing.T) {
	c := &clock{t: time.Unix(1000, 0)}
	th := build(t, &Config{Threshold: 1, KeyField: "user", now: c.now})

	if got := passed(th, 3, map[string]any{"user": "a"}); got != 1 {
		t.Errorf("passed %d events for a, want 1", got)
	}
	if got := passed(th, 3, map[string]any{"user": "b"}); got != 1 {
		t.Errorf("passed %d events for b, want 1", got)
	}
}

func TestThrottleRequiresThreshold(t *testing.T) {
	cfg := &Config{}
	if _, err := cfg.Build(context.Background(), config.TransformContext{Name: "throttle"}); err == nil {
		t.Error("expected error for a zero threshold")
	}
}
