package conditions

import (
	"testing"

	"github.com/erhlee-bird/vector/api/v1/events"
)

func mustBuild(t *testing.T, cfg CheckFieldsConfig) Condition {
	t.Helper()
	cond, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return cond
}

func TestCheckFieldsEquals(t *testing.T) {
	cond := mustBuild(t, CheckFieldsConfig{"message.equals": "hello", "status.eq": 200})

	if !cond.Check(events.NewLogEvent(map[string]any{"message": "hello", "status": 200.0})) {
		t.Error("expected match")
	}
	if cond.Check(events.NewLogEvent(map[string]any{"message": "hello", "status": 500})) {
		t.Error("expected mismatch on status")
	}
	if cond.Check(events.NewLogEvent(map[string]any{"status": 200})) {
		t.Error("expected mismatch on missing message")
	}
}

func TestCheckFieldsDottedFieldName(t *testing.T) {
	cond := mustBuild(t, CheckFieldsConfig{"tags.host.equals": "a"})
	m := &events.Metric{Name: "x", Tags: map[string]string{"host": "a"}}
	if !cond.Check(m) {
		t.Error("expected metric tag to match")
	}
}

func TestCheckFieldsStringPredicates(t *testing.T) {
	cond := mustBuild(t, CheckFieldsConfig{
		"message.contains":    "busy",
		"message.starts_with": "Sorry",
		"message.ends_with":   "Cecil",
		"message.regex":       "week",
		"level.exists":        false,
		"host.not_equals":     "b",
	})
	ev := events.NewLogEvent(map[string]any{"message": "Sorry, I'm busy this week Cecil", "host": "a"})
	if !cond.Check(ev) {
		t.Error("expected match")
	}
	ev.Insert("level", "info")
	if cond.Check(ev) {
		t.Error("expected mismatch once level exists")
	}
}

func TestCheckFieldsInvalid(t *testing.T) {
	for _, cfg := range []CheckFieldsConfig{
		{"message": "x"},
		{"message.": "x"},
		{"message.frobnicate": "x"},
		{"message.exists": "yes"},
		{"message.contains": 5},
		{"message.regex": "("},
	} {
		if _, err := cfg.Build(); err == nil {
			t.Errorf("Build(%v) = nil error, want error", cfg)
		}
	}
}
