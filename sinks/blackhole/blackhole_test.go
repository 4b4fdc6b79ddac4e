package blackhole

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/buffers"
	"github.com/erhlee-bird/vector/config"
)

func TestBlackholeCountsEvents(t *testing.T) {
	var count atomic.Int64
	acker := &buffers.CountingAcker{}
	cfg := &Config{counter: &count}
	sink, _, err := cfg.Build(context.Background(), config.SinkContext{Name: "void", Globals: &config.GlobalOptions{}, Acker: acker})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		sink.In() <- events.NewLogEvent(map[string]any{"message": i})
	}
	sink.In() <- &events.Metric{Name: "m", Kind: events.MetricKindAbsolute, ValueType: events.MetricValueGauge}
	close(sink.In())

	select {
	case <-sink.Done():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for the sink to drain")
	}
	if count.Load() != 4 || acker.Acked() != 4 {
		t.Errorf("got count %d and %d acks, want 4", count.Load(), acker.Acked())
	}
}
