// Package blackhole discards every event it receives.
package blackhole

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/sinks"
)

const SinkType = "blackhole"

type Config struct {
	// PrintInterval logs the running total this often when set.
	PrintInterval time.Duration `yaml:"print_interval" validate:"gte=0"`

	counter *atomic.Int64
}

func init() {
	config.RegisterSink(SinkType, func() config.SinkConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType { return events.DataTypeAny }
func (c *Config) SinkType() string           { return SinkType }

func (c *Config) Build(ctx context.Context, cx config.SinkContext) (sinks.Sink, sinks.Healthcheck, error) {
	count := c.counter
	if count == nil {
		count = &atomic.Int64{}
	}
	if c.PrintInterval > 0 {
		go func() {
			ticker := time.NewTicker(c.PrintInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					slog.Info("blackhole sink: events received", "component", cx.Name, "total", count.Load())
				}
			}
		}()
	}
	consumer := sinks.ConsumerFunc(func(context.Context, events.Event) error {
		count.Add(1)
		return nil
	})
	return sinks.NewStreamSink(ctx, cx.Name, SinkType, consumer, cx.Acker), sinks.Healthy, nil
}
