// Package generator emits a fixed set of lines, mostly for testing
// topologies.
package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/sources"
	"github.com/erhlee-bird/vector/telemetry"
)

const SourceType = "generator"

type Config struct {
	Lines []string `yaml:"lines" validate:"required,min=1"`
	// Count is how many times the lines are emitted. Zero repeats forever.
	Count    int    `yaml:"count" validate:"gte=0"`
	Interval string `yaml:"interval"`
	// Sequence prefixes every line with its sequence number.
	Sequence bool `yaml:"sequence"`
}

func init() {
	config.RegisterSource(SourceType, func() config.SourceConfig { return &Config{} })
}

func (c *Config) OutputType() events.DataType { return events.DataTypeLog }
func (c *Config) SourceType() string          { return SourceType }

func (c *Config) Build(ctx context.Context, cx config.SourceContext) (sources.Source, error) {
	var interval time.Duration
	if c.Interval != "" {
		d, err := time.ParseDuration(c.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", c.Interval, err)
		}
		interval = d
	}
	schema := cx.Globals.LogSchema

	return func() error {
		var ticker *time.Ticker
		if interval > 0 {
			ticker = time.NewTicker(interval)
			defer ticker.Stop()
		}
		seq := 0
		for round := 0; c.Count == 0 || round < c.Count; round++ {
			if ticker != nil && round > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
			for _, line := range c.Lines {
				if c.Sequence {
					line = fmt.Sprintf("%d %s", seq, line)
				}
				seq++
				if !sources.Emit(ctx, cx.Out, schema.NewLogEvent(line, SourceType)) {
					return nil
				}
				telemetry.Processed("source", SourceType, cx.Name)
			}
		}
		return nil
	}, nil
}
