// Package throttle rate limits log events, optionally per key.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/telemetry"
	"github.com/erhlee-bird/vector/transforms"
	"golang.org/x/time/rate"
)

const TransformType = "throttle"

type Config struct {
	// Threshold is the number of events allowed per window.
	Threshold int `yaml:"threshold" validate:"required,gt=0"`
	// WindowSecs is the window length in seconds. Defaults to one second.
	WindowSecs float64 `yaml:"window_secs" validate:"gte=0"`
	// KeyField gives each value of the field its own budget.
	KeyField string `yaml:"key_field"`

	now func() time.Time
}

func init() {
	config.RegisterTransform(TransformType, func() config.TransformConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType  { return events.DataTypeLog }
func (c *Config) OutputType() events.DataType { return events.DataTypeLog }
func (c *Config) TransformType() string       { return TransformType }

func (c *Config) Build(ctx context.Context, cx config.TransformContext) (transforms.Transform, error) {
	window := time.Second
	if c.WindowSecs > 0 {
		window = time.Duration(c.WindowSecs * float64(time.Second))
	}
	if c.Threshold <= 0 {
		return nil, fmt.Errorf("throttle %q: threshold must be positive", cx.Name)
	}
	t := &throttler{
		name:     cx.Name,
		limit:    rate.Every(window / time.Duration(c.Threshold)),
		burst:    c.Threshold,
		keyField: c.KeyField,
		now:      c.now,
		limiters: map[string]*rate.Limiter{},
	}
	if t.now == nil {
		t.now = time.Now
	}
	return transforms.FromFunction(cx.Name, TransformType, t), nil
}

type throttler struct {
	name     string
	limit    rate.Limit
	burst    int
	keyField string
	now      func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func (t *throttler) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[key] = l
	}
	return l
}

func (t *throttler) TransformInto(output *[]events.Event, event events.Event) {
	var key string
	if log, ok := event.(*events.LogEvent); ok && t.keyField != "" {
		if value, found := log.Get(t.keyField); found {
			key = fmt.Sprint(value)
		}
	}
	if !t.limiter(key).AllowN(t.now(), 1) {
		telemetry.Discarded("transform", TransformType, t.name, "rate_limited")
		return
	}
	*output = append(*output, event)
}
