// Package filter keeps the events matching a condition.
package filter

import (
	"context"
	"fmt"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/conditions"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/telemetry"
	"github.com/erhlee-bird/vector/transforms"
)

const TransformType = "filter"

type Config struct {
	Condition conditions.Config `yaml:"condition"`
}

func init() {
	config.RegisterTransform(TransformType, func() config.TransformConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType  { return events.DataTypeAny }
func (c *Config) OutputType() events.DataType { return events.DataTypeAny }
func (c *Config) TransformType() string       { return TransformType }

func (c *Config) Build(ctx context.Context, cx config.TransformContext) (transforms.Transform, error) {
	cond, err := c.Condition.Build()
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", cx.Name, err)
	}
	return transforms.FromFunction(cx.Name, TransformType, New(cx.Name, cond)), nil
}

// New returns a function passing the events cond accepts. Drops are
// reported for the component called name.
func New(name string, cond conditions.Condition) transforms.FunctionFunc {
	return func(output *[]events.Event, event events.Event) {
		if !cond.Check(event) {
			telemetry.Discarded("transform", TransformType, name, "condition_failed")
			return
		}
		*output = append(*output, event)
	}
}
