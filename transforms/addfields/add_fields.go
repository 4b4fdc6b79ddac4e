// Package addfields sets static fields on log events.
package addfields

import (
	"context"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/transforms"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const TransformType = "add_fields"

type Config struct {
	Fields *orderedmap.OrderedMap[string, any] `yaml:"fields" validate:"required"`
	// Overwrite replaces existing values. Defaults to true.
	Overwrite *bool `yaml:"overwrite"`
}

func init() {
	config.RegisterTransform(TransformType, func() config.TransformConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType  { return events.DataTypeLog }
func (c *Config) OutputType() events.DataType { return events.DataTypeLog }
func (c *Config) TransformType() string       { return TransformType }

func (c *Config) Build(ctx context.Context, cx config.TransformContext) (transforms.Transform, error) {
	overwrite := c.Overwrite == nil || *c.Overwrite
	fields := c.Fields
	return transforms.FromFunction(cx.Name, TransformType, transforms.Map(func(event events.Event) events.Event {
		log, ok := event.(*events.LogEvent)
		if !ok {
			return event
		}
		for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
			if _, exists := log.Get(pair.Key); exists && !overwrite {
				continue
			}
			log.Insert(pair.Key, pair.Value)
		}
		return log
	})), nil
}
