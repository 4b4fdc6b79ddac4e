// Package route splits a stream into lanes. A route expands into one filter
// per lane, so "<name>.<lane>" can be used as an input downstream.
package route

import (
	"context"
	"errors"
	"fmt"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/conditions"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/transforms"
	"github.com/erhlee-bird/vector/transforms/filter"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const TransformType = "route"

type Config struct {
	Route *orderedmap.OrderedMap[string, conditions.Config] `yaml:"route" validate:"required"`
}

func init() {
	config.RegisterTransform(TransformType, func() config.TransformConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType  { return events.DataTypeAny }
func (c *Config) OutputType() events.DataType { return events.DataTypeAny }
func (c *Config) TransformType() string       { return TransformType }

func (c *Config) Build(context.Context, config.TransformContext) (transforms.Transform, error) {
	return nil, errors.New("route transforms are expanded before they are built")
}

func (c *Config) Expand() (*orderedmap.OrderedMap[string, config.TransformConfig], error) {
	if c.Route.Len() == 0 {
		return nil, errors.New("at least one lane is required")
	}
	lanes := orderedmap.New[string, config.TransformConfig]()
	for pair := c.Route.Oldest(); pair != nil; pair = pair.Next() {
		if _, err := pair.Value.Build(); err != nil {
			return nil, fmt.Errorf("lane %q: %w", pair.Key, err)
		}
		lanes.Set(pair.Key, &filter.Config{Condition: pair.Value})
	}
	return lanes, nil
}
