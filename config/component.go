package config

import (
	"context"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/buffers"
	"github.com/erhlee-bird/vector/sinks"
	"github.com/erhlee-bird/vector/sources"
	"github.com/erhlee-bird/vector/transforms"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SourceContext is handed to a source when it is built.
type SourceContext struct {
	Name    string
	Globals *GlobalOptions
	// Out receives every event the source produces. It is closed by the
	// topology once the source task returns.
	Out chan<- any
}

type SourceConfig interface {
	// Build returns the source task. The task must return once ctx is done.
	Build(ctx context.Context, cx SourceContext) (sources.Source, error)
	OutputType() events.DataType
	SourceType() string
}

type TransformContext struct {
	Name    string
	Globals *GlobalOptions
}

type TransformConfig interface {
	Build(ctx context.Context, cx TransformContext) (transforms.Transform, error)
	InputType() events.DataType
	OutputType() events.DataType
	TransformType() string
}

type SinkContext struct {
	Name    string
	Globals *GlobalOptions
	Acker   buffers.Acker
}

type SinkConfig interface {
	Build(ctx context.Context, cx SinkContext) (sinks.Sink, sinks.Healthcheck, error)
	InputType() events.DataType
	SinkType() string
}

// Resourcer is implemented by component configurations that claim
// exclusive resources.
type Resourcer interface {
	Resources() []Resource
}

// Expander is implemented by transforms that replace themselves with a set
// of child transforms. A nil map means the transform is kept as is.
type Expander interface {
	Expand() (*orderedmap.OrderedMap[string, TransformConfig], error)
}

func resourcesOf(cfg any) []Resource {
	if r, ok := cfg.(Resourcer); ok {
		return r.Resources()
	}
	return nil
}
