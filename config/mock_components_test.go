package config

import (
	"context"
	"errors"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/sinks"
	"github.com/erhlee-bird/vector/sources"
	"github.com/erhlee-bird/vector/transforms"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var errNotRunnable = errors.New("mock components are not runnable")

type mockFileSource struct {
	Include []string `yaml:"include" validate:"required,min=1"`
}

func (c *mockFileSource) Build(context.Context, SourceContext) (sources.Source, error) {
	return nil, errNotRunnable
}
func (c *mockFileSource) OutputType() events.DataType { return events.DataTypeLog }
func (c *mockFileSource) SourceType() string          { return "file" }

type mockStdinSource struct{}

func (c *mockStdinSource) Build(context.Context, SourceContext) (sources.Source, error) {
	return nil, errNotRunnable
}
func (c *mockStdinSource) OutputType() events.DataType { return events.DataTypeLog }
func (c *mockStdinSource) SourceType() string          { return "stdin" }
func (c *mockStdinSource) Resources() []Resource       { return []Resource{Stdin()} }

type mockMetricSource struct{}

func (c *mockMetricSource) Build(context.Context, SourceContext) (sources.Source, error) {
	return nil, errNotRunnable
}
func (c *mockMetricSource) OutputType() events.DataType { return events.DataTypeMetric }
func (c *mockMetricSource) SourceType() string          { return "metrics" }

type mockParser struct {
	Field string `yaml:"field"`
}

func (c *mockParser) Build(context.Context, TransformContext) (transforms.Transform, error) {
	return nil, errNotRunnable
}
func (c *mockParser) InputType() events.DataType  { return events.DataTypeLog }
func (c *mockParser) OutputType() events.DataType { return events.DataTypeLog }
func (c *mockParser) TransformType() string       { return "json_parser" }

// mockRoute expands into one parser per lane.
type mockRoute struct {
	Lanes []string `yaml:"lanes" validate:"required"`
}

func (c *mockRoute) Build(context.Context, TransformContext) (transforms.Transform, error) {
	return nil, errors.New("route must be expanded")
}
func (c *mockRoute) InputType() events.DataType  { return events.DataTypeLog }
func (c *mockRoute) OutputType() events.DataType { return events.DataTypeLog }
func (c *mockRoute) TransformType() string       { return "route" }

func (c *mockRoute) Expand() (*orderedmap.OrderedMap[string, TransformConfig], error) {
	children := orderedmap.New[string, TransformConfig]()
	for _, lane := range c.Lanes {
		children.Set(lane, &mockParser{Field: lane})
	}
	return children, nil
}

// mockNested expands Depth times before settling. A negative depth never
// settles.
type mockNested struct {
	Depth int `yaml:"depth"`
}

func (c *mockNested) Build(context.Context, TransformContext) (transforms.Transform, error) {
	return nil, errNotRunnable
}
func (c *mockNested) InputType() events.DataType  { return events.DataTypeAny }
func (c *mockNested) OutputType() events.DataType { return events.DataTypeAny }
func (c *mockNested) TransformType() string       { return "nested" }

func (c *mockNested) Expand() (*orderedmap.OrderedMap[string, TransformConfig], error) {
	if c.Depth == 0 {
		return nil, nil
	}
	children := orderedmap.New[string, TransformConfig]()
	children.Set("left", &mockNested{Depth: c.Depth - 1})
	children.Set("right", &mockParser{})
	return children, nil
}

type mockBrokenMacro struct{}

func (c *mockBrokenMacro) Build(context.Context, TransformContext) (transforms.Transform, error) {
	return nil, errNotRunnable
}
func (c *mockBrokenMacro) InputType() events.DataType  { return events.DataTypeAny }
func (c *mockBrokenMacro) OutputType() events.DataType { return events.DataTypeAny }
func (c *mockBrokenMacro) TransformType() string       { return "broken_macro" }

func (c *mockBrokenMacro) Expand() (*orderedmap.OrderedMap[string, TransformConfig], error) {
	return nil, errors.New("lanes are required")
}

type mockConsoleSink struct {
	Encoding string `yaml:"encoding" validate:"omitempty,oneof=json text"`
}

func (c *mockConsoleSink) Build(context.Context, SinkContext) (sinks.Sink, sinks.Healthcheck, error) {
	return nil, nil, errNotRunnable
}
func (c *mockConsoleSink) InputType() events.DataType { return events.DataTypeAny }
func (c *mockConsoleSink) SinkType() string           { return "console" }

type mockSocketSink struct {
	Address string `yaml:"address" validate:"required"`
}

func (c *mockSocketSink) Build(context.Context, SinkContext) (sinks.Sink, sinks.Healthcheck, error) {
	return nil, nil, errNotRunnable
}
func (c *mockSocketSink) InputType() events.DataType { return events.DataTypeAny }
func (c *mockSocketSink) SinkType() string           { return "socket" }

func (c *mockSocketSink) Resources() []Resource {
	r, err := ParsePort(c.Address)
	if err != nil {
		return nil
	}
	return []Resource{r}
}

type mockLogSink struct{}

func (c *mockLogSink) Build(context.Context, SinkContext) (sinks.Sink, sinks.Healthcheck, error) {
	return nil, nil, errNotRunnable
}
func (c *mockLogSink) InputType() events.DataType { return events.DataTypeLog }
func (c *mockLogSink) SinkType() string           { return "log_only" }

func init() {
	RegisterSource("file", func() SourceConfig { return &mockFileSource{} })
	RegisterSource("stdin", func() SourceConfig { return &mockStdinSource{} })
	RegisterSource("metrics", func() SourceConfig { return &mockMetricSource{} })
	RegisterTransform("json_parser", func() TransformConfig { return &mockParser{} })
	RegisterTransform("route", func() TransformConfig { return &mockRoute{} })
	RegisterTransform("nested", func() TransformConfig { return &mockNested{} })
	RegisterTransform("broken_macro", func() TransformConfig { return &mockBrokenMacro{} })
	RegisterSink("console", func() SinkConfig { return &mockConsoleSink{} })
	RegisterSink("socket", func() SinkConfig { return &mockSocketSink{} })
	RegisterSink("log_only", func() SinkConfig { return &mockLogSink{} })
}
