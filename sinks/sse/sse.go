// Package sse serves the events it receives to HTTP clients as server-sent
// events.
package sse

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/codecs"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/event_server"
	"github.com/erhlee-bird/vector/sinks"
)

const SinkType = "sse"

type Config struct {
	Address  string          `yaml:"address" validate:"required"`
	Path     string          `yaml:"path" validate:"omitempty,startswith=/"`
	Encoding codecs.Encoding `yaml:"encoding" validate:"omitempty,oneof=json text"`

	bound net.Addr
}

func init() {
	config.RegisterSink(SinkType, func() config.SinkConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType { return events.DataTypeAny }
func (c *Config) SinkType() string           { return SinkType }

func (c *Config) Resources() []config.Resource {
	r, err := config.ParsePort(c.Address)
	if err != nil {
		return nil
	}
	return []config.Resource{r}
}

func (c *Config) Build(ctx context.Context, cx config.SinkContext) (sinks.Sink, sinks.Healthcheck, error) {
	if _, err := config.ParsePort(c.Address); err != nil {
		return nil, nil, err
	}
	codec, err := codecs.New(c.Encoding, cx.Globals.LogSchema.Message())
	if err != nil {
		return nil, nil, err
	}
	listener, err := net.Listen("tcp", c.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("sse sink: %w", err)
	}
	c.bound = listener.Addr()

	server := event_server.NewEventServer(cx.Name, c.Path, codec)
	go func() {
		if err := server.Serve(ctx, listener); err != nil {
			slog.Error("sse sink: server failed", "component", cx.Name, "error", err)
		}
	}()

	consumer := sinks.ConsumerFunc(func(_ context.Context, event events.Event) error {
		return server.Broadcast(event)
	})
	return sinks.NewStreamSink(ctx, cx.Name, SinkType, consumer, cx.Acker), sinks.Healthy, nil
}
