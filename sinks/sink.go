package sinks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/buffers"
	"github.com/erhlee-bird/vector/telemetry"
	"github.com/reugn/go-streams"
)

// Sink consumes the events wired into it and closes Done once its input
// has been closed and fully drained.
type Sink interface {
	streams.Sink
	Done() <-chan struct{}
}

// Healthcheck probes the sink's downstream service.
type Healthcheck func(ctx context.Context) error

// Healthy is the healthcheck of sinks with nothing to probe.
func Healthy(context.Context) error {
	return nil
}

// Consumer handles one event at a time for a StreamSink.
type Consumer interface {
	Consume(ctx context.Context, event events.Event) error
}

// Flusher is implemented by consumers holding events back, such as batching
// sinks. Flush is called once the input is exhausted.
type Flusher interface {
	Flush(ctx context.Context) error
}

type ConsumerFunc func(ctx context.Context, event events.Event) error

func (f ConsumerFunc) Consume(ctx context.Context, event events.Event) error {
	return f(ctx, event)
}

// StreamSink drives a Consumer from its input channel.
type StreamSink struct {
	name     string
	sinkType string
	consumer Consumer
	acker    buffers.Acker
	in       chan any
	done     chan struct{}
}

func NewStreamSink(ctx context.Context, name, sinkType string, consumer Consumer, acker buffers.Acker) *StreamSink {
	if acker == nil {
		acker = buffers.NullAcker
	}
	sink := &StreamSink{
		name:     name,
		sinkType: sinkType,
		consumer: consumer,
		acker:    acker,
		in:       make(chan any),
		done:     make(chan struct{}),
	}
	go sink.doSink(ctx)
	return sink
}

func (s *StreamSink) doSink(ctx context.Context) {
	defer close(s.done)
	// Events already accepted are written out even after shutdown starts.
	ctx = context.WithoutCancel(ctx)

	for msg := range s.in {
		event, ok := msg.(events.Event)
		if !ok {
			slog.Warn(s.sinkType+" sink: invalid event type", "component", s.name, "type", fmt.Sprintf("%T", msg))
			continue
		}
		if err := s.consumer.Consume(ctx, event); err != nil {
			telemetry.Error("sink", s.sinkType, s.name)
			slog.Error(s.sinkType+" sink: failed to write event", "component", s.name, "error", err)
			continue
		}
		telemetry.Processed("sink", s.sinkType, s.name)
		s.acker.Ack(1)
	}
	if f, ok := s.consumer.(Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			telemetry.Error("sink", s.sinkType, s.name)
			slog.Error(s.sinkType+" sink: failed to flush", "component", s.name, "error", err)
		}
	}
}

func (s *StreamSink) In() chan<- any {
	return s.in
}

func (s *StreamSink) Done() <-chan struct{} {
	return s.done
}
