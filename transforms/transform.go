package transforms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/telemetry"
	"github.com/reugn/go-streams"
)

// Transform is the runnable stage built from a transform configuration.
// TransformStream starts the stage; an error aborts topology assembly.
type Transform interface {
	TransformStream(ctx context.Context) (streams.Flow, error)
}

// Fallible is implemented by transforms that can fail after they started.
// A value on Err means the transform stopped processing for good.
type Fallible interface {
	Err() <-chan error
}

// Function is a synchronous transform producing zero or more events per
// input event.
type Function interface {
	TransformInto(output *[]events.Event, event events.Event)
}

type FunctionFunc func(output *[]events.Event, event events.Event)

func (f FunctionFunc) TransformInto(output *[]events.Event, event events.Event) {
	f(output, event)
}

// Map lifts a one-to-one function into a Function. A nil result drops the
// event.
func Map(f func(events.Event) events.Event) FunctionFunc {
	return func(output *[]events.Event, event events.Event) {
		if out := f(event); out != nil {
			*output = append(*output, out)
		}
	}
}

// FunctionTransform exposes a Function through both the synchronous and the
// streaming contracts.
type FunctionTransform struct {
	name          string
	transformType string
	fn            Function
}

// FromFunction wraps fn for the component called name.
func FromFunction(name, transformType string, fn Function) *FunctionTransform {
	return &FunctionTransform{name: name, transformType: transformType, fn: fn}
}

// Transform runs a single event and returns the first result, or nil when
// the event was dropped.
func (t *FunctionTransform) Transform(event events.Event) events.Event {
	var output []events.Event
	t.fn.TransformInto(&output, event)
	if len(output) == 0 {
		return nil
	}
	return output[0]
}

func (t *FunctionTransform) TransformInto(output *[]events.Event, event events.Event) {
	t.fn.TransformInto(output, event)
}

func (t *FunctionTransform) TransformStream(ctx context.Context) (streams.Flow, error) {
	return NewFunctionStream(t.name, t.transformType, t.fn), nil
}

// FunctionStream drives a Function over an unbounded stream, keeping the
// arrival order of the events it does not drop.
type FunctionStream struct {
	name          string
	transformType string
	fn            Function
	in            chan any
	out           chan any
}

func NewFunctionStream(name, transformType string, fn Function) *FunctionStream {
	stream := &FunctionStream{
		name:          name,
		transformType: transformType,
		fn:            fn,
		in:            make(chan any),
		out:           make(chan any),
	}
	go stream.doStream()
	return stream
}

func (s *FunctionStream) In() chan<- any {
	return s.in
}

func (s *FunctionStream) Out() <-chan any {
	return s.out
}

func (s *FunctionStream) Via(flow streams.Flow) streams.Flow {
	go s.transmit(flow)
	return flow
}

func (s *FunctionStream) To(sink streams.Sink) {
	go s.transmit(sink)
}

func (s *FunctionStream) transmit(inlet streams.Inlet) {
	for element := range s.Out() {
		inlet.In() <- element
	}
	close(inlet.In())
}

func (s *FunctionStream) doStream() {
	defer close(s.out)
	output := make([]events.Event, 0, 1)
	for msg := range s.in {
		event, ok := msg.(events.Event)
		if !ok {
			slog.Warn(s.transformType+" transform: invalid event type", "component", s.name, "type", fmt.Sprintf("%T", msg))
			continue
		}
		output = output[:0]
		s.fn.TransformInto(&output, event)
		if len(output) == 0 {
			telemetry.Discarded("transform", s.transformType, s.name, "dropped")
			continue
		}
		telemetry.Processed("transform", s.transformType, s.name)
		for _, out := range output {
			s.out <- out
		}
	}
}
