package scripted

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/reugn/go-streams"
)

// Transform builds an Adapter per topology start. It also runs events
// synchronously through TransformInto, on a worker of its own that is
// started on first use. Timers only fire on the streaming path.
type Transform struct {
	name    string
	factory Factory
	opts    Options

	mu     sync.Mutex
	direct *session
}

func New(name string, factory Factory, opts Options) *Transform {
	return &Transform{name: name, factory: factory, opts: opts.withDefaults()}
}

func (t *Transform) TransformStream(ctx context.Context) (streams.Flow, error) {
	a, err := Start(ctx, t.name, t.factory, t.opts)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Transform runs one event and returns the first result, or nil when the
// runtime emitted nothing.
func (t *Transform) Transform(event events.Event) events.Event {
	var output []events.Event
	t.TransformInto(&output, event)
	if len(output) == 0 {
		return nil
	}
	if len(output) > 1 {
		slog.Warn(t.name+" transform: dropping extra events on the single event path", "count", len(output)-1)
	}
	return output[0]
}

// TransformInto runs the process hook for event and appends everything it
// emitted. The first call also hands over the output of the init hook.
func (t *Transform) TransformInto(output *[]events.Event, event events.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.session()
	if err != nil {
		slog.Error(t.name+" transform: runtime unavailable", "error", err)
		return
	}
	*output = append(*output, s.held...)
	s.held = nil
	*output = s.call(command{kind: commandProcess, event: event}, *output)
}

// Shutdown runs the shutdown hook of the synchronous worker, appends what it
// emitted and stops the worker. A later TransformInto starts a fresh one.
func (t *Transform) Shutdown(output *[]events.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.direct
	if s == nil {
		return
	}
	t.direct = nil
	if s.err != nil {
		return
	}
	*output = append(*output, s.held...)
	*output = s.call(command{kind: commandShutdown}, *output)
	close(s.commands)
}

// session is a worker driven one command at a time.
type session struct {
	name     string
	commands chan command
	results  chan result
	held     []events.Event
	err      error
}

func (t *Transform) session() (*session, error) {
	if t.direct != nil {
		return t.direct, t.direct.err
	}
	hs := make(chan handshake, 1)
	s := &session{
		name:     t.name,
		commands: make(chan command, 1),
		results:  make(chan result, t.opts.ResultBuffer),
	}
	w := &worker{
		name:      t.name,
		typ:       t.opts.TransformType,
		factory:   t.factory,
		handshake: hs,
		commands:  s.commands,
		results:   s.results,
	}
	go w.run()

	t.direct = s
	if h := <-hs; h.err != nil {
		s.err = fmt.Errorf("%s transform: %w", t.name, h.err)
		return s, s.err
	}
	s.held = s.call(command{kind: commandInit}, nil)
	return s, s.err
}

// call sends cmd and collects the results up to the done marker. A worker
// that exits instead fails the session.
func (s *session) call(cmd command, output []events.Event) []events.Event {
	s.commands <- cmd
	for r := range s.results {
		if r.done {
			return output
		}
		output = append(output, r.event)
	}
	s.err = fmt.Errorf("%s transform: %w", s.name, ErrWorkerExited)
	slog.Error(s.name+" transform: worker exited unexpectedly", "error", s.err)
	return output
}
