package scripted

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/telemetry"
	"github.com/reugn/go-streams"
)

// ErrWorkerExited is reported when the worker stops before it was told to
// shut down. The transform does not process any further events.
var ErrWorkerExited = errors.New("scripted runtime worker exited")

const (
	DefaultCommandBuffer   = 1
	DefaultResultBuffer    = 100
	DefaultShutdownTimeout = 5 * time.Second
	DefaultTransformType   = "scripted"
)

type Options struct {
	// CommandBuffer bounds the command channel. The adapter blocks when it
	// is full, pushing back on upstream components.
	CommandBuffer int
	// ResultBuffer bounds the result channel. The worker blocks when it is
	// full.
	ResultBuffer int
	// ShutdownTimeout bounds how long the adapter waits for the worker to
	// finish its shutdown hook before abandoning it.
	ShutdownTimeout time.Duration
	// TransformType labels the telemetry of the transform.
	TransformType string
}

func (o Options) withDefaults() Options {
	if o.CommandBuffer <= 0 {
		o.CommandBuffer = DefaultCommandBuffer
	}
	if o.ResultBuffer <= 0 {
		o.ResultBuffer = DefaultResultBuffer
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.TransformType == "" {
		o.TransformType = DefaultTransformType
	}
	return o
}

type State int32

const (
	// StateIdle waits for the next input event or timer tick.
	StateIdle State = iota
	// StateProcessing forwards the worker's results until the done marker.
	StateProcessing
	// StateStopping runs the shutdown hook within the shutdown timeout.
	StateStopping
	// StateStopped is entered once the output has been closed.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Adapter is the streaming side of the bridge.
type Adapter struct {
	name     string
	opts     Options
	timers   []Timer
	in       chan any
	out      chan any
	commands chan command
	results  chan result
	errc     chan error
	state    atomic.Int32
}

// Start launches the worker, waits for its timer handshake and starts the
// adapter loop. Init is the first command the worker receives.
func Start(ctx context.Context, name string, factory Factory, opts Options) (*Adapter, error) {
	opts = opts.withDefaults()
	hs := make(chan handshake, 1)
	a := &Adapter{
		name:     name,
		opts:     opts,
		in:       make(chan any),
		out:      make(chan any),
		commands: make(chan command, opts.CommandBuffer),
		results:  make(chan result, opts.ResultBuffer),
		errc:     make(chan error, 1),
	}
	w := &worker{
		name:      name,
		typ:       opts.TransformType,
		factory:   factory,
		handshake: hs,
		commands:  a.commands,
		results:   a.results,
	}
	go w.run()

	select {
	case h := <-hs:
		if h.err != nil {
			return nil, fmt.Errorf("%s transform: %w", name, h.err)
		}
		a.timers = h.timers
	case <-ctx.Done():
		close(a.commands)
		return nil, ctx.Err()
	}

	a.commands <- command{kind: commandInit}
	a.state.Store(int32(StateProcessing))
	go a.run(ctx)
	return a, nil
}

func (a *Adapter) In() chan<- any {
	return a.in
}

func (a *Adapter) Out() <-chan any {
	return a.out
}

func (a *Adapter) Via(flow streams.Flow) streams.Flow {
	go a.transmit(flow)
	return flow
}

func (a *Adapter) To(sink streams.Sink) {
	go a.transmit(sink)
}

func (a *Adapter) transmit(inlet streams.Inlet) {
	for element := range a.Out() {
		inlet.In() <- element
	}
	close(inlet.In())
}

// Err receives ErrWorkerExited if the worker dies unexpectedly.
func (a *Adapter) Err() <-chan error {
	return a.errc
}

// Timers returns the timers the runtime declared at startup.
func (a *Adapter) Timers() []Timer {
	return a.timers
}

func (a *Adapter) State() State {
	return State(a.state.Load())
}

func (a *Adapter) setState(s State) {
	a.state.Store(int32(s))
}

func (a *Adapter) run(ctx context.Context) {
	defer a.setState(StateStopped)
	defer close(a.out)

	ticks, stopTimers := a.startTimers()
	defer stopTimers()

	for {
		switch a.State() {
		case StateIdle:
			select {
			case <-ctx.Done():
				stopTimers()
				a.shutdown(false)
				return
			case msg, ok := <-a.in:
				if !ok {
					stopTimers()
					a.shutdown(false)
					return
				}
				event, ok := msg.(events.Event)
				if !ok {
					slog.Warn(a.name+" transform: invalid event type", "type", fmt.Sprintf("%T", msg))
					continue
				}
				a.commands <- command{kind: commandProcess, event: event}
				telemetry.Processed("transform", a.opts.TransformType, a.name)
				a.setState(StateProcessing)
			case timer := <-ticks:
				a.commands <- command{kind: commandTimer, timer: timer}
				a.setState(StateProcessing)
			}

		case StateProcessing:
			select {
			case <-ctx.Done():
				stopTimers()
				a.shutdown(true)
				return
			case r, ok := <-a.results:
				if !ok {
					a.fail()
					a.discardInput()
					return
				}
				if r.done {
					a.setState(StateIdle)
					continue
				}
				select {
				case a.out <- r.event:
				case <-ctx.Done():
					stopTimers()
					a.shutdown(true, r.event)
					return
				}
			}
		}
	}
}

// shutdown sends the final Shutdown command and forwards the remaining
// results. When pending is set the answer to an earlier command is still
// outstanding and is forwarded first, after any held events. Everything,
// including the sends downstream, happens within the shutdown timeout.
func (a *Adapter) shutdown(pending bool, held ...events.Event) {
	a.setState(StateStopping)
	defer a.discardInput()

	deadline := time.NewTimer(a.opts.ShutdownTimeout)
	defer deadline.Stop()

	for _, event := range held {
		if !a.forward(event, deadline.C) {
			a.abandon()
			return
		}
	}

	select {
	case a.commands <- command{kind: commandShutdown}:
	case <-deadline.C:
		a.abandon()
		return
	}

	remaining := 1
	if pending {
		remaining++
	}
	for remaining > 0 {
		select {
		case r, ok := <-a.results:
			if !ok {
				a.fail()
				return
			}
			if r.done {
				remaining--
				continue
			}
			if !a.forward(r.event, deadline.C) {
				a.abandon()
				return
			}
		case <-deadline.C:
			a.abandon()
			return
		}
	}
	close(a.commands)
}

func (a *Adapter) forward(event events.Event, deadline <-chan time.Time) bool {
	select {
	case a.out <- event:
		return true
	case <-deadline:
		return false
	}
}

// abandon gives up on the worker. Closing the command channel ends its loop
// once the current hook returns, and its remaining results are dropped.
func (a *Adapter) abandon() {
	telemetry.Error("transform", a.opts.TransformType, a.name)
	slog.Error(a.name+" transform: worker did not shut down in time, abandoning it",
		"timeout", a.opts.ShutdownTimeout)
	close(a.commands)
	go func() {
		for range a.results {
			telemetry.Discarded("transform", a.opts.TransformType, a.name, "abandoned")
		}
	}()
}

func (a *Adapter) fail() {
	err := fmt.Errorf("%s transform: %w", a.name, ErrWorkerExited)
	slog.Error(a.name+" transform: worker exited unexpectedly", "error", err)
	select {
	case a.errc <- err:
	default:
	}
}

// discardInput keeps upstream from blocking on a stopped adapter.
func (a *Adapter) discardInput() {
	go func() {
		for range a.in {
			telemetry.Discarded("transform", a.opts.TransformType, a.name, "stopped")
		}
	}()
}

// startTimers starts one ticker per declared timer and merges them into a
// single channel. A ticker holds at most one pending tick, so a slow worker
// sees coalesced ticks instead of a growing backlog.
func (a *Adapter) startTimers() (<-chan Timer, func()) {
	ticks := make(chan Timer)
	stop := make(chan struct{})
	for _, timer := range a.timers {
		if timer.Interval <= 0 {
			slog.Warn(a.name+" transform: ignoring timer with non-positive interval", "timer", timer.ID)
			continue
		}
		go func(timer Timer) {
			ticker := time.NewTicker(timer.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					select {
					case ticks <- timer:
					case <-stop:
						return
					}
				}
			}
		}(timer)
	}
	var stopped atomic.Bool
	return ticks, func() {
		if stopped.CompareAndSwap(false, true) {
			close(stop)
		}
	}
}
