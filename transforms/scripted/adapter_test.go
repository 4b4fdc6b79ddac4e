package scripted

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
)

type fakeRuntime struct {
	NopHooks
	timers   []Timer
	process  func(event events.Event, emit Emit) error
	init     func(emit Emit) error
	shutdown func(emit Emit) error
	onTimer  func(timer Timer, emit Emit) error
	closed   *atomic.Bool
}

func (r *fakeRuntime) Timers() []Timer {
	return r.timers
}

func (r *fakeRuntime) HookInit(emit Emit) error {
	if r.init != nil {
		return r.init(emit)
	}
	return nil
}

func (r *fakeRuntime) HookProcess(event events.Event, emit Emit) error {
	if r.process != nil {
		return r.process(event, emit)
	}
	emit(event)
	return nil
}

func (r *fakeRuntime) HookShutdown(emit Emit) error {
	if r.shutdown != nil {
		return r.shutdown(emit)
	}
	return nil
}

func (r *fakeRuntime) TimerHandler(timer Timer, emit Emit) error {
	if r.onTimer != nil {
		return r.onTimer(timer, emit)
	}
	return nil
}

func (r *fakeRuntime) Close() {
	if r.closed != nil {
		r.closed.Store(true)
	}
}

func factoryFor(rt *fakeRuntime) Factory {
	return func() (Runtime, error) { return rt, nil }
}

func message(s string) events.Event {
	return events.NewLogEvent(map[string]any{"message": s})
}

func messageOf(t *testing.T, msg any) string {
	t.Helper()
	event, ok := msg.(events.Event)
	if !ok {
		t.Fatalf("got %T, want events.Event", msg)
	}
	s, _ := event.GetAttributes()["message"].(string)
	return s
}

func receive(t *testing.T, a *Adapter) string {
	t.Helper()
	select {
	case msg, ok := <-a.Out():
		if !ok {
			t.Fatal("output closed")
		}
		return messageOf(t, msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for output")
	}
	return ""
}

func collect(t *testing.T, a *Adapter) []string {
	t.Helper()
	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-a.Out():
			if !ok {
				return got
			}
			got = append(got, messageOf(t, msg))
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
}

func waitForState(t *testing.T, a *Adapter, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for a.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %v, want %v", a.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestProcessEmitsEventsInOrder(t *testing.T) {
	rt := &fakeRuntime{process: func(event events.Event, emit Emit) error {
		m := event.GetAttributes()["message"].(string)
		emit(message(m + "-1"))
		emit(message(m + "-2"))
		return nil
	}}
	a, err := Start(context.Background(), "lua", factoryFor(rt), Options{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitForState(t, a, StateIdle)

	a.In() <- message("a")
	if got := receive(t, a); got != "a-1" {
		t.Errorf("got %q, want a-1", got)
	}
	if got := receive(t, a); got != "a-2" {
		t.Errorf("got %q, want a-2", got)
	}
	waitForState(t, a, StateIdle)

	a.In() <- message("b")
	close(a.In())
	if got := collect(t, a); !equal(got, []string{"b-1", "b-2"}) {
		t.Errorf("got %v, want [b-1 b-2]", got)
	}
	if a.State() != StateStopped {
		t.Errorf("state = %v, want stopped", a.State())
	}
}

func TestProcessWithoutOutputReturnsToIdle(t *testing.T) {
	rt := &fakeRuntime{process: func(event events.Event, emit Emit) error {
		if event.GetAttributes()["message"] == "drop" {
			return nil
		}
		emit(event)
		return nil
	}}
	a, err := Start(context.Background(), "lua", factoryFor(rt), Options{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	a.In() <- message("drop")
	waitForState(t, a, StateIdle)
	select {
	case msg := <-a.Out():
		t.Fatalf("unexpected output %v", msg)
	case <-time.After(20 * time.Millisecond):
	}

	a.In() <- message("keep")
	close(a.In())
	if got := collect(t, a); !equal(got, []string{"keep"}) {
		t.Errorf("got %v, want [keep]", got)
	}
}

func TestInitAndShutdownHooksEmit(t *testing.T) {
	closed := &atomic.Bool{}
	rt := &fakeRuntime{
		init:     func(emit Emit) error { emit(message("hello")); return nil },
		shutdown: func(emit Emit) error { emit(message("bye")); return nil },
		closed:   closed,
	}
	a, err := Start(context.Background(), "lua", factoryFor(rt), Options{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	go func() {
		a.In() <- message("middle")
		close(a.In())
	}()
	if got := collect(t, a); !equal(got, []string{"hello", "middle", "bye"}) {
		t.Errorf("got %v, want [hello middle bye]", got)
	}
	deadline := time.Now().Add(time.Second)
	for !closed.Load() {
		if time.Now().After(deadline) {
			t.Fatal("runtime was not closed")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHookErrorKeepsProcessing(t *testing.T) {
	rt := &fakeRuntime{process: func(event events.Event, emit Emit) error {
		if event.GetAttributes()["message"] == "bad" {
			emit(message("partial"))
			return errors.New("boom")
		}
		emit(event)
		return nil
	}}
	a, err := Start(context.Background(), "lua", factoryFor(rt), Options{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	go func() {
		a.In() <- message("bad")
		a.In() <- message("good")
		close(a.In())
	}()
	if got := collect(t, a); !equal(got, []string{"partial", "good"}) {
		t.Errorf("got %v, want [partial good]", got)
	}
}

func TestTimersAreDelivered(t *testing.T) {
	var ticks atomic.Int32
	rt := &fakeRuntime{
		timers: []Timer{{ID: 7, Interval: 10 * time.Millisecond}},
		onTimer: func(timer Timer, emit Emit) error {
			ticks.Add(1)
			emit(message(fmt.Sprintf("tick-%d", timer.ID)))
			return nil
		},
	}
	a, err := Start(context.Background(), "lua", factoryFor(rt), Options{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if timers := a.Timers(); len(timers) != 1 || timers[0].ID != 7 {
		t.Fatalf("Timers() = %v", timers)
	}

	// Input events are accepted while the timer keeps firing.
	sawEvent := false
	sawTicks := 0
	a.In() <- message("event")
	timeout := time.After(2 * time.Second)
	for !sawEvent || sawTicks < 3 {
		select {
		case msg := <-a.Out():
			switch messageOf(t, msg) {
			case "event":
				sawEvent = true
			case "tick-7":
				sawTicks++
			}
		case <-timeout:
			t.Fatalf("timed out: event=%v ticks=%d", sawEvent, sawTicks)
		}
	}
	close(a.In())
	collect(t, a)
	if ticks.Load() < 3 {
		t.Errorf("got %d timer calls, want at least 3", ticks.Load())
	}
}

func TestCancellationShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rt := &fakeRuntime{shutdown: func(emit Emit) error { emit(message("bye")); return nil }}
	a, err := Start(ctx, "lua", factoryFor(rt), Options{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitForState(t, a, StateIdle)
	cancel()
	if got := collect(t, a); !equal(got, []string{"bye"}) {
		t.Errorf("got %v, want [bye]", got)
	}
	// Upstream is never blocked by a stopped adapter.
	select {
	case a.In() <- message("late"):
	case <-time.After(time.Second):
		t.Fatal("input blocked after shutdown")
	}
}

func TestShutdownTimeoutAbandonsWorker(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	rt := &fakeRuntime{shutdown: func(emit Emit) error {
		<-release
		return nil
	}}
	a, err := Start(context.Background(), "lua", factoryFor(rt), Options{ShutdownTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	start := time.Now()
	close(a.In())
	waitForState(t, a, StateStopping)
	collect(t, a)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("shutdown took %v, want it bounded by the timeout", elapsed)
	}
}

func TestShutdownBoundedWhenDownstreamStalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt := &fakeRuntime{shutdown: func(emit Emit) error {
		emit(message("bye-1"))
		emit(message("bye-2"))
		return nil
	}}
	a, err := Start(ctx, "lua", factoryFor(rt), Options{ShutdownTimeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitForState(t, a, StateIdle)

	// Nobody reads the output.
	cancel()
	waitForState(t, a, StateStopped)
	select {
	case _, ok := <-a.Out():
		if ok {
			t.Error("expected output to be closed once stopped")
		}
	case <-time.After(time.Second):
		t.Fatal("output not closed after shutdown timeout")
	}
}

func TestStalledDownstreamWhileProcessing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt := &fakeRuntime{process: func(event events.Event, emit Emit) error {
		emit(message("one"))
		emit(message("two"))
		return nil
	}}
	a, err := Start(ctx, "lua", factoryFor(rt), Options{ShutdownTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitForState(t, a, StateIdle)
	a.In() <- message("x")
	waitForState(t, a, StateProcessing)

	cancel()
	waitForState(t, a, StateStopped)
}

func TestWorkerPanicFailsTransform(t *testing.T) {
	rt := &fakeRuntime{process: func(events.Event, Emit) error {
		panic("runtime corrupted")
	}}
	a, err := Start(context.Background(), "lua", factoryFor(rt), Options{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	a.In() <- message("a")
	select {
	case err := <-a.Err():
		if !errors.Is(err, ErrWorkerExited) {
			t.Errorf("Err() = %v, want ErrWorkerExited", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for worker failure")
	}
	collect(t, a)
	select {
	case a.In() <- message("b"):
	case <-time.After(time.Second):
		t.Fatal("input blocked after worker failure")
	}
}

func TestFactoryErrorFailsStart(t *testing.T) {
	_, err := Start(context.Background(), "lua", func() (Runtime, error) {
		return nil, errors.New("syntax error")
	}, Options{})
	if err == nil {
		t.Fatal("Start() error = nil, want error")
	}

	tr := New("lua", func() (Runtime, error) { panic("bad runtime") }, Options{})
	if _, err := tr.TransformStream(context.Background()); err == nil {
		t.Fatal("TransformStream() error = nil, want error")
	}
}

func TestTimersPanicFailsStart(t *testing.T) {
	closed := &atomic.Bool{}
	rt := &panickyTimers{fakeRuntime: fakeRuntime{closed: closed}}
	_, err := Start(context.Background(), "lua", func() (Runtime, error) { return rt, nil }, Options{})
	if err == nil {
		t.Fatal("Start() error = nil, want error")
	}
	if !closed.Load() {
		t.Error("runtime was not closed after its timers panicked")
	}
}

type panickyTimers struct {
	fakeRuntime
}

func (*panickyTimers) Timers() []Timer {
	panic("boom")
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	if opts.CommandBuffer != DefaultCommandBuffer || opts.ResultBuffer != DefaultResultBuffer ||
		opts.ShutdownTimeout != DefaultShutdownTimeout || opts.TransformType != DefaultTransformType {
		t.Errorf("withDefaults() = %+v", opts)
	}
}
