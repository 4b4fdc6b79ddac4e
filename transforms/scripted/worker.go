package scripted

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/telemetry"
)

type commandKind int

const (
	commandInit commandKind = iota
	commandProcess
	commandShutdown
	commandTimer
)

func (k commandKind) String() string {
	switch k {
	case commandInit:
		return "init"
	case commandProcess:
		return "process"
	case commandShutdown:
		return "shutdown"
	case commandTimer:
		return "timer"
	}
	return fmt.Sprintf("command(%d)", int(k))
}

type command struct {
	kind  commandKind
	event events.Event
	timer Timer
}

// result carries one emitted event, or the done marker closing the answer
// to a command.
type result struct {
	event events.Event
	done  bool
}

type handshake struct {
	timers []Timer
	err    error
}

type worker struct {
	name      string
	typ       string
	factory   Factory
	handshake chan<- handshake
	commands  <-chan command
	results   chan<- result
}

// run owns the runtime for its whole life. The results channel is closed when
// the worker exits, whether after Shutdown or because a hook panicked.
func (w *worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.results)

	rt, timers, err := w.build()
	if err != nil {
		w.handshake <- handshake{err: err}
		return
	}
	defer rt.Close()
	w.handshake <- handshake{timers: timers}

	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("transform", w.typ, w.name)
			slog.Error(w.name+" transform: worker panicked", "panic", r)
		}
	}()

	emit := func(event events.Event) {
		if event != nil {
			w.results <- result{event: event}
		}
	}
	for cmd := range w.commands {
		var err error
		switch cmd.kind {
		case commandInit:
			err = rt.HookInit(emit)
		case commandProcess:
			err = rt.HookProcess(cmd.event, emit)
		case commandTimer:
			err = rt.TimerHandler(cmd.timer, emit)
		case commandShutdown:
			err = rt.HookShutdown(emit)
		}
		if err != nil {
			telemetry.Error("transform", w.typ, w.name)
			slog.Error(w.name+" transform: hook failed", "hook", cmd.kind.String(), "error", err)
		}
		w.results <- result{done: true}
		if cmd.kind == commandShutdown {
			return
		}
	}
}

// build creates the runtime and reads its timers. A panic in either is
// reported as an error.
func (w *worker) build() (rt Runtime, timers []Timer, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rt != nil {
				closeQuietly(rt)
			}
			rt, timers, err = nil, nil, fmt.Errorf("building runtime: %v", r)
		}
	}()
	rt, err = w.factory()
	if err != nil {
		return nil, nil, fmt.Errorf("building runtime: %w", err)
	}
	timers = append([]Timer(nil), rt.Timers()...)
	return rt, timers, nil
}

func closeQuietly(rt Runtime) {
	defer func() { _ = recover() }()
	rt.Close()
}
