// Package scripted runs transforms whose logic lives in a synchronous,
// single-threaded runtime (such as an embedded interpreter) inside the
// streaming topology.
//
// The runtime is created and used by one dedicated worker goroutine locked to
// its OS thread. An Adapter talks to the worker over a command channel and a
// result channel, and every command is answered by zero or more events
// followed by a done marker.
package scripted

import (
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
)

// Timer is a periodic callback a runtime asks for at startup.
type Timer struct {
	ID       int
	Interval time.Duration
}

// Emit hands an event produced by a hook back to the topology.
type Emit func(events.Event)

// Runtime is the synchronous side of the bridge. All methods are called from
// the worker goroutine only.
type Runtime interface {
	// Timers is read once, before the first command.
	Timers() []Timer
	HookInit(emit Emit) error
	HookProcess(event events.Event, emit Emit) error
	HookShutdown(emit Emit) error
	TimerHandler(timer Timer, emit Emit) error
	Close()
}

// Factory builds a Runtime. It runs on the worker goroutine.
type Factory func() (Runtime, error)

// NopHooks provides empty optional hooks for runtimes that only process
// events.
type NopHooks struct{}

func (NopHooks) Timers() []Timer                { return nil }
func (NopHooks) HookInit(Emit) error            { return nil }
func (NopHooks) HookShutdown(Emit) error        { return nil }
func (NopHooks) TimerHandler(Timer, Emit) error { return nil }
func (NopHooks) Close()                         {}
