// Package lua runs user supplied Lua hooks over events. The interpreter is
// single threaded, so it is driven through the scripted bridge.
package lua

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/transforms"
	"github.com/erhlee-bird/vector/transforms/scripted"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

const TransformType = "lua"

type HooksConfig struct {
	Init     string `yaml:"init"`
	Process  string `yaml:"process" validate:"required"`
	Shutdown string `yaml:"shutdown"`
}

type TimerConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds" validate:"gt=0"`
	Handler         string `yaml:"handler" validate:"required"`
}

type Config struct {
	Version    string        `yaml:"version" validate:"required,eq=2"`
	Source     string        `yaml:"source"`
	SearchDirs []string      `yaml:"search_dirs"`
	Hooks      HooksConfig   `yaml:"hooks"`
	Timers     []TimerConfig `yaml:"timers" validate:"dive"`

	CommandBuffer   int           `yaml:"command_buffer" validate:"gte=0"`
	ResultBuffer    int           `yaml:"result_buffer" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

func init() {
	config.RegisterTransform(TransformType, func() config.TransformConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType  { return events.DataTypeAny }
func (c *Config) OutputType() events.DataType { return events.DataTypeAny }
func (c *Config) TransformType() string       { return TransformType }

func (c *Config) Build(ctx context.Context, cx config.TransformContext) (transforms.Transform, error) {
	if _, err := parse.Parse(strings.NewReader(c.Source), cx.Name); err != nil {
		return nil, fmt.Errorf("lua transform %q: %w", cx.Name, err)
	}
	return scripted.New(cx.Name, c.newRuntime, scripted.Options{
		CommandBuffer:   c.CommandBuffer,
		ResultBuffer:    c.ResultBuffer,
		ShutdownTimeout: c.ShutdownTimeout,
		TransformType:   TransformType,
	}), nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

type runtime struct {
	L        *lua.LState
	init     *lua.LFunction
	process  *lua.LFunction
	shutdown *lua.LFunction
	timers   []scripted.Timer
	handlers []*lua.LFunction
	emitFn   *lua.LFunction
	emit     scripted.Emit
}

// newRuntime loads the source and resolves the hooks. It runs on the
// worker goroutine.
func (c *Config) newRuntime() (scripted.Runtime, error) {
	L := lua.NewState()
	r := &runtime{L: L}
	ok := false
	defer func() {
		if !ok {
			L.Close()
		}
	}()

	if len(c.SearchDirs) > 0 {
		if pkg, isTable := L.GetGlobal("package").(*lua.LTable); isTable {
			var path strings.Builder
			for _, dir := range c.SearchDirs {
				path.WriteString(filepath.Join(dir, "?.lua") + ";")
			}
			path.WriteString(lua.LVAsString(pkg.RawGetString("path")))
			pkg.RawSetString("path", lua.LString(path.String()))
		}
	}
	if err := L.DoString(c.Source); err != nil {
		return nil, fmt.Errorf("failed to load source: %w", err)
	}

	var err error
	if r.init, err = r.resolve("init", c.Hooks.Init); err != nil {
		return nil, err
	}
	if r.process, err = r.resolve("process", c.Hooks.Process); err != nil {
		return nil, err
	}
	if r.process == nil {
		return nil, fmt.Errorf("hooks.process is required")
	}
	if r.shutdown, err = r.resolve("shutdown", c.Hooks.Shutdown); err != nil {
		return nil, err
	}
	for i, timer := range c.Timers {
		handler, err := r.resolve(fmt.Sprintf("timers[%d]", i), timer.Handler)
		if err != nil {
			return nil, err
		}
		r.timers = append(r.timers, scripted.Timer{ID: i, Interval: time.Duration(timer.IntervalSeconds) * time.Second})
		r.handlers = append(r.handlers, handler)
	}
	r.emitFn = L.NewFunction(r.luaEmit)
	ok = true
	return r, nil
}

// resolve accepts either the name of a global function or an inline
// function expression.
func (r *runtime) resolve(hook, src string) (*lua.LFunction, error) {
	if src == "" {
		return nil, nil
	}
	var value lua.LValue
	if identifier.MatchString(src) {
		value = r.lookup(src)
	} else {
		top := r.L.GetTop()
		if err := r.L.DoString("return " + src); err != nil {
			return nil, fmt.Errorf("hook %s: %w", hook, err)
		}
		value = r.L.Get(top + 1)
		r.L.SetTop(top)
	}
	fn, ok := value.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("hook %s: %q is not a function", hook, src)
	}
	return fn, nil
}

// lookup resolves a dotted global name such as "handlers.process".
func (r *runtime) lookup(name string) lua.LValue {
	parts := strings.Split(name, ".")
	value := r.L.GetGlobal(parts[0])
	for _, part := range parts[1:] {
		tbl, ok := value.(*lua.LTable)
		if !ok {
			return lua.LNil
		}
		value = tbl.RawGetString(part)
	}
	return value
}

func (r *runtime) luaEmit(L *lua.LState) int {
	event, err := tableToEvent(L.CheckTable(1))
	if err != nil {
		L.RaiseError("emit: %v", err)
		return 0
	}
	if r.emit != nil {
		r.emit(event)
	}
	return 0
}

func (r *runtime) call(fn *lua.LFunction, emit scripted.Emit, args ...lua.LValue) error {
	if fn == nil {
		return nil
	}
	r.emit = emit
	defer func() { r.emit = nil }()
	return r.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, append(args, r.emitFn)...)
}

func (r *runtime) Timers() []scripted.Timer {
	return r.timers
}

func (r *runtime) HookInit(emit scripted.Emit) error {
	return r.call(r.init, emit)
}

func (r *runtime) HookProcess(event events.Event, emit scripted.Emit) error {
	return r.call(r.process, emit, eventToTable(r.L, event))
}

func (r *runtime) HookShutdown(emit scripted.Emit) error {
	return r.call(r.shutdown, emit)
}

func (r *runtime) TimerHandler(timer scripted.Timer, emit scripted.Emit) error {
	if timer.ID < 0 || timer.ID >= len(r.handlers) {
		return fmt.Errorf("unknown timer %d", timer.ID)
	}
	return r.call(r.handlers[timer.ID], emit)
}

func (r *runtime) Close() {
	r.L.Close()
}
