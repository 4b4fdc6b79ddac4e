// Package graphs turns a built configuration into a running topology.
package graphs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/buffers"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/sinks"
	"github.com/erhlee-bird/vector/sources"
	"github.com/erhlee-bird/vector/transforms"
	"github.com/reugn/go-streams"
	"github.com/reugn/go-streams/extension"
	"github.com/reugn/go-streams/flow"
	"golang.org/x/sync/errgroup"
)

type source struct {
	name string
	task sources.Source
	out  chan any
}

type sink struct {
	name        string
	sink        sinks.Sink
	healthcheck sinks.Healthcheck
	enabled     bool
	acker       *buffers.CountingAcker
	buffer      *buffers.MemoryBuffer
}

// Graph is a wired topology. Every stage is built before anything runs.
type Graph struct {
	cfg        *config.Config
	ctx        context.Context
	cancel     context.CancelFunc
	sources    []source
	transforms map[string]streams.Flow
	sinks      []sink
	failures   chan error
}

// NewGraph builds every component of cfg and connects them. A failure to
// build any component fails the whole graph.
func NewGraph(ctx context.Context, cfg *config.Config) (*Graph, error) {
	ctx, cancel := context.WithCancel(ctx)
	g := &Graph{
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		transforms: map[string]streams.Flow{},
		failures:   make(chan error, cfg.Transforms.Len()),
	}
	if err := g.build(); err != nil {
		cancel()
		g.release()
		return nil, err
	}
	g.wire()
	return g, nil
}

func (g *Graph) build() error {
	var errs config.Errors
	globals := &g.cfg.Global

	for pair := g.cfg.Sources.Oldest(); pair != nil; pair = pair.Next() {
		out := make(chan any)
		task, err := pair.Value.Build(g.ctx, config.SourceContext{Name: pair.Key, Globals: globals, Out: out})
		if err != nil {
			errs = append(errs, fmt.Sprintf("source %q: %v", pair.Key, err))
			continue
		}
		g.sources = append(g.sources, source{name: pair.Key, task: task, out: out})
	}

	for pair := g.cfg.Transforms.Oldest(); pair != nil; pair = pair.Next() {
		t, err := pair.Value.Build(g.ctx, config.TransformContext{Name: pair.Key, Globals: globals})
		if err != nil {
			errs = append(errs, fmt.Sprintf("transform %q: %v", pair.Key, err))
			continue
		}
		stream, err := t.TransformStream(g.ctx)
		if err != nil {
			errs = append(errs, fmt.Sprintf("transform %q: %v", pair.Key, err))
			continue
		}
		g.transforms[pair.Key] = stream
	}

	for pair := g.cfg.Sinks.Oldest(); pair != nil; pair = pair.Next() {
		acker := &buffers.CountingAcker{}
		s, healthcheck, err := pair.Value.Build(g.ctx, config.SinkContext{Name: pair.Key, Globals: globals, Acker: acker})
		if err != nil {
			errs = append(errs, fmt.Sprintf("sink %q: %v", pair.Key, err))
			continue
		}
		g.sinks = append(g.sinks, sink{
			name:        pair.Key,
			sink:        s,
			healthcheck: healthcheck,
			enabled:     pair.Value.Healthcheck,
			acker:       acker,
			buffer:      buffers.NewMemoryBuffer(pair.Key, pair.Value.Buffer),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// release closes the inputs of the stages already built so their
// goroutines exit.
func (g *Graph) release() {
	for _, t := range g.transforms {
		close(t.In())
	}
	for _, s := range g.sinks {
		close(s.sink.In())
	}
}

// wire connects every producer to its consumers. Producers with several
// consumers hand each one its own copy of an event.
func (g *Graph) wire() {
	consumers := map[string]int{}
	count := func(inputs []string) {
		for _, name := range g.cfg.ResolveInputs(inputs) {
			consumers[name]++
		}
	}
	for pair := g.cfg.Transforms.Oldest(); pair != nil; pair = pair.Next() {
		count(pair.Value.Inputs)
	}
	for pair := g.cfg.Sinks.Oldest(); pair != nil; pair = pair.Next() {
		count(pair.Value.Inputs)
	}

	branches := map[string][]streams.Flow{}
	for _, s := range g.sources {
		branches[s.name] = fanOut(extension.NewChanSource(s.out), consumers[s.name])
	}
	for pair := g.cfg.Transforms.Oldest(); pair != nil; pair = pair.Next() {
		stream := g.transforms[pair.Key]
		branches[pair.Key] = fanOut(stream, consumers[pair.Key])
		if fallible, ok := stream.(transforms.Fallible); ok {
			go g.watch(pair.Key, fallible)
		}
	}

	next := func(inputs []string) streams.Flow {
		var flows []streams.Flow
		for _, name := range g.cfg.ResolveInputs(inputs) {
			flows = append(flows, branches[name][0])
			branches[name] = branches[name][1:]
		}
		if len(flows) == 1 {
			return flows[0]
		}
		return flow.Merge(flows...)
	}
	for pair := g.cfg.Transforms.Oldest(); pair != nil; pair = pair.Next() {
		next(pair.Value.Inputs).Via(g.transforms[pair.Key])
	}
	for i, s := range g.sinks {
		outer, _ := g.cfg.Sinks.Get(s.name)
		next(outer.Inputs).Via(s.buffer).To(g.sinks[i].sink)
	}
}

// fanOut splits outlet into n flows. The first gets the original events,
// the others clones. Without consumers the outlet is drained.
func fanOut(outlet streams.Outlet, n int) []streams.Flow {
	if n == 0 {
		go func() {
			for range outlet.Out() {
			}
		}()
		return nil
	}
	flows := make([]streams.Flow, n)
	for i := range flows {
		flows[i] = flow.NewPassThrough()
	}
	go func() {
		for element := range outlet.Out() {
			for i, f := range flows {
				if event, ok := element.(events.Event); ok && i > 0 {
					f.In() <- event.Clone()
					continue
				}
				f.In() <- element
			}
		}
		for _, f := range flows {
			close(f.In())
		}
	}()
	return flows
}

func (g *Graph) watch(name string, fallible transforms.Fallible) {
	select {
	case <-g.ctx.Done():
	case err := <-fallible.Err():
		slog.Error("graph: transform failed, stopping", "component", name, "error", err)
		g.failures <- fmt.Errorf("transform %q: %w", name, err)
		g.cancel()
	}
}

// Healthcheck probes every sink that has its healthcheck enabled. Failures
// are logged, and returned when requireHealthy is set.
func (g *Graph) Healthcheck(ctx context.Context, requireHealthy bool) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	eg, ctx := errgroup.WithContext(ctx)
	for _, s := range g.sinks {
		if !s.enabled {
			continue
		}
		eg.Go(func() error {
			if err := s.healthcheck(ctx); err != nil {
				slog.Error("graph: healthcheck failed", "component", s.name, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("sink %q: healthcheck failed: %w", s.name, err))
				mu.Unlock()
				return nil
			}
			slog.Info("graph: healthcheck passed", "component", s.name)
			return nil
		})
	}
	eg.Wait()
	if requireHealthy && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Run starts the sources and blocks until every sink has drained. Sources
// stop when ctx passed to NewGraph is done or Stop is called.
func (g *Graph) Run() error {
	var eg errgroup.Group
	for _, s := range g.sources {
		eg.Go(func() error {
			defer close(s.out)
			if err := s.task(); err != nil {
				g.cancel()
				return fmt.Errorf("source %q: %w", s.name, err)
			}
			return nil
		})
	}
	err := eg.Wait()

	for _, s := range g.sinks {
		<-s.sink.Done()
		slog.Debug("graph: sink drained", "component", s.name, "acked", s.acker.Acked())
	}
	g.cancel()

	errs := []error{err}
	for {
		select {
		case failure := <-g.failures:
			errs = append(errs, failure)
		default:
			return errors.Join(errs...)
		}
	}
}

// Stop asks every source to finish. Run returns once the rest of the
// topology has drained.
func (g *Graph) Stop() {
	g.cancel()
}
