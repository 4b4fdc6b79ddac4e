package config

import (
	"fmt"
	"strings"

	"github.com/erhlee-bird/vector/api/v1/events"
)

func (c *Config) checkShape() Errors {
	var errs Errors
	if c.Sources.Len() == 0 {
		errs = append(errs, "no sources defined in the config")
	}
	if c.Sinks.Len() == 0 {
		errs = append(errs, "no sinks defined in the config")
	}

	for pair := c.Sinks.Oldest(); pair != nil; pair = pair.Next() {
		if len(pair.Value.Inputs) == 0 {
			errs = append(errs, fmt.Sprintf("sink %q has no inputs", pair.Key))
		}
	}
	for pair := c.Transforms.Oldest(); pair != nil; pair = pair.Next() {
		if len(pair.Value.Inputs) == 0 {
			errs = append(errs, fmt.Sprintf("transform %q has no inputs", pair.Key))
		}
	}

	for pair := c.Sources.Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := c.Transforms.Get(pair.Key); ok {
			errs = append(errs, fmt.Sprintf("more than one component with name %q (source, transform)", pair.Key))
		}
	}

	checkInputs := func(category, name string, inputs []string) {
		for _, input := range inputs {
			for _, resolved := range c.GetInputs(input) {
				if _, ok := c.outputType(resolved); !ok {
					errs = append(errs, fmt.Sprintf("input %q for %s %q doesn't exist", input, category, name))
					break
				}
			}
		}
	}
	for pair := c.Sinks.Oldest(); pair != nil; pair = pair.Next() {
		checkInputs("sink", pair.Key, pair.Value.Inputs)
	}
	for pair := c.Transforms.Oldest(); pair != nil; pair = pair.Next() {
		checkInputs("transform", pair.Key, pair.Value.Inputs)
	}
	return errs
}

// outputType returns the type of events produced by a source or transform.
func (c *Config) outputType(name string) (events.DataType, bool) {
	if source, ok := c.Sources.Get(name); ok {
		return source.OutputType(), true
	}
	if transform, ok := c.Transforms.Get(name); ok {
		return transform.OutputType(), true
	}
	return "", false
}

func (c *Config) typecheck() Errors {
	var errs Errors
	check := func(name string, accepts events.DataType, inputs []string) {
		for _, input := range inputs {
			for _, resolved := range c.GetInputs(input) {
				produced, _ := c.outputType(resolved)
				if !accepts.Compatible(produced) {
					errs = append(errs, fmt.Sprintf("data type mismatch between %s (%s) and %s (%s)",
						resolved, produced, name, accepts))
				}
			}
		}
	}
	for pair := c.Transforms.Oldest(); pair != nil; pair = pair.Next() {
		check(pair.Key, pair.Value.InputType(), pair.Value.Inputs)
	}
	for pair := c.Sinks.Oldest(); pair != nil; pair = pair.Next() {
		check(pair.Key, pair.Value.InputType(), pair.Value.Inputs)
	}
	return errs
}

// checkCycles looks for transforms that feed, directly or not, into
// themselves.
func (c *Config) checkCycles() Errors {
	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}
	var errs Errors
	var path []string

	var visit func(name string)
	visit = func(name string) {
		switch state[name] {
		case done:
			return
		case visiting:
			start := 0
			for i, n := range path {
				if n == name {
					start = i
				}
			}
			chain := append(append([]string(nil), path[start:]...), name)
			errs = append(errs, fmt.Sprintf("cyclic dependency detected in the chain [ %s ]", strings.Join(chain, " -> ")))
			return
		}
		state[name] = visiting
		path = append(path, name)
		transform, _ := c.Transforms.Get(name)
		for _, input := range transform.Inputs {
			for _, resolved := range c.GetInputs(input) {
				if _, ok := c.Transforms.Get(resolved); ok {
					visit(resolved)
				}
			}
		}
		path = path[:len(path)-1]
		state[name] = done
	}

	for pair := c.Transforms.Oldest(); pair != nil; pair = pair.Next() {
		if state[pair.Key] == unvisited {
			visit(pair.Key)
		}
	}
	return errs
}

// Resources lists the resources claimed by every component.
func (c *Config) Resources() []ComponentResources {
	var components []ComponentResources
	for pair := c.Sources.Oldest(); pair != nil; pair = pair.Next() {
		components = append(components, ComponentResources{Name: pair.Key, Resources: resourcesOf(pair.Value.SourceConfig)})
	}
	for pair := c.Transforms.Oldest(); pair != nil; pair = pair.Next() {
		components = append(components, ComponentResources{Name: pair.Key, Resources: resourcesOf(pair.Value.TransformConfig)})
	}
	for pair := c.Sinks.Oldest(); pair != nil; pair = pair.Next() {
		components = append(components, ComponentResources{Name: pair.Key, Resources: resourcesOf(pair.Value.SinkConfig)})
	}
	return components
}

func (c *Config) checkResources() Errors {
	var errs Errors
	for _, name := range Conflicts(c.Resources()) {
		errs = append(errs, fmt.Sprintf("resource conflict found in component %q", name))
	}
	return errs
}
