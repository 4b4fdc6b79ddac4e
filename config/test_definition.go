package config

import (
	"fmt"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/conditions"
	"gopkg.in/yaml.v3"
)

// TestDefinition describes a unit test of the topology: events injected at
// a transform and conditions checked against what comes out.
type TestDefinition struct {
	Name          string       `yaml:"name"`
	Input         *TestInput   `yaml:"input"`
	Inputs        []TestInput  `yaml:"inputs"`
	Outputs       []TestOutput `yaml:"outputs"`
	NoOutputsFrom []string     `yaml:"no_outputs_from"`
}

// AllInputs returns input followed by inputs.
func (d *TestDefinition) AllInputs() []TestInput {
	var all []TestInput
	if d.Input != nil {
		all = append(all, *d.Input)
	}
	return append(all, d.Inputs...)
}

const (
	TestInputRaw    = "raw"
	TestInputLog    = "log"
	TestInputMetric = "metric"
)

type TestInput struct {
	InsertAt  string         `yaml:"insert_at"`
	Type      string         `yaml:"type"`
	Value     *string        `yaml:"value"`
	LogFields map[string]any `yaml:"log_fields"`
	Metric    *events.Metric `yaml:"metric"`
}

func (in *TestInput) UnmarshalYAML(node *yaml.Node) error {
	type plain TestInput
	p := plain{Type: TestInputRaw}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*in = TestInput(p)
	return nil
}

// Event builds the event the input injects.
func (in *TestInput) Event(schema LogSchema) (events.Event, error) {
	switch in.Type {
	case TestInputRaw:
		if in.Value == nil {
			return nil, fmt.Errorf("input at %q of type raw requires a value", in.InsertAt)
		}
		return events.NewLogEvent(map[string]any{schema.Message(): *in.Value}), nil
	case TestInputLog:
		if in.LogFields == nil {
			return nil, fmt.Errorf("input at %q of type log requires log_fields", in.InsertAt)
		}
		return events.NewLogEvent(in.LogFields).Clone(), nil
	case TestInputMetric:
		if in.Metric == nil {
			return nil, fmt.Errorf("input at %q of type metric requires a metric", in.InsertAt)
		}
		m := *in.Metric
		return &m, nil
	}
	return nil, fmt.Errorf("input at %q has unknown type %q", in.InsertAt, in.Type)
}

type TestOutput struct {
	ExtractFrom string          `yaml:"extract_from"`
	Conditions  []TestCondition `yaml:"conditions"`
}

// TestCondition is checked against the events extracted from a transform.
type TestCondition = conditions.Config

// validateTests checks that tests reference existing transforms and carry
// well formed inputs and conditions.
func (c *Config) validateTests() Errors {
	var errs Errors
	isTransform := func(name string) bool {
		for _, n := range c.GetInputs(name) {
			if _, ok := c.Transforms.Get(n); !ok {
				return false
			}
		}
		return true
	}
	for i := range c.Tests {
		test := &c.Tests[i]
		prefix := fmt.Sprintf("test %q", test.Name)
		if test.Name == "" {
			prefix = fmt.Sprintf("test #%d", i)
			errs = append(errs, prefix+": missing name")
		}
		inputs := test.AllInputs()
		if len(inputs) == 0 {
			errs = append(errs, prefix+": must specify at least one input")
		}
		for _, in := range inputs {
			if !isTransform(in.InsertAt) {
				errs = append(errs, fmt.Sprintf("%s: inputs: unable to locate target transform %q", prefix, in.InsertAt))
			}
			if _, err := in.Event(c.Global.LogSchema); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
			}
		}
		if len(test.Outputs) == 0 && len(test.NoOutputsFrom) == 0 {
			errs = append(errs, prefix+": must specify at least one output or no_outputs_from")
		}
		for _, out := range test.Outputs {
			if !isTransform(out.ExtractFrom) {
				errs = append(errs, fmt.Sprintf("%s: outputs: unable to locate target transform %q", prefix, out.ExtractFrom))
			}
			for _, cond := range out.Conditions {
				if _, err := cond.Build(); err != nil {
					errs = append(errs, fmt.Sprintf("%s: outputs from %q: %v", prefix, out.ExtractFrom, err))
				}
			}
		}
		for _, name := range test.NoOutputsFrom {
			if !isTransform(name) {
				errs = append(errs, fmt.Sprintf("%s: no_outputs_from: unable to locate target transform %q", prefix, name))
			}
		}
	}
	return errs
}
