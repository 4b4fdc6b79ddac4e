package config

import (
	"fmt"

	"github.com/erhlee-bird/vector/buffers"
	"gopkg.in/yaml.v3"
)

type SinkOuter struct {
	Buffer      buffers.BufferConfig
	Healthcheck bool
	Inputs      []string
	SinkConfig
}

func (o *SinkOuter) UnmarshalYAML(node *yaml.Node) error {
	outer := struct {
		Buffer      buffers.BufferConfig `yaml:"buffer"`
		Healthcheck bool                 `yaml:"healthcheck"`
		Inputs      []string             `yaml:"inputs"`
	}{
		Buffer:      buffers.DefaultBufferConfig(),
		Healthcheck: true,
	}
	if err := node.Decode(&outer); err != nil {
		return err
	}
	if err := outer.Buffer.Validate(); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	tag, err := componentType(node)
	if err != nil {
		return err
	}
	inner, err := newSinkConfig(tag)
	if err != nil {
		return err
	}
	if err := decodeInner(node, inner, CategorySink, tag); err != nil {
		return err
	}
	o.Buffer = outer.Buffer
	o.Healthcheck = outer.Healthcheck
	o.Inputs = outer.Inputs
	o.SinkConfig = inner
	return nil
}
