package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// componentType reads the type discriminator of a component entry.
func componentType(node *yaml.Node) (string, error) {
	var header struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&header); err != nil {
		return "", err
	}
	if header.Type == "" {
		return "", fmt.Errorf("line %d: missing component type", node.Line)
	}
	return header.Type, nil
}

// decodeInner fills a registered configuration from the entry and checks
// its struct tags.
func decodeInner(node *yaml.Node, cfg any, category Category, tag string) error {
	if err := node.Decode(cfg); err != nil {
		return fmt.Errorf("line %d: %s %q: %w", node.Line, category, tag, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("line %d: %s %q: %w", node.Line, category, tag, err)
	}
	return nil
}

type SourceOuter struct {
	SourceConfig
}

func (o *SourceOuter) UnmarshalYAML(node *yaml.Node) error {
	tag, err := componentType(node)
	if err != nil {
		return err
	}
	inner, err := newSourceConfig(tag)
	if err != nil {
		return err
	}
	if err := decodeInner(node, inner, CategorySource, tag); err != nil {
		return err
	}
	o.SourceConfig = inner
	return nil
}
