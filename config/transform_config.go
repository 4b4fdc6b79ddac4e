package config

import "gopkg.in/yaml.v3"

type TransformOuter struct {
	Inputs []string
	TransformConfig
}

func (o *TransformOuter) UnmarshalYAML(node *yaml.Node) error {
	var outer struct {
		Inputs []string `yaml:"inputs"`
	}
	if err := node.Decode(&outer); err != nil {
		return err
	}
	tag, err := componentType(node)
	if err != nil {
		return err
	}
	inner, err := newTransformConfig(tag)
	if err != nil {
		return err
	}
	if err := decodeInner(node, inner, CategoryTransform, tag); err != nil {
		return err
	}
	o.Inputs = outer.Inputs
	o.TransformConfig = inner
	return nil
}
