package conditions

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is a condition as written in YAML: a typed mapping
// (type: check_fields), an untyped check_fields mapping, or a string.
type Config struct {
	Type        string
	CheckFields CheckFieldsConfig
	String      string
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&c.String)
	}
	var fields map[string]any
	if err := node.Decode(&fields); err != nil {
		return err
	}
	if t, ok := fields["type"]; ok {
		typ, _ := t.(string)
		if typ != "check_fields" {
			return fmt.Errorf("line %d: unknown condition type %v", node.Line, t)
		}
		c.Type = typ
		delete(fields, "type")
	}
	c.CheckFields = CheckFieldsConfig(fields)
	return nil
}

// Build returns the condition described. String conditions are not
// supported.
func (c *Config) Build() (Condition, error) {
	if c.CheckFields == nil {
		return nil, fmt.Errorf("unsupported condition %q", c.String)
	}
	return c.CheckFields.Build()
}
