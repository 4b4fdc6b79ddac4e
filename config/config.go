package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Config is a compiled and validated topology description. It is read only
// once built.
type Config struct {
	Global     GlobalOptions
	Sources    *orderedmap.OrderedMap[string, *SourceOuter]
	Sinks      *orderedmap.OrderedMap[string, *SinkOuter]
	Transforms *orderedmap.OrderedMap[string, *TransformOuter]
	Tests      []TestDefinition
	expansions *orderedmap.OrderedMap[string, []string]
}

// GetInputs resolves a name used as an input to the components it stands
// for: the transforms an expanded transform became, or the name itself.
func (c *Config) GetInputs(name string) []string {
	if c.expansions != nil {
		if children, ok := c.expansions.Get(name); ok {
			return append([]string(nil), children...)
		}
	}
	return []string{name}
}

// ResolveInputs resolves every input of a component through GetInputs. A
// component listed more than once, directly or through an expansion, is
// kept once, at its first position.
func (c *Config) ResolveInputs(inputs []string) []string {
	seen := make(map[string]struct{}, len(inputs))
	var resolved []string
	for _, input := range inputs {
		for _, name := range c.GetInputs(input) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			resolved = append(resolved, name)
		}
	}
	return resolved
}

// Expansions returns the expanded transform names in declaration order.
func (c *Config) Expansions() []string {
	var names []string
	for pair := c.expansions.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// ReadConfig loads and builds a single configuration file.
func ReadConfig(path string) (*Config, error) {
	return LoadFromPaths([]string{path})
}

// LoadFromPaths appends every file in order and builds the result.
func LoadFromPaths(paths []string) (*Config, error) {
	b, err := LoadBuilderFromPaths(paths)
	if err != nil {
		return nil, err
	}
	return b.Build()
}

func LoadBuilderFromPaths(paths []string) (*Builder, error) {
	b := NewBuilder()
	var errs Errors
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("could not read config file %q: %v", path, err))
			continue
		}
		fragment, err := LoadBuilderFromString(string(data))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		if err := b.Append(fragment); err != nil {
			errs = append(errs, asErrors(err)...)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return b, nil
}

// LoadFromString builds a configuration from a single YAML document.
func LoadFromString(s string) (*Config, error) {
	b, err := LoadBuilderFromString(s)
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// LoadBuilderFromString decodes a YAML fragment after substituting
// environment variables.
func LoadBuilderFromString(s string) (*Builder, error) {
	b := NewBuilder()
	if err := yaml.Unmarshal([]byte(interpolate(s)), b); err != nil {
		return nil, err
	}
	b.init()
	return b, nil
}

// interpolate replaces $VAR, ${VAR} and ${VAR:-default} with values from
// the environment. $$ produces a literal $.
func interpolate(s string) string {
	return os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}
		key, def, hasDefault := strings.Cut(name, ":-")
		if v, ok := os.LookupEnv(key); ok && (v != "" || !hasDefault) {
			return v
		}
		if hasDefault {
			return def
		}
		slog.Warn("config: unknown environment variable in config", "name", key)
		return ""
	})
}

func asErrors(err error) Errors {
	var errs Errors
	if errors.As(err, &errs) {
		return errs
	}
	return Errors{err.Error()}
}
