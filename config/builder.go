package config

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Builder accumulates configuration fragments, usually one per file,
// before they are compiled into a Config.
type Builder struct {
	Global     GlobalOptions                                   `yaml:",inline"`
	Sources    *orderedmap.OrderedMap[string, *SourceOuter]    `yaml:"sources"`
	Sinks      *orderedmap.OrderedMap[string, *SinkOuter]      `yaml:"sinks"`
	Transforms *orderedmap.OrderedMap[string, *TransformOuter] `yaml:"transforms"`
	Tests      []TestDefinition                                `yaml:"tests"`
}

func NewBuilder() *Builder {
	b := &Builder{}
	b.init()
	return b
}

func (b *Builder) init() {
	if b.Sources == nil {
		b.Sources = orderedmap.New[string, *SourceOuter]()
	}
	if b.Sinks == nil {
		b.Sinks = orderedmap.New[string, *SinkOuter]()
	}
	if b.Transforms == nil {
		b.Transforms = orderedmap.New[string, *TransformOuter]()
	}
}

// Append merges a fragment into the builder. Every duplicate name is
// reported, sources first, then sinks, then transforms, each in declaration
// order. A category with a duplicate is left untouched while the other
// categories are still merged. Global options are only merged when they do
// not conflict.
func (b *Builder) Append(with *Builder) error {
	b.init()
	with.init()

	var errs Errors

	global := b.Global
	if globalErrs := global.merge(&with.Global); len(globalErrs) > 0 {
		errs = append(errs, globalErrs...)
	} else {
		b.Global = global
	}

	errs = append(errs, appendCategory(b.Sources, with.Sources, "source")...)
	errs = append(errs, appendCategory(b.Sinks, with.Sinks, "sink")...)
	errs = append(errs, appendCategory(b.Transforms, with.Transforms, "transform")...)

	b.Tests = append(b.Tests, with.Tests...)
	return errs.err()
}

func appendCategory[V any](dst, src *orderedmap.OrderedMap[string, V], category string) Errors {
	var errs Errors
	for pair := src.Oldest(); pair != nil; pair = pair.Next() {
		if _, dup := dst.Get(pair.Key); dup {
			errs = append(errs, fmt.Sprintf("duplicate %s name found: %s", category, pair.Key))
		}
	}
	if len(errs) > 0 {
		return errs
	}
	for pair := src.Oldest(); pair != nil; pair = pair.Next() {
		dst.Set(pair.Key, pair.Value)
	}
	return nil
}

// Build expands macros and validates the result. All problems found are
// returned together as Errors.
func (b *Builder) Build() (*Config, error) {
	b.init()
	cfg, errs := b.compile()
	if len(errs) > 0 {
		return nil, errs
	}
	return cfg, nil
}

func (b *Builder) compile() (*Config, Errors) {
	global := b.Global
	if global.DataDir == nil {
		dir := DefaultDataDir
		global.DataDir = &dir
	}

	cfg := &Config{
		Global:     global,
		Sources:    orderedmap.New[string, *SourceOuter](),
		Sinks:      orderedmap.New[string, *SinkOuter](),
		Transforms: orderedmap.New[string, *TransformOuter](),
		Tests:      append([]TestDefinition(nil), b.Tests...),
		expansions: orderedmap.New[string, []string](),
	}
	for pair := b.Sources.Oldest(); pair != nil; pair = pair.Next() {
		cfg.Sources.Set(pair.Key, pair.Value)
	}
	for pair := b.Sinks.Oldest(); pair != nil; pair = pair.Next() {
		cfg.Sinks.Set(pair.Key, pair.Value)
	}

	transforms, expansions, errs := expandMacros(b.Transforms)
	cfg.Transforms = transforms
	cfg.expansions = expansions
	if len(errs) > 0 {
		return cfg, errs
	}

	errs = append(errs, cfg.checkShape()...)
	if len(errs) == 0 {
		errs = append(errs, cfg.typecheck()...)
	}
	if len(errs) == 0 {
		errs = append(errs, cfg.checkCycles()...)
	}
	errs = append(errs, cfg.checkResources()...)
	errs = append(errs, cfg.validateTests()...)
	return cfg, errs
}
