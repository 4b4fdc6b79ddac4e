// Package jsonparser parses a field holding JSON and merges the result into
// the event.
package jsonparser

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/telemetry"
	"github.com/erhlee-bird/vector/transforms"
)

const TransformType = "json_parser"

type Config struct {
	// Field holds the JSON text. Defaults to the log schema's message key.
	Field       string `yaml:"field"`
	DropInvalid bool   `yaml:"drop_invalid"`
	// DropField removes the parsed field, unless it was overwritten by a key
	// of the parsed object. Defaults to true.
	DropField *bool `yaml:"drop_field"`
	// TargetField nests the parsed object under a field instead of merging
	// it at the top level.
	TargetField     string `yaml:"target_field"`
	OverwriteTarget bool   `yaml:"overwrite_target"`
}

func init() {
	config.RegisterTransform(TransformType, func() config.TransformConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType  { return events.DataTypeLog }
func (c *Config) OutputType() events.DataType { return events.DataTypeLog }
func (c *Config) TransformType() string       { return TransformType }

func (c *Config) Build(ctx context.Context, cx config.TransformContext) (transforms.Transform, error) {
	return transforms.FromFunction(cx.Name, TransformType, c.parser(cx)), nil
}

type parser struct {
	name            string
	field           string
	dropInvalid     bool
	dropField       bool
	targetField     string
	overwriteTarget bool
}

func (c *Config) parser(cx config.TransformContext) *parser {
	p := &parser{
		name:            cx.Name,
		field:           c.Field,
		dropInvalid:     c.DropInvalid,
		dropField:       c.DropField == nil || *c.DropField,
		targetField:     c.TargetField,
		overwriteTarget: c.OverwriteTarget,
	}
	if p.field == "" {
		p.field = config.LogSchema{}.Message()
		if cx.Globals != nil {
			p.field = cx.Globals.LogSchema.Message()
		}
	}
	return p
}

func (p *parser) TransformInto(output *[]events.Event, event events.Event) {
	log, ok := event.(*events.LogEvent)
	if !ok {
		*output = append(*output, event)
		return
	}

	var parsed map[string]any
	value, exists := log.Get(p.field)
	text, isString := value.(string)
	if !exists || !isString || json.Unmarshal([]byte(text), &parsed) != nil || parsed == nil {
		telemetry.Error("transform", TransformType, p.name)
		slog.Debug("json_parser transform: field is not a JSON object", "component", p.name, "field", p.field)
		if p.dropInvalid {
			telemetry.Discarded("transform", TransformType, p.name, "invalid_json")
			return
		}
		*output = append(*output, event)
		return
	}

	if p.targetField != "" {
		if _, taken := log.Get(p.targetField); taken && !p.overwriteTarget {
			slog.Debug("json_parser transform: target field already exists", "component", p.name, "target", p.targetField)
			*output = append(*output, event)
			return
		}
		if p.dropField {
			log.Remove(p.field)
		}
		log.Insert(p.targetField, parsed)
	} else {
		if p.dropField {
			log.Remove(p.field)
		}
		for k, v := range parsed {
			log.Insert(k, v)
		}
	}
	*output = append(*output, log)
}
