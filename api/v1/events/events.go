package events

import (
	"maps"
	"time"
)

// DataType is the kind of event a component produces or accepts.
type DataType string

const (
	DataTypeAny    DataType = "any"
	DataTypeLog    DataType = "log"
	DataTypeMetric DataType = "metric"
)

// Compatible reports whether events of type produced may flow into a
// component accepting d.
func (d DataType) Compatible(produced DataType) bool {
	return d == DataTypeAny || produced == DataTypeAny || d == produced
}

// Base interface for all events
type Event interface {
	Type() DataType
	GetAttributes() map[string]any
	Clone() Event
}

type LogEvent struct {
	Fields map[string]any
}

func NewLogEvent(fields map[string]any) *LogEvent {
	if fields == nil {
		fields = map[string]any{}
	}
	return &LogEvent{Fields: fields}
}

func (e *LogEvent) Type() DataType {
	return DataTypeLog
}

func (e *LogEvent) GetAttributes() map[string]any {
	return e.Fields
}

func (e *LogEvent) Get(key string) (any, bool) {
	v, ok := e.Fields[key]
	return v, ok
}

func (e *LogEvent) Insert(key string, value any) {
	e.Fields[key] = value
}

func (e *LogEvent) Remove(key string) {
	delete(e.Fields, key)
}

func (e *LogEvent) Clone() Event {
	return &LogEvent{Fields: cloneFields(e.Fields)}
}

func cloneFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch v := v.(type) {
		case map[string]any:
			out[k] = cloneFields(v)
		case []any:
			out[k] = append([]any(nil), v...)
		default:
			out[k] = v
		}
	}
	return out
}

type MetricKind string

const (
	MetricKindIncremental MetricKind = "incremental"
	MetricKindAbsolute    MetricKind = "absolute"
)

type MetricValueType string

const (
	MetricValueCounter MetricValueType = "counter"
	MetricValueGauge   MetricValueType = "gauge"
)

type Metric struct {
	Name      string            `yaml:"name" json:"name"`
	Namespace string            `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Kind      MetricKind        `yaml:"kind" json:"kind"`
	ValueType MetricValueType   `yaml:"value_type" json:"value_type"`
	Value     float64           `yaml:"value" json:"value"`
	Tags      map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Timestamp time.Time         `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`
}

func (m *Metric) Type() DataType {
	return DataTypeMetric
}

func (m *Metric) GetAttributes() map[string]any {
	attrs := map[string]any{
		"name":       m.Name,
		"kind":       string(m.Kind),
		"value_type": string(m.ValueType),
		"value":      m.Value,
	}
	if m.Namespace != "" {
		attrs["namespace"] = m.Namespace
	}
	if !m.Timestamp.IsZero() {
		attrs["timestamp"] = m.Timestamp.Unix()
	}
	for k, v := range m.Tags {
		attrs["tags."+k] = v
	}
	return attrs
}

func (m *Metric) Clone() Event {
	c := *m
	c.Tags = maps.Clone(m.Tags)
	return &c
}
