// Package codecs turns events into bytes and back for sinks and sources that
// talk to external systems.
package codecs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type Encoding string

const (
	EncodingJSON     Encoding = "json"
	EncodingText     Encoding = "text"
	EncodingProtobuf Encoding = "protobuf"
)

const DefaultMessageKey = "message"

type Codec struct {
	Encoding   Encoding
	MessageKey string
}

func New(encoding Encoding, messageKey string) (Codec, error) {
	if encoding == "" {
		encoding = EncodingJSON
	}
	if messageKey == "" {
		messageKey = DefaultMessageKey
	}
	switch encoding {
	case EncodingJSON, EncodingText, EncodingProtobuf:
		return Codec{Encoding: encoding, MessageKey: messageKey}, nil
	}
	return Codec{}, fmt.Errorf("unknown encoding %q", encoding)
}

func (c Codec) Encode(event events.Event) ([]byte, error) {
	switch c.Encoding {
	case EncodingText:
		return c.encodeText(event), nil
	case EncodingProtobuf:
		return encodeProtobuf(event)
	default:
		return encodeJSON(event)
	}
}

func (c Codec) Decode(data []byte) (events.Event, error) {
	switch c.Encoding {
	case EncodingText:
		return events.NewLogEvent(map[string]any{c.MessageKey: string(data)}), nil
	case EncodingProtobuf:
		return decodeProtobuf(data)
	default:
		return decodeJSON(data)
	}
}

func (c Codec) encodeText(event events.Event) []byte {
	switch e := event.(type) {
	case *events.LogEvent:
		if msg, ok := e.Fields[c.MessageKey]; ok {
			return []byte(fmt.Sprint(msg))
		}
		b, _ := json.Marshal(normalize(e.Fields))
		return b
	case *events.Metric:
		return []byte(formatMetric(e))
	}
	return []byte(fmt.Sprint(event.GetAttributes()))
}

func formatMetric(m *events.Metric) string {
	var sb strings.Builder
	if m.Namespace != "" {
		sb.WriteString(m.Namespace)
		sb.WriteByte('_')
	}
	sb.WriteString(m.Name)
	if len(m.Tags) > 0 {
		keys := make([]string, 0, len(m.Tags))
		for k := range m.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "%s=%q", k, m.Tags[k])
		}
		sb.WriteByte('}')
	}
	fmt.Fprintf(&sb, " %g", m.Value)
	return sb.String()
}

type metricEnvelope struct {
	Metric *events.Metric `json:"metric"`
}

func encodeJSON(event events.Event) ([]byte, error) {
	switch e := event.(type) {
	case *events.LogEvent:
		return json.Marshal(normalize(e.Fields))
	case *events.Metric:
		return json.Marshal(metricEnvelope{Metric: e})
	}
	return nil, fmt.Errorf("unsupported event %T", event)
}

func decodeJSON(data []byte) (events.Event, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode json event: %w", err)
	}
	if raw, ok := fields["metric"]; ok && len(fields) == 1 {
		if _, isObject := raw.(map[string]any); isObject {
			var env metricEnvelope
			if err := json.Unmarshal(data, &env); err != nil {
				return nil, fmt.Errorf("decode json metric: %w", err)
			}
			return env.Metric, nil
		}
	}
	return events.NewLogEvent(fields), nil
}

func encodeProtobuf(event events.Event) ([]byte, error) {
	var envelope map[string]any
	switch e := event.(type) {
	case *events.LogEvent:
		envelope = map[string]any{"log": normalize(e.Fields)}
	case *events.Metric:
		b, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		envelope = map[string]any{"metric": m}
	default:
		return nil, fmt.Errorf("unsupported event %T", event)
	}
	s, err := structpb.NewStruct(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode protobuf event: %w", err)
	}
	return proto.Marshal(s)
}

func decodeProtobuf(data []byte) (events.Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode protobuf event: %w", err)
	}
	envelope := s.AsMap()
	if log, ok := envelope["log"].(map[string]any); ok {
		return events.NewLogEvent(log), nil
	}
	if metric, ok := envelope["metric"].(map[string]any); ok {
		b, err := json.Marshal(metric)
		if err != nil {
			return nil, err
		}
		var m events.Metric
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("decode protobuf metric: %w", err)
		}
		return &m, nil
	}
	return nil, fmt.Errorf("decode protobuf event: missing log or metric envelope")
}

// normalize rewrites values into the JSON-compatible shapes structpb accepts.
func normalize(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch v := v.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case map[string]any:
		return normalize(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = item
		}
		return out
	case fmt.Stringer:
		return v.String()
	}
	return v
}
