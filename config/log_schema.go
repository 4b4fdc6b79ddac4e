package config

import (
	"fmt"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
)

const (
	DefaultHostKey       = "host"
	DefaultMessageKey    = "message"
	DefaultTimestampKey  = "timestamp"
	DefaultSourceTypeKey = "source_type"
)

// LogSchema names the fields sources use for the well known parts of a log
// event. Empty fields fall back to the defaults.
type LogSchema struct {
	HostKey       string `yaml:"host_key"`
	MessageKey    string `yaml:"message_key"`
	TimestampKey  string `yaml:"timestamp_key"`
	SourceTypeKey string `yaml:"source_type_key"`
}

func (s LogSchema) Host() string {
	return orDefault(s.HostKey, DefaultHostKey)
}

func (s LogSchema) Message() string {
	return orDefault(s.MessageKey, DefaultMessageKey)
}

func (s LogSchema) Timestamp() string {
	return orDefault(s.TimestampKey, DefaultTimestampKey)
}

func (s LogSchema) SourceType() string {
	return orDefault(s.SourceTypeKey, DefaultSourceTypeKey)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// merge takes over the keys other sets. Two fragments setting the same key
// to different values is an error.
func (s *LogSchema) merge(other *LogSchema) Errors {
	var errs Errors
	fields := []struct {
		name string
		dst  *string
		src  string
	}{
		{"host_key", &s.HostKey, other.HostKey},
		{"message_key", &s.MessageKey, other.MessageKey},
		{"timestamp_key", &s.TimestampKey, other.TimestampKey},
		{"source_type_key", &s.SourceTypeKey, other.SourceTypeKey},
	}
	for _, f := range fields {
		switch {
		case f.src == "":
		case *f.dst == "":
			*f.dst = f.src
		case *f.dst != f.src:
			errs = append(errs, fmt.Sprintf("conflicting values for 'log_schema.%s' found", f.name))
		}
	}
	return errs
}

// NewLogEvent builds the event a source produces for one message, stamped
// with the current time and the source type.
func (s LogSchema) NewLogEvent(message any, sourceType string) *events.LogEvent {
	return events.NewLogEvent(map[string]any{
		s.Message():    message,
		s.Timestamp():  time.Now().UTC(),
		s.SourceType(): sourceType,
	})
}
