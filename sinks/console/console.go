// Package console writes events to standard output, standard error or the
// process logger.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/codecs"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/sinks"
)

const SinkType = "console"

type Target string

const (
	TargetStdout Target = "stdout"
	TargetStderr Target = "stderr"
	// TargetLog hands events to the process logger as attributes.
	TargetLog Target = "log"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Config struct {
	Target   Target          `yaml:"target" validate:"omitempty,oneof=stdout stderr log"`
	Encoding codecs.Encoding `yaml:"encoding" validate:"omitempty,oneof=json text"`
	// Level is the record level used by the log target.
	Level Level `yaml:"level" validate:"omitempty,oneof=info warn error"`

	writer io.Writer
}

func init() {
	config.RegisterSink(SinkType, func() config.SinkConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType { return events.DataTypeAny }
func (c *Config) SinkType() string           { return SinkType }

func (c *Config) Build(ctx context.Context, cx config.SinkContext) (sinks.Sink, sinks.Healthcheck, error) {
	if c.Target == TargetLog {
		consumer := &logConsumer{logger: slog.Default(), level: c.level()}
		return sinks.NewStreamSink(ctx, cx.Name, SinkType, consumer, cx.Acker), sinks.Healthy, nil
	}

	codec, err := codecs.New(c.Encoding, cx.Globals.LogSchema.Message())
	if err != nil {
		return nil, nil, err
	}
	w := c.writer
	if w == nil {
		w = os.Stdout
		if c.Target == TargetStderr {
			w = os.Stderr
		}
	}
	consumer := &writeConsumer{w: w, codec: codec}
	return sinks.NewStreamSink(ctx, cx.Name, SinkType, consumer, cx.Acker), sinks.Healthy, nil
}

func (c *Config) level() slog.Level {
	switch c.Level {
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

type writeConsumer struct {
	mu    sync.Mutex
	w     io.Writer
	codec codecs.Codec
}

func (c *writeConsumer) Consume(ctx context.Context, event events.Event) error {
	data, err := c.codec.Encode(event)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("console sink: %w", err)
	}
	return nil
}

type logConsumer struct {
	logger *slog.Logger
	level  slog.Level
}

func (c *logConsumer) Consume(ctx context.Context, event events.Event) error {
	args := []any{}
	for k, v := range event.GetAttributes() {
		if fmt.Sprintf("%v", v) != "" {
			args = append(args, k, v)
		}
	}
	c.logger.Log(ctx, c.level, "event: "+string(event.Type()), args...)
	return nil
}
