// Package stdin reads newline delimited events from standard input.
package stdin

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/sources"
	"github.com/erhlee-bird/vector/telemetry"
)

const SourceType = "stdin"

type Config struct {
	// HostKey overrides the log schema's host field.
	HostKey string `yaml:"host_key"`

	reader io.Reader
}

func init() {
	config.RegisterSource(SourceType, func() config.SourceConfig { return &Config{} })
}

func (c *Config) OutputType() events.DataType { return events.DataTypeLog }
func (c *Config) SourceType() string          { return SourceType }
func (c *Config) Resources() []config.Resource {
	return []config.Resource{config.Stdin()}
}

func (c *Config) Build(ctx context.Context, cx config.SourceContext) (sources.Source, error) {
	reader := c.reader
	if reader == nil {
		reader = os.Stdin
	}
	schema := cx.Globals.LogSchema
	hostKey := c.HostKey
	if hostKey == "" {
		hostKey = schema.Host()
	}
	host, _ := os.Hostname()

	return func() error {
		// A read from stdin cannot be interrupted, so lines are read on their
		// own goroutine and the task returns as soon as shutdown starts.
		lines := make(chan string)
		readErr := make(chan error, 1)
		go func() {
			defer close(lines)
			readErr <- sources.ReadLines(reader, func(line string) bool {
				select {
				case lines <- line:
					return true
				case <-ctx.Done():
					return false
				}
			})
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					if err := <-readErr; err != nil {
						slog.Error("stdin source: read failed", "component", cx.Name, "error", err)
						return err
					}
					return nil
				}
				event := schema.NewLogEvent(line, SourceType)
				if host != "" {
					event.Insert(hostKey, host)
				}
				if !sources.Emit(ctx, cx.Out, event) {
					return nil
				}
				telemetry.Processed("source", SourceType, cx.Name)
			}
		}
	}, nil
}
