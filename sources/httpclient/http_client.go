// Package httpclient polls an HTTP endpoint and emits the decoded response
// bodies.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/codecs"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/sources"
	"github.com/erhlee-bird/vector/telemetry"
)

const SourceType = "http_client"

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	URL      string            `yaml:"url" validate:"required,url"`
	Interval string            `yaml:"interval" validate:"required"`
	Headers  map[string]string `yaml:"headers"`
	// Encoding of the response body: text (default), json or protobuf.
	Encoding codecs.Encoding `yaml:"encoding" validate:"omitempty,oneof=json text protobuf"`

	client HTTPClient
}

func init() {
	config.RegisterSource(SourceType, func() config.SourceConfig { return &Config{} })
}

func (c *Config) OutputType() events.DataType { return events.DataTypeAny }
func (c *Config) SourceType() string          { return SourceType }

func (c *Config) Build(ctx context.Context, cx config.SourceContext) (sources.Source, error) {
	interval, err := time.ParseDuration(c.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid polling interval %q: %w", c.Interval, err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("polling interval must be positive, got %s", interval)
	}
	encoding := c.Encoding
	if encoding == "" {
		encoding = codecs.EncodingText
	}
	codec, err := codecs.New(encoding, cx.Globals.LogSchema.Message())
	if err != nil {
		return nil, err
	}
	var client HTTPClient = http.DefaultClient
	if c.client != nil {
		client = c.client
	}

	s := &poller{cfg: c, client: client, codec: codec, schema: cx.Globals.LogSchema}
	return func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				event, err := s.poll(ctx)
				if err != nil {
					telemetry.Error("source", SourceType, cx.Name)
					slog.Error("http source: request failed", "component", cx.Name, "url", c.URL, "error", err)
					continue
				}
				if !sources.Emit(ctx, cx.Out, event) {
					return nil
				}
				telemetry.Processed("source", SourceType, cx.Name)
			}
		}
	}, nil
}

type poller struct {
	cfg    *Config
	client HTTPClient
	codec  codecs.Codec
	schema config.LogSchema
}

func (p *poller) poll(ctx context.Context) (events.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	event, err := p.codec.Decode(body)
	if err != nil {
		return nil, err
	}
	if log, ok := event.(*events.LogEvent); ok {
		if _, ok := log.Get(p.schema.Timestamp()); !ok {
			log.Insert(p.schema.Timestamp(), time.Now().UTC())
		}
		log.Insert(p.schema.SourceType(), SourceType)
	}
	return event, nil
}
