// Package postgres stores events as jsonb rows.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/codecs"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/sinks"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const SinkType = "postgres"

// Rows are written to a table shaped like
//
//	CREATE TABLE events (timestamp timestamptz NOT NULL, event jsonb NOT NULL);
type Config struct {
	Endpoint string `yaml:"endpoint" validate:"required"`
	// Table may be schema qualified.
	Table string `yaml:"table" validate:"required"`

	db database
}

// database is the part of pgxpool.Pool the sink uses.
type database interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

func init() {
	config.RegisterSink(SinkType, func() config.SinkConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType { return events.DataTypeAny }
func (c *Config) SinkType() string           { return SinkType }

func (c *Config) Build(ctx context.Context, cx config.SinkContext) (sinks.Sink, sinks.Healthcheck, error) {
	db := c.db
	if db == nil {
		pool, err := pgxpool.New(ctx, c.Endpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres sink: %w", err)
		}
		db = pool
	}
	codec, err := codecs.New(codecs.EncodingJSON, cx.Globals.LogSchema.Message())
	if err != nil {
		return nil, nil, err
	}
	w := &writer{
		db:           db,
		codec:        codec,
		timestampKey: cx.Globals.LogSchema.Timestamp(),
		insert: fmt.Sprintf("INSERT INTO %s (timestamp, event) VALUES ($1, $2)",
			pgx.Identifier(strings.Split(c.Table, ".")).Sanitize()),
	}
	healthcheck := func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("postgres sink: %w", err)
		}
		return nil
	}
	return sinks.NewStreamSink(ctx, cx.Name, SinkType, w, cx.Acker), healthcheck, nil
}

type writer struct {
	db           database
	codec        codecs.Codec
	timestampKey string
	insert       string
}

func (w *writer) Consume(ctx context.Context, event events.Event) error {
	data, err := w.codec.Encode(event)
	if err != nil {
		return err
	}
	_, err = w.db.Exec(ctx, w.insert, eventTime(event, w.timestampKey), json.RawMessage(data))
	return err
}

func (w *writer) Flush(context.Context) error {
	w.db.Close()
	return nil
}

func eventTime(event events.Event, timestampKey string) time.Time {
	switch e := event.(type) {
	case *events.LogEvent:
		if ts, ok := e.Fields[timestampKey].(time.Time); ok {
			return ts
		}
	case *events.Metric:
		if !e.Timestamp.IsZero() {
			return e.Timestamp
		}
	}
	return time.Now().UTC()
}
