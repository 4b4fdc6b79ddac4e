// Package redis consumes events from a redis pub/sub channel or list.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/codecs"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/sources"
	"github.com/erhlee-bird/vector/telemetry"
	"github.com/redis/go-redis/v9"
)

const SourceType = "redis"

type DataType string

const (
	DataTypeChannel DataType = "channel"
	DataTypeList    DataType = "list"
)

// listPollTimeout bounds a single BLPOP so shutdown is noticed.
const listPollTimeout = time.Second

type Config struct {
	Addr     string          `yaml:"addr" validate:"required"`
	Password string          `yaml:"password"`
	DB       int             `yaml:"db"`
	Key      string          `yaml:"key" validate:"required"`
	DataType DataType        `yaml:"data_type" validate:"omitempty,oneof=channel list"`
	Encoding codecs.Encoding `yaml:"encoding" validate:"omitempty,oneof=json text protobuf"`
}

func init() {
	config.RegisterSource(SourceType, func() config.SourceConfig { return &Config{} })
}

func (c *Config) OutputType() events.DataType { return events.DataTypeAny }
func (c *Config) SourceType() string          { return SourceType }

func (c *Config) Build(ctx context.Context, cx config.SourceContext) (sources.Source, error) {
	encoding := c.Encoding
	if encoding == "" {
		encoding = codecs.EncodingText
	}
	codec, err := codecs.New(encoding, cx.Globals.LogSchema.Message())
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	r := &reader{
		name:   cx.Name,
		key:    c.Key,
		client: client,
		codec:  codec,
		schema: cx.Globals.LogSchema,
		out:    cx.Out,
	}

	if c.DataType == DataTypeList {
		return func() error {
			defer client.Close()
			return r.consumeList(ctx)
		}, nil
	}
	return func() error {
		defer client.Close()
		return r.consumeChannel(ctx)
	}, nil
}

type reader struct {
	name   string
	key    string
	client *redis.Client
	codec  codecs.Codec
	schema config.LogSchema
	out    chan<- any
}

func (r *reader) consumeChannel(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.key)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis source: subscribe to %q: %w", r.key, err)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if !r.emit(ctx, []byte(msg.Payload)) {
				return nil
			}
		}
	}
}

func (r *reader) consumeList(ctx context.Context) error {
	for {
		result, err := r.client.BLPop(ctx, listPollTimeout, r.key).Result()
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			telemetry.Error("source", SourceType, r.name)
			slog.Error("redis source: pop failed", "component", r.name, "key", r.key, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(listPollTimeout):
			}
			continue
		}
		// BLPOP answers with the key followed by the value.
		if !r.emit(ctx, []byte(result[1])) {
			return nil
		}
	}
}

func (r *reader) emit(ctx context.Context, payload []byte) bool {
	event, err := r.codec.Decode(payload)
	if err != nil {
		telemetry.Discarded("source", SourceType, r.name, "decode_failed")
		slog.Warn("redis source: failed to decode payload", "component", r.name, "error", err)
		return true
	}
	if log, ok := event.(*events.LogEvent); ok {
		if _, ok := log.Get(r.schema.Timestamp()); !ok {
			log.Insert(r.schema.Timestamp(), time.Now().UTC())
		}
		log.Insert(r.schema.SourceType(), SourceType)
		log.Insert("redis_key", r.key)
	}
	if !sources.Emit(ctx, r.out, event) {
		return false
	}
	telemetry.Processed("source", SourceType, r.name)
	return true
}
