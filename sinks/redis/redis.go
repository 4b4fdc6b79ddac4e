// Package redis publishes encoded events to a redis channel or appends them
// to a list.
package redis

import (
	"context"
	"fmt"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/codecs"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/sinks"
	"github.com/redis/go-redis/v9"
)

const SinkType = "redis"

type DataType string

const (
	DataTypeChannel DataType = "channel"
	DataTypeList    DataType = "list"
)

type Config struct {
	Addr     string          `yaml:"addr" validate:"required"`
	Password string          `yaml:"password"`
	DB       int             `yaml:"db"`
	Key      string          `yaml:"key" validate:"required"`
	DataType DataType        `yaml:"data_type" validate:"omitempty,oneof=channel list"`
	Encoding codecs.Encoding `yaml:"encoding" validate:"omitempty,oneof=json text protobuf"`
}

func init() {
	config.RegisterSink(SinkType, func() config.SinkConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType { return events.DataTypeAny }
func (c *Config) SinkType() string           { return SinkType }

func (c *Config) Build(ctx context.Context, cx config.SinkContext) (sinks.Sink, sinks.Healthcheck, error) {
	codec, err := codecs.New(c.Encoding, cx.Globals.LogSchema.Message())
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	w := &writer{client: client, codec: codec, key: c.Key, list: c.DataType == DataTypeList}

	healthcheck := func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis sink: %w", err)
		}
		return nil
	}
	return sinks.NewStreamSink(ctx, cx.Name, SinkType, w, cx.Acker), healthcheck, nil
}

type writer struct {
	client *redis.Client
	codec  codecs.Codec
	key    string
	list   bool
}

func (w *writer) Consume(ctx context.Context, event events.Event) error {
	data, err := w.codec.Encode(event)
	if err != nil {
		return err
	}
	if w.list {
		return w.client.RPush(ctx, w.key, data).Err()
	}
	return w.client.Publish(ctx, w.key, data).Err()
}

func (w *writer) Flush(context.Context) error {
	return w.client.Close()
}
