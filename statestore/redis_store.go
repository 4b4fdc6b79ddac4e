package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erhlee-bird/vector/config"
	"github.com/redis/go-redis/v9"
	"google.golang.org/protobuf/proto"
)

type RedisStateStore struct {
	ctx    context.Context
	ttl    time.Duration
	prefix string
	client *redis.Client
}

func NewRedisStateStore(ctx context.Context, cfg config.RedisStateStoreConfig) (*RedisStateStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis state store: addr is required")
	}
	if cfg.Expiry == 0 {
		cfg.Expiry = time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStateStore{
		ctx:    ctx,
		ttl:    cfg.Expiry,
		prefix: cfg.KeyPrefix,
		client: client,
	}, nil
}

func (s *RedisStateStore) Get(key string, new func() proto.Message) (proto.Message, bool) {
	data, err := s.client.Get(s.ctx, s.prefix+key).Bytes()
	if err != nil {
		return new(), false
	}
	msg := new()
	if msg == nil {
		return nil, false
	}
	if err := proto.Unmarshal(data, msg); err != nil {
		return new(), false
	}
	return msg, true
}

func (s *RedisStateStore) Set(key string, msg proto.Message, ttl time.Duration) error {
	if ttl == 0 {
		ttl = s.ttl
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis state store: %w", err)
	}
	return s.client.Set(s.ctx, s.prefix+key, data, ttl).Err()
}

func (s *RedisStateStore) SetIfAbsent(key string, msg proto.Message, ttl time.Duration) (bool, error) {
	if ttl == 0 {
		ttl = s.ttl
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("redis state store: %w", err)
	}
	return s.client.SetNX(s.ctx, s.prefix+key, data, ttl).Result()
}

func (s *RedisStateStore) Delete(key string) {
	s.client.Del(s.ctx, s.prefix+key)
}

func (s *RedisStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStateStore) Close() {
	s.client.Close()
}
