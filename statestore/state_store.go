// Package statestore keeps short-lived state for stateful transforms, either
// in process or in redis.
package statestore

import (
	"context"
	"fmt"
	"time"

	"github.com/erhlee-bird/vector/config"
	"google.golang.org/protobuf/proto"
)

type StateStore interface {
	// Get returns the live value under key, or a fresh message from new and
	// false when there is none.
	Get(key string, new func() proto.Message) (proto.Message, bool)
	Set(key string, msg proto.Message, ttl time.Duration) error
	// SetIfAbsent stores msg only if key holds no live value and reports
	// whether it did.
	SetIfAbsent(key string, msg proto.Message, ttl time.Duration) (bool, error)
	Delete(key string)
	Close()
}

func NewStateStore(ctx context.Context, cfg config.StateStoreConfig) (StateStore, error) {
	switch cfg.Type {
	case config.RedisStateStoreType:
		return NewRedisStateStore(ctx, cfg.Redis)
	case config.InMemoryStateStoreType, "":
		return NewInMemoryStateStore(cfg.InMemory), nil
	}
	return nil, fmt.Errorf("unknown state store type %q", cfg.Type)
}
