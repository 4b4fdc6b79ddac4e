package config

import "time"

type StateStoreType string

const (
	InMemoryStateStoreType StateStoreType = "in_memory"
	RedisStateStoreType    StateStoreType = "redis"
)

type InMemoryStateStoreConfig struct {
	Expiry time.Duration `yaml:"expiry"`
}

type RedisStateStoreConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	Expiry    time.Duration `yaml:"expiry"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// StateStoreConfig selects where stateful transforms keep their state.
type StateStoreConfig struct {
	Type     StateStoreType           `yaml:"type"`
	InMemory InMemoryStateStoreConfig `yaml:"in_memory"`
	Redis    RedisStateStoreConfig    `yaml:"redis"`
}
