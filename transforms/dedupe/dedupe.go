// Package dedupe drops log events whose identifying fields were already seen
// within a time window.
package dedupe

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"slices"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/statestore"
	"github.com/erhlee-bird/vector/telemetry"
	"github.com/erhlee-bird/vector/transforms"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	TransformType = "dedupe"
	DefaultTTL    = 10 * time.Minute
)

type FieldsConfig struct {
	// Match lists the fields identifying an event. Defaults to the
	// timestamp, host and message keys of the log schema.
	Match []string `yaml:"match"`
	// Ignore identifies an event by every field except these. It takes
	// precedence over Match.
	Ignore []string `yaml:"ignore"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" validate:"gte=0"`
}

type Config struct {
	Fields     FieldsConfig            `yaml:"fields"`
	Cache      CacheConfig             `yaml:"cache"`
	StateStore config.StateStoreConfig `yaml:"state_store"`
}

func init() {
	config.RegisterTransform(TransformType, func() config.TransformConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType  { return events.DataTypeLog }
func (c *Config) OutputType() events.DataType { return events.DataTypeLog }
func (c *Config) TransformType() string       { return TransformType }

func (c *Config) Build(ctx context.Context, cx config.TransformContext) (transforms.Transform, error) {
	store, err := statestore.NewStateStore(ctx, c.StateStore)
	if err != nil {
		return nil, fmt.Errorf("dedupe %q: %w", cx.Name, err)
	}
	go func() {
		<-ctx.Done()
		store.Close()
	}()

	d := &deduper{
		name:   cx.Name,
		store:  store,
		ttl:    c.Cache.TTL,
		ignore: c.Fields.Ignore,
		match:  c.Fields.Match,
	}
	if d.ttl == 0 {
		d.ttl = DefaultTTL
	}
	if len(d.ignore) == 0 && len(d.match) == 0 {
		schema := config.LogSchema{}
		if cx.Globals != nil {
			schema = cx.Globals.LogSchema
		}
		d.match = []string{schema.Timestamp(), schema.Host(), schema.Message()}
	}
	return transforms.FromFunction(cx.Name, TransformType, d), nil
}

type deduper struct {
	name   string
	store  statestore.StateStore
	ttl    time.Duration
	match  []string
	ignore []string
}

func (d *deduper) TransformInto(output *[]events.Event, event events.Event) {
	log, ok := event.(*events.LogEvent)
	if !ok {
		*output = append(*output, event)
		return
	}
	key, err := d.key(log)
	if err != nil {
		slog.Warn("dedupe transform: unable to key event", "component", d.name, "error", err)
		*output = append(*output, log)
		return
	}
	stored, err := d.store.SetIfAbsent(key, timestamppb.Now(), d.ttl)
	if err != nil {
		// Without the store every event is treated as new.
		telemetry.Error("transform", TransformType, d.name)
		slog.Warn("dedupe transform: state store failed", "component", d.name, "error", err)
		*output = append(*output, log)
		return
	}
	if !stored {
		telemetry.Discarded("transform", TransformType, d.name, "duplicate")
		return
	}
	*output = append(*output, log)
}

// key hashes the sorted (field, value) pairs identifying the event. Missing
// fields take part as absent so that {a: null} and {} differ.
func (d *deduper) key(log *events.LogEvent) (string, error) {
	type pair struct {
		Field   string `json:"f"`
		Present bool   `json:"p"`
		Value   any    `json:"v"`
	}
	var fields []string
	if len(d.ignore) > 0 {
		for field := range log.Fields {
			if !slices.Contains(d.ignore, field) {
				fields = append(fields, field)
			}
		}
	} else {
		fields = slices.Clone(d.match)
	}
	slices.Sort(fields)
	fields = slices.Compact(fields)

	pairs := make([]pair, len(fields))
	for i, field := range fields {
		value, found := log.Get(field)
		pairs[i] = pair{Field: field, Present: found, Value: value}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return "", err
	}
	h := fnv.New128a()
	h.Write(data)
	return d.name + ":" + hex.EncodeToString(h.Sum(nil)), nil
}
