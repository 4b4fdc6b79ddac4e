// Package sampler passes one of every rate events.
package sampler

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/telemetry"
	"github.com/erhlee-bird/vector/transforms"
)

const (
	TransformType = "sampler"
	// RateField is added to sampled events.
	RateField = "sample_rate"
)

type Config struct {
	Rate uint64 `yaml:"rate" validate:"required,gt=0"`
	// KeyField makes the decision depend on the field's value, so events
	// sharing it are all kept or all dropped.
	KeyField string `yaml:"key_field"`
	// PassList always keeps events whose message contains one of the
	// strings.
	PassList []string `yaml:"pass_list"`
}

func init() {
	config.RegisterTransform(TransformType, func() config.TransformConfig { return &Config{} })
}

func (c *Config) InputType() events.DataType  { return events.DataTypeLog }
func (c *Config) OutputType() events.DataType { return events.DataTypeLog }
func (c *Config) TransformType() string       { return TransformType }

func (c *Config) Build(ctx context.Context, cx config.TransformContext) (transforms.Transform, error) {
	messageKey := config.LogSchema{}.Message()
	if cx.Globals != nil {
		messageKey = cx.Globals.LogSchema.Message()
	}
	return transforms.FromFunction(cx.Name, TransformType, &sampler{
		name:       cx.Name,
		rate:       c.Rate,
		keyField:   c.KeyField,
		passList:   c.PassList,
		messageKey: messageKey,
	}), nil
}

type sampler struct {
	name       string
	rate       uint64
	keyField   string
	passList   []string
	messageKey string
	count      atomic.Uint64
}

func (s *sampler) TransformInto(output *[]events.Event, event events.Event) {
	log, ok := event.(*events.LogEvent)
	if !ok {
		*output = append(*output, event)
		return
	}

	message, _ := log.Get(s.messageKey)
	text := fmt.Sprint(message)
	for _, pass := range s.passList {
		if strings.Contains(text, pass) {
			*output = append(*output, log)
			return
		}
	}

	var keep bool
	if value, found := log.Get(s.keyField); s.keyField != "" && found {
		h := fnv.New64a()
		fmt.Fprint(h, value)
		keep = h.Sum64()%s.rate == 0
	} else {
		keep = (s.count.Add(1)-1)%s.rate == 0
	}
	if !keep {
		telemetry.Discarded("transform", TransformType, s.name, "sampled_out")
		return
	}
	log.Insert(RateField, strconv.FormatUint(s.rate, 10))
	*output = append(*output, log)
}
