package buffers

import (
	"fmt"
	"sync/atomic"

	"github.com/erhlee-bird/vector/telemetry"
	"github.com/reugn/go-streams"
	"gopkg.in/yaml.v3"
)

type BufferType string

const (
	BufferTypeMemory BufferType = "memory"
	BufferTypeDisk   BufferType = "disk"
)

type WhenFull string

const (
	WhenFullBlock      WhenFull = "block"
	WhenFullDropNewest WhenFull = "drop_newest"
)

const DefaultMaxEvents = 500

type BufferConfig struct {
	Type      BufferType `yaml:"type"`
	MaxEvents int        `yaml:"max_events"`
	WhenFull  WhenFull   `yaml:"when_full"`
}

func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		Type:      BufferTypeMemory,
		MaxEvents: DefaultMaxEvents,
		WhenFull:  WhenFullBlock,
	}
}

func (c *BufferConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain BufferConfig
	cfg := plain(DefaultBufferConfig())
	if err := value.Decode(&cfg); err != nil {
		return err
	}
	*c = BufferConfig(cfg)
	return nil
}

func (c BufferConfig) Validate() error {
	switch c.Type {
	case BufferTypeMemory:
	case BufferTypeDisk:
		return fmt.Errorf("buffer type %q is not supported", c.Type)
	default:
		return fmt.Errorf("unknown buffer type %q", c.Type)
	}
	if c.MaxEvents <= 0 {
		return fmt.Errorf("buffer max_events must be positive, got %d", c.MaxEvents)
	}
	switch c.WhenFull {
	case WhenFullBlock, WhenFullDropNewest:
		return nil
	default:
		return fmt.Errorf("unknown buffer when_full policy %q", c.WhenFull)
	}
}

// MemoryBuffer is a bounded queue placed in front of a sink.
type MemoryBuffer struct {
	name    string
	in      chan any
	out     chan any
	dropped atomic.Int64
}

func NewMemoryBuffer(name string, cfg BufferConfig) *MemoryBuffer {
	b := &MemoryBuffer{name: name, out: make(chan any, cfg.MaxEvents)}
	if cfg.WhenFull == WhenFullDropNewest {
		b.in = make(chan any)
		go b.dropWhenFull()
	} else {
		// Blocking buffers are the bounded channel itself.
		b.in = b.out
	}
	return b
}

func (b *MemoryBuffer) dropWhenFull() {
	defer close(b.out)
	for element := range b.in {
		select {
		case b.out <- element:
		default:
			b.dropped.Add(1)
			telemetry.Discarded("buffer", string(BufferTypeMemory), b.name, "buffer_full")
		}
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (b *MemoryBuffer) Dropped() int64 {
	return b.dropped.Load()
}

func (b *MemoryBuffer) In() chan<- any {
	return b.in
}

func (b *MemoryBuffer) Out() <-chan any {
	return b.out
}

func (b *MemoryBuffer) Via(flow streams.Flow) streams.Flow {
	go b.transmit(flow)
	return flow
}

func (b *MemoryBuffer) To(sink streams.Sink) {
	go b.transmit(sink)
}

func (b *MemoryBuffer) transmit(inlet streams.Inlet) {
	for element := range b.Out() {
		inlet.In() <- element
	}
	close(inlet.In())
}

// Acker is notified when a sink has finished with events.
type Acker interface {
	Ack(n int)
}

type nullAcker struct{}

func (nullAcker) Ack(int) {}

// NullAcker ignores acknowledgements.
var NullAcker Acker = nullAcker{}

type CountingAcker struct {
	acked atomic.Int64
}

func (a *CountingAcker) Ack(n int) {
	a.acked.Add(int64(n))
}

func (a *CountingAcker) Acked() int64 {
	return a.acked.Load()
}
