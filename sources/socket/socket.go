// Package socket accepts TCP connections and turns every line received into
// an event.
package socket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/sources"
	"github.com/erhlee-bird/vector/telemetry"
)

const SourceType = "socket"

type Config struct {
	Address string `yaml:"address" validate:"required"`
	// HostKey names the field receiving the peer address.
	HostKey string `yaml:"host_key"`

	bound net.Addr
}

func init() {
	config.RegisterSource(SourceType, func() config.SourceConfig { return &Config{} })
}

func (c *Config) OutputType() events.DataType { return events.DataTypeLog }
func (c *Config) SourceType() string          { return SourceType }

func (c *Config) Resources() []config.Resource {
	r, err := config.ParsePort(c.Address)
	if err != nil {
		return nil
	}
	return []config.Resource{r}
}

func (c *Config) Build(ctx context.Context, cx config.SourceContext) (sources.Source, error) {
	if _, err := config.ParsePort(c.Address); err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", c.Address)
	if err != nil {
		return nil, fmt.Errorf("socket source: %w", err)
	}
	c.bound = listener.Addr()

	schema := cx.Globals.LogSchema
	hostKey := c.HostKey
	if hostKey == "" {
		hostKey = schema.Host()
	}

	var mu sync.Mutex
	conns := map[net.Conn]struct{}{}
	// The listener is released on shutdown even if the task never runs.
	go func() {
		<-ctx.Done()
		listener.Close()
		mu.Lock()
		for conn := range conns {
			conn.Close()
		}
		mu.Unlock()
	}()

	return func() error {
		var wg sync.WaitGroup
		defer wg.Wait()
		for {
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				slog.Error("socket source: accept failed", "component", cx.Name, "error", err)
				return err
			}
			mu.Lock()
			conns[conn] = struct{}{}
			if ctx.Err() != nil {
				conn.Close()
			}
			mu.Unlock()

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					mu.Lock()
					delete(conns, conn)
					mu.Unlock()
					conn.Close()
				}()
				peer := conn.RemoteAddr().String()
				err := sources.ReadLines(conn, func(line string) bool {
					event := schema.NewLogEvent(line, SourceType)
					event.Insert(hostKey, peer)
					if !sources.Emit(ctx, cx.Out, event) {
						return false
					}
					telemetry.Processed("source", SourceType, cx.Name)
					return true
				})
				if err != nil && ctx.Err() == nil {
					slog.Warn("socket source: connection read failed", "component", cx.Name, "peer", peer, "error", err)
				}
			}()
		}
	}, nil
}
