package event_server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/codecs"
	"github.com/erhlee-bird/vector/telemetry"
	"github.com/google/uuid"
)

const (
	DefaultPath = "/events"
	// subscriberBuffer is how many events a slow subscriber may lag behind
	// before events are dropped for it.
	subscriberBuffer = 64
	shutdownTimeout  = 5 * time.Second
)

type SubscriberId string

func NewSubscriberId() SubscriberId {
	return SubscriberId(uuid.New().String())
}

type Subscriber struct {
	ID      SubscriberId
	Channel chan []byte
	// Subscription holds the field values an event must carry to be
	// delivered.
	Subscription map[string]string
}

func NewSubscriber(id SubscriberId, subscription map[string]string) *Subscriber {
	return &Subscriber{
		ID:           id,
		Channel:      make(chan []byte, subscriberBuffer),
		Subscription: subscription,
	}
}

func (s *Subscriber) matches(attrs map[string]any) bool {
	for k, v := range s.Subscription {
		got, ok := attrs[k]
		if !ok || fmt.Sprint(got) != v {
			return false
		}
	}
	return true
}

// EventServer streams broadcast events to HTTP clients as server-sent
// events. Query parameters of the request filter the events a client gets.
type EventServer struct {
	name       string
	path       string
	codec      codecs.Codec
	clients    map[SubscriberId]*Subscriber
	clientsMux sync.RWMutex
	done       chan struct{}
	closeOnce  sync.Once
}

// NewEventServer serves the events of the sink called name on path.
func NewEventServer(name, path string, codec codecs.Codec) *EventServer {
	if path == "" {
		path = DefaultPath
	}
	return &EventServer{
		name:    name,
		path:    path,
		codec:   codec,
		clients: make(map[SubscriberId]*Subscriber),
		done:    make(chan struct{}),
	}
}

// Serve accepts connections on listener until ctx is done.
func (es *EventServer) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{Handler: es, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		es.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("event server: shutdown failed", "error", err)
		}
	}()
	if err := httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close ends every open stream.
func (es *EventServer) Close() {
	es.closeOnce.Do(func() { close(es.done) })
}

func (es *EventServer) Subscribe(subscription map[string]string) *Subscriber {
	es.clientsMux.Lock()
	defer es.clientsMux.Unlock()
	client := NewSubscriber(NewSubscriberId(), subscription)
	es.clients[client.ID] = client
	return client
}

func (es *EventServer) Unsubscribe(client *Subscriber) {
	es.clientsMux.Lock()
	defer es.clientsMux.Unlock()
	if _, ok := es.clients[client.ID]; !ok {
		return
	}
	delete(es.clients, client.ID)
	close(client.Channel)
}

// Broadcast hands the event to every matching subscriber. Subscribers that
// fell too far behind miss it.
func (es *EventServer) Broadcast(event events.Event) error {
	data, err := es.codec.Encode(event)
	if err != nil {
		return err
	}
	attrs := event.GetAttributes()

	es.clientsMux.RLock()
	defer es.clientsMux.RUnlock()
	for _, client := range es.clients {
		if !client.matches(attrs) {
			continue
		}
		select {
		case client.Channel <- data:
		default:
			telemetry.Discarded("sink", "sse", es.name, "slow_subscriber")
		}
	}
	return nil
}

func (es *EventServer) Subscribers() int {
	es.clientsMux.RLock()
	defer es.clientsMux.RUnlock()
	return len(es.clients)
}

func (es *EventServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != es.path {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	subscription := map[string]string{}
	for k, v := range r.URL.Query() {
		subscription[k] = v[0]
	}
	client := es.Subscribe(subscription)
	defer es.Unsubscribe(client)

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-es.done:
			return
		case data := <-client.Channel:
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
