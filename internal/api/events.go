package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventSource relays change notifications from the Redis channel to any
// number of connected server-sent-events clients.
type EventSource struct {
	client  *redis.Client
	channel string

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewEventSource constructs a relay for the given pub/sub channel.
func NewEventSource(client *redis.Client, channel string) *EventSource {
	return &EventSource{
		client:  client,
		channel: channel,
		subs:    make(map[chan []byte]struct{}),
	}
}

// Run subscribes to the channel and fans messages out until the context is
// cancelled.
func (e *EventSource) Run(ctx context.Context) {
	pubsub := e.client.Subscribe(ctx, e.channel)
	defer pubsub.Close()
	log.Printf("event relay subscribed to %s", e.channel)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			e.broadcast([]byte(msg.Payload))
		}
	}
}

func (e *EventSource) broadcast(payload []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- payload:
		default:
			// A stalled client drops messages rather than blocking the relay.
		}
	}
}

func (e *EventSource) subscribe() (chan []byte, func()) {
	ch := make(chan []byte, 8)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()
	return ch, func() {
		e.mu.Lock()
		delete(e.subs, ch)
		e.mu.Unlock()
	}
}

// handleEvents streams change notifications to the client as SSE messages.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.events == nil {
		http.Error(w, "live updates unavailable", http.StatusServiceUnavailable)
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
	flusher.Flush()

	ch, cancel := s.events.subscribe()
	defer cancel()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case payload := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
