// Package notify broadcasts a best-effort change event to subscribed web
// viewers whenever crime records mutate. Delivery is at-most-twice and never
// guaranteed: a broadcast can race a viewer (re)connecting, so the same event
// is re-sent once on a detached timer.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is the structured payload pushed to viewers.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Action    string `json:"action"`
	Message   string `json:"message"`
}

// Publisher is the transport the notifier pushes events into.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher publishes over a Redis pub/sub channel.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps a redis client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends one payload to the channel.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Notifier fires change events without ever blocking or failing the caller.
// A Notifier with no transport is valid and silently drops everything.
type Notifier struct {
	pub         Publisher
	channel     string
	resendDelay time.Duration
}

// New constructs a Notifier. pub may be nil when no transport is live yet.
func New(pub Publisher, channel string, resendDelay time.Duration) *Notifier {
	if resendDelay <= 0 {
		resendDelay = 500 * time.Millisecond
	}
	return &Notifier{pub: pub, channel: channel, resendDelay: resendDelay}
}

// NotifyChange publishes one update event now and schedules a single
// duplicate after the resend delay. Transport failures are logged and
// swallowed; they never reach the mutating caller.
func (n *Notifier) NotifyChange() {
	if n == nil || n.pub == nil {
		return
	}
	evt := Event{
		Type:      "update",
		Timestamp: time.Now().UnixMilli(),
		Action:    "refresh",
		Message:   "Crime records updated",
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("notify: marshal event: %v", err)
		return
	}
	n.send(payload)
	// Covers viewers that reconnect right as the first broadcast goes out.
	time.AfterFunc(n.resendDelay, func() {
		n.send(payload)
	})
}

func (n *Notifier) send(payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.pub.Publish(ctx, n.channel, payload); err != nil {
		log.Printf("notify: publish failed: %v", err)
	}
}
