package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"cityreport/models"
	"cityreport/store"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// LocalSink appends events to the security_events slot of the local store.
// The slot is append-only: events are never rewritten or dropped.
type LocalSink struct {
	mu    sync.Mutex
	store *store.LocalStore
}

// NewLocalSink creates a LocalSink.
func NewLocalSink(s *store.LocalStore) *LocalSink {
	return &LocalSink{store: s}
}

func (s *LocalSink) Name() string { return "local" }

func (s *LocalSink) Deliver(_ context.Context, event models.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Set(store.KeySecurityEvents, append(s.events(), event))
	return nil
}

// Events returns the stored events, oldest first. Deliveries race each other,
// so order comes from the event timestamps rather than arrival.
func (s *LocalSink) Events() []models.SecurityEvent {
	s.mu.Lock()
	events := s.events()
	s.mu.Unlock()

	slices.SortStableFunc(events, func(a, b models.SecurityEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return events
}

func (s *LocalSink) events() []models.SecurityEvent {
	return store.Get(s.store, store.KeySecurityEvents, []models.SecurityEvent{})
}

// LogSink writes events to the structured log.
type LogSink struct {
	log logrus.FieldLogger
}

// NewLogSink creates a LogSink.
func NewLogSink(log logrus.FieldLogger) *LogSink {
	return &LogSink{log: log.WithField("component", "security")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, event models.SecurityEvent) error {
	s.log.WithFields(logrus.Fields{
		"event_id": event.ID,
		"kind":     event.Kind,
		"subject":  event.Subject,
		"detail":   event.Detail,
	}).Info("security event")
	return nil
}

// DefaultChannel is the pub/sub channel security events are published on.
const DefaultChannel = "security-events"

// RedisPublisher publishes events as JSON on a Redis channel.
type RedisPublisher struct {
	client  redis.Cmdable
	channel string
}

// NewRedisPublisher creates a RedisPublisher. An empty channel selects DefaultChannel.
func NewRedisPublisher(client redis.Cmdable, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Deliver(ctx context.Context, event models.SecurityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}
	return nil
}
