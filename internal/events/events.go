// Package events fans request lifecycle changes out to other services over
// Redis pub/sub. Publishing is best effort: failures are logged and never
// fail the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// Type names a lifecycle event.
type Type string

const (
	RequestCreated        Type = "request.created"
	RequestVoted          Type = "request.voted"
	RequestUnvoted        Type = "request.unvoted"
	RequestApproved       Type = "request.approved"
	RequestRejected       Type = "request.rejected"
	AdministratorsUpdated Type = "administrators.updated"
	PlaylistUpdated       Type = "playlist.updated"
)

// DefaultChannel is the Redis channel events are published to.
const DefaultChannel = "playvote:events"

// Event is the message published for each lifecycle change.
type Event struct {
	Type       Type           `json:"type"`
	PlaylistID string         `json:"playlistId"`
	Payload    map[string]any `json:"payload,omitempty"`
	At         time.Time      `json:"at"`
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NopPublisher drops every event. Used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// RedisPublisher publishes JSON-encoded events to a Redis channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on channel, or [DefaultChannel] when empty.
func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// Channel returns the channel events are published to.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Publish encodes evt and publishes it, stamping the time when unset.
func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Type, err)
	}
	return nil
}

// Connect parses a redis:// URL and verifies the server is reachable.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// LoggingPublisher wraps a Publisher and logs failures instead of returning them.
type LoggingPublisher struct {
	next   Publisher
	logger *log.Logger
}

// NewLoggingPublisher wraps next so publish failures are logged at warn level.
func NewLoggingPublisher(next Publisher, logger *log.Logger) *LoggingPublisher {
	return &LoggingPublisher{next: next, logger: logger}
}

// Publish forwards evt and always returns nil.
func (p *LoggingPublisher) Publish(ctx context.Context, evt Event) error {
	if err := p.next.Publish(ctx, evt); err != nil {
		p.logger.Warn("event publish failed", "type", evt.Type, "playlist", evt.PlaylistID, "error", err)
	}
	return nil
}
