package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event describes one change to a catalog entity.
type Event struct {
	Entity string    `json:"entity"`
	Action string    `json:"action"`
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
}

// Publisher announces catalog changes to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type RedisFeedConfig struct {
	Addr     string
	Password string
	Stream   string
	MaxLen   int64
}

// RedisFeed appends events to a Redis stream, trimmed to roughly MaxLen entries.
type RedisFeed struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisFeed(cfg RedisFeedConfig) (*RedisFeed, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "locallibrary:catalog"
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisFeed{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream: stream,
		maxLen: maxLen,
	}, nil
}

func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	err := f.client.XAdd(ctx, &redis.XAddArgs{
		Stream: f.stream,
		MaxLen: f.maxLen,
		Approx: true,
		Values: map[string]any{
			"entity": ev.Entity,
			"action": ev.Action,
			"id":     ev.ID,
			"at":     ev.At.Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s %s: %w", ev.Entity, ev.Action, err)
	}
	return nil
}

// Recent returns up to count events, newest first.
func (f *RedisFeed) Recent(ctx context.Context, count int64) ([]Event, error) {
	msgs, err := f.client.XRevRangeN(ctx, f.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	out := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		ev := Event{
			Entity: fieldString(msg.Values, "entity"),
			Action: fieldString(msg.Values, "action"),
			ID:     fieldString(msg.Values, "id"),
		}
		if at, err := time.Parse(time.RFC3339Nano, fieldString(msg.Values, "at")); err == nil {
			ev.At = at
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *RedisFeed) Close() error {
	return f.client.Close()
}

func fieldString(values map[string]any, key string) string {
	v, _ := values[key].(string)
	return v
}
