// Package events broadcasts finished turns on Redis Streams so companion
// processes (frontends, log tails) can follow a game live. Events are
// transient notifications; nothing in the game reads them back.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TurnEvent describes one completed conversation turn.
type TurnEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserText  string    `json:"user_text"`
	Reply     string    `json:"reply"`
	MemoryID  string    `json:"memory_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits turn events. Implementations must be safe to call from
// multiple sessions.
type Publisher interface {
	Publish(ctx context.Context, ev *TurnEvent) error
	Close() error
}

const streamPrefix = "loreweaver:session:"

// RedisPublisher implements Publisher on Redis Streams, one stream per
// session.
type RedisPublisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(redisURL string, logger *zap.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisPublisher{rdb: rdb, logger: logger}, nil
}

// Publish appends the event to its session's stream.
func (p *RedisPublisher) Publish(ctx context.Context, ev *TurnEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	stream := streamPrefix + ev.SessionID
	_, err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}

	p.logger.Debug("published turn event",
		zap.String("session", ev.SessionID),
		zap.String("event", ev.ID))
	return nil
}

// Subscribe tails a session's stream, emitting events until the context is
// canceled.
func (p *RedisPublisher) Subscribe(ctx context.Context, sessionID string) <-chan *TurnEvent {
	ch := make(chan *TurnEvent, 16)
	stream := streamPrefix + sessionID

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := p.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev TurnEvent
					if json.Unmarshal([]byte(data), &ev) == nil {
						ch <- &ev
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
