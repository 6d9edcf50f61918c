package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Clark-Hu/store-ratings/internal/logger"
)

const defaultRedisChannel = "store-ratings.events"

// RedisPublisher publishes events on a Redis pub/sub channel.
type RedisPublisher struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher connects to addr and pings it before returning.
func NewRedisPublisher(ctx context.Context, addr, channel string, log *logger.Logger) (*RedisPublisher, error) {
	if log == nil {
		log = logger.NewNop()
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required for the redis events backend")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = defaultRedisChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisPublisher{
		log:     log.With("component", "events.redis"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

// Publish marshals event to JSON and publishes it on the configured channel.
func (p *RedisPublisher) Publish(ctx context.Context, event RatingChanged) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

// Subscribe forwards every event on the channel to onEvent until ctx ends.
func (p *RedisPublisher) Subscribe(ctx context.Context, onEvent func(RatingChanged)) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok || m == nil {
				return nil
			}
			var event RatingChanged
			if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
				p.log.Warn("bad redis event payload", "error", err)
				continue
			}
			onEvent(event)
		}
	}
}

func (p *RedisPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
