// Package progress tracks how many alerts each sender has issued.
package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Counter is notified once per successfully persisted alert.
type Counter interface {
	IncrementAlertsSent(ctx context.Context, senderID string) error
}

// Reader is implemented by counters that can report their totals.
type Reader interface {
	AlertsSent(ctx context.Context, senderID string) (int64, error)
}

type Nop struct{}

func (Nop) IncrementAlertsSent(context.Context, string) error { return nil }

const keyPrefix = "alerts_sent:"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(opts RedisOptions) *RedisCounter {
	return &RedisCounter{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
	}
}

func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCounter) IncrementAlertsSent(ctx context.Context, senderID string) error {
	if err := c.client.Incr(ctx, keyPrefix+senderID).Err(); err != nil {
		return fmt.Errorf("error incrementing alerts sent for %s: %w", senderID, err)
	}
	return nil
}

func (c *RedisCounter) AlertsSent(ctx context.Context, senderID string) (int64, error) {
	n, err := c.client.Get(ctx, keyPrefix+senderID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error reading alerts sent for %s: %w", senderID, err)
	}
	return n, nil
}

func (c *RedisCounter) Close() error {
	return c.client.Close()
}
