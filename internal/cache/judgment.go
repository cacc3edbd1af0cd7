// Package cache keeps judgment oracle replies in Redis so that a turn retried
// by the survey platform is judged the same way as the first attempt.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "vignette:judgment:"

type JudgmentCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to the Redis instance at url (redis://...) and pings it.
func New(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*JudgmentCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, ttl, logger), nil
}

func NewWithClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *JudgmentCache {
	return &JudgmentCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached reply for key. Redis errors count as a miss.
func (c *JudgmentCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("judgment cache get failed", "error", err)
		}
		return "", false
	}
	return v, true
}

// Set stores value for key. Failures are logged and otherwise ignored.
func (c *JudgmentCache) Set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, keyPrefix+key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("judgment cache set failed", "error", err)
	}
}

func (c *JudgmentCache) Close() error {
	return c.client.Close()
}
