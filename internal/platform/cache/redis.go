package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientName identifies AgriStock connections in CLIENT LIST.
const ClientName = "agristock"

const pingTimeout = 5 * time.Second

// Options returns the client settings used for sessions, reset tokens and asynq.
func Options(addr string) *redis.Options {
	return &redis.Options{
		Addr:         addr,
		ClientName:   ClientName,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
}

// New creates a Redis client and fails unless it answers PING.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(Options(addr))

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("agristock/cache: ping %s: %w", addr, err)
	}
	return client, nil
}
