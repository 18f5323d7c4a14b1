package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type ClientOptions struct {
	Addr     string
	Username string
	Password string
	PoolSize int // default 10
}

// NewRedisClient connects and verifies the server answers within the
// lifetime of ctx.
func NewRedisClient(ctx context.Context, o ClientOptions) (*redis.Client, error) {
	if o.PoolSize <= 0 {
		o.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Username:     o.Username,
		Password:     o.Password,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     o.PoolSize,
		MinIdleConns: 1,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", o.Addr, err)
	}
	return rdb, nil
}

// Pinger adapts the client to a readiness check.
func Pinger(rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
