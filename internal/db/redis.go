package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to Redis and pings it. Caller must call Close when done.
func OpenRedis(addr, password string, database int) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("db: REDIS_ADDR is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("db: ping redis: %w", err)
	}
	return client, nil
}
