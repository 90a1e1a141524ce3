package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Storage is a durable key-value slot service with a lifetime.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// IsRedisURL reports whether dsn points at a Redis server.
func IsRedisURL(dsn string) bool {
	return strings.HasPrefix(dsn, "redis://") || strings.HasPrefix(dsn, "rediss://")
}

// Open connects to Redis for redis:// and rediss:// URLs and to SQLite otherwise.
func Open(ctx context.Context, dsn string) (Storage, error) {
	if IsRedisURL(dsn) {
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisStorage(client), nil
	}

	db, err := NewDB(dsn)
	if err != nil {
		return nil, err
	}
	return NewSQLStorage(db), nil
}
