package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores the value as a JSON string under prefix+key.
type Redis[T any] struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

var _ Storage[string] = (*Redis[string])(nil)

// RedisOption configures a Redis store
type RedisOption func(*redisConfig)

type redisConfig struct {
	prefix string
	ttl    time.Duration
}

// WithPrefix sets the key prefix. Defaults to "ping:".
func WithPrefix(prefix string) RedisOption {
	return func(cfg *redisConfig) {
		cfg.prefix = prefix
	}
}

// WithTTL expires the stored value after ttl. Zero keeps it forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(cfg *redisConfig) {
		cfg.ttl = ttl
	}
}

// NewRedis returns a store for key
func NewRedis[T any](client redis.UniversalClient, key string, opts ...RedisOption) (*Redis[T], error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	cfg := &redisConfig{prefix: "ping:"}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Redis[T]{client: client, key: cfg.prefix + key, ttl: cfg.ttl}, nil
}

func (r *Redis[T]) Get(ctx context.Context) (T, bool, error) {
	var zero T

	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, &Error{Op: "get", Backend: "redis", Key: r.key, Err: err}
	}

	value, err := decode[T](data)
	if err != nil {
		return zero, false, &Error{Op: "decode", Backend: "redis", Key: r.key, Err: err}
	}
	return value, true, nil
}

func (r *Redis[T]) Save(ctx context.Context, value T) error {
	data, err := encode(value)
	if err != nil {
		return &Error{Op: "encode", Backend: "redis", Key: r.key, Err: err}
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return &Error{Op: "save", Backend: "redis", Key: r.key, Err: err}
	}
	return nil
}

func (r *Redis[T]) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return &Error{Op: "delete", Backend: "redis", Key: r.key, Err: err}
	}
	return nil
}
