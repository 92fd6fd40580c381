// Package redisstore is the default store.Client backend, built on pooled
// Redis connections. It is grounded in the same connect-then-ping validation
// pattern used for every Redis client in the ambient stack.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andrewkchan/podcrawl/internal/store"
)

// ErrEmptyAddress is returned when a Config has no Addr.
var ErrEmptyAddress = errors.New("redisstore: address is required")

const defaultConnectionTimeout = 5 * time.Second

// Config configures one pod's Redis-backed store client.
type Config struct {
	// Addr is the opaque store_url from the pod list, e.g. "localhost:6379".
	Addr     string
	Password string
	DB       int
	// PoolSize is the bounded connection pool size. The spec requires a
	// default of at least 100 pooled connections per pod client.
	PoolSize int
}

const defaultPoolSize = 100

// Client is a store.Client backed by a pooled *redis.Client.
type Client struct {
	rdb *redis.Client
}

var _ store.Client = (*Client)(nil)

// New creates a pooled Redis client for one pod and validates connectivity
// with a bounded-timeout ping before returning.
func New(cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, ErrEmptyAddress
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectionTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisstore: connect to %s: %w", cfg.Addr, err)
	}

	return &Client{rdb: rdb}, nil
}

// Raw returns the underlying *redis.Client for operations this interface
// doesn't expose. The bloom filter's load/save goes through Get/Set instead.
func (c *Client) Raw() *redis.Client { return c.rdb }

func (c *Client) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *Client) Close() error { return c.rdb.Close() }

func (c *Client) ListPrepend(ctx context.Context, key string, values ...string) error {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return c.rdb.LPush(ctx, key, args...).Err()
}

func (c *Client) ListAppend(ctx context.Context, key string, values ...string) error {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return c.rdb.RPush(ctx, key, args...).Err()
}

func (c *Client) ListPopHead(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.LPop(ctx, key).Result()
	return popResult(val, err)
}

func (c *Client) ListPopTail(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.RPop(ctx, key).Result()
	return popResult(val, err)
}

func (c *Client) BlockingPopTail(ctx context.Context, key string, timeout time.Duration) (string, bool, error) {
	result, err := c.rdb.BRPop(ctx, timeout, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// BRPop returns [key, value].
	if len(result) < 2 {
		return "", false, nil
	}
	return result[1], true, nil
}

func (c *Client) ListLen(ctx context.Context, key string) (int64, error) {
	return c.rdb.LLen(ctx, key).Result()
}

func (c *Client) HashSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return c.rdb.HSet(ctx, key, values).Err()
}

func (c *Client) HashSetNX(ctx context.Context, key, field, value string) error {
	return c.rdb.HSetNX(ctx, key, field, value).Err()
}

func (c *Client) HashGet(ctx context.Context, key, field string) (string, bool, error) {
	val, err := c.rdb.HGet(ctx, key, field).Result()
	return popResult(val, err)
}

func (c *Client) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, key).Result()
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	return c.rdb.Set(ctx, key, value, 0).Err()
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

func (c *Client) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return c.rdb.IncrBy(ctx, key, n).Result()
}

func popResult(val string, err error) (string, bool, error) {
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
