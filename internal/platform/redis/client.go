// Package redis dials the shared redis instance used for identity caching and
// login lockout counters.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"cinelog/internal/platform/config"
)

const clientName = "cinelog"

// Client is a connected go-redis client.
type Client struct {
	*goredis.Client
}

// New returns nil, nil when no URL is configured. Otherwise it dials and
// pings so a misconfigured cache fails startup rather than the first login.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return &Client{Client: rdb}, nil
}

// options layers pool and timeout settings over what the URL specifies.
// Zero values keep go-redis defaults.
func options(cfg config.RedisConfig) (*goredis.Options, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.ClientName = clientName
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Health pings the server; used by /health.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
