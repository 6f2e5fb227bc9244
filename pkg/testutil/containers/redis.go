//go:build integration

// Package containers starts throwaway infrastructure for integration tests.
// Each helper registers t.Cleanup so the container is terminated with the test.
package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// Redis wraps a running Redis container and a connected client.
type Redis struct {
	URL    string
	Client *redis.Client
}

// StartRedis runs redis:7-alpine and returns a pinged client.
func StartRedis(t *testing.T) *Redis {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	terminateOnCleanup(t, container)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis connection string: %v", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("failed to parse redis URL: %v", err)
	}

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}
	return &Redis{URL: url, Client: client}
}

// FlushAll removes all keys so tests sharing a container stay isolated.
func (r *Redis) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}

func terminateOnCleanup(t *testing.T, c testcontainers.Container) {
	t.Helper()
	testcontainers.CleanupContainer(t, c)
}
