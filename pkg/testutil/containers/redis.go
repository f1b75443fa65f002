//go:build integration

// Package containers starts throwaway backends for integration tests. Every
// container is terminated through t.Cleanup.
package containers

import (
	"context"
	"testing"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"leadcapture/internal/platform/config"
	"leadcapture/internal/platform/redis"
)

// Redis is a running Redis container and a client dialled the way the
// service dials it.
type Redis struct {
	URL    string
	Client *redis.Client
}

// StartRedis fails the test when the container cannot start.
func StartRedis(t *testing.T) *Redis {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis connection string: %v", err)
	}
	client, err := redis.Dial(ctx, config.RedisConfig{URL: url})
	if err != nil {
		t.Fatalf("dial redis container: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &Redis{URL: url, Client: client}
}

// Flush empties the database between tests.
func (r *Redis) Flush(t *testing.T) {
	t.Helper()
	if err := r.Client.FlushAll(context.Background()).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
}
