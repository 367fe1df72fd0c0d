//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mealwise/mealwise/internal/config"
)

func TestAccessor_RealRedis(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	a := NewAccessor(config.RedisConfig{
		Host:        host,
		Port:        port.Int(),
		DialTimeout: 2 * time.Second,
		RetryAfter:  time.Second,
	})
	t.Cleanup(func() { a.Close() })

	store := a.Handle(ctx)
	require.NotNil(t, store)

	for i := 1; i <= 3; i++ {
		n, err := store.IncrExpire(ctx, "it:rate", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	ttl, err := store.TTL(ctx, "it:rate")
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
	assert.NoError(t, a.Ping(ctx))
}
