//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func testClient(t *testing.T) *Client {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

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
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewClient(fmt.Sprintf("redis://%s:%d/0", host, port.Int()), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientStore(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	client.Set(ctx, "dashboard:1:metrics", []byte(`{"totalValue":"0"}`), time.Minute)
	client.Set(ctx, "dashboard:1:top-performers", []byte(`[]`), time.Minute)
	client.Set(ctx, "dashboard:2:metrics", []byte(`{}`), time.Minute)

	got, ok := client.Get(ctx, "dashboard:1:metrics")
	require.True(t, ok)
	assert.JSONEq(t, `{"totalValue":"0"}`, string(got))

	client.Invalidate(ctx, "dashboard:1:")
	_, ok = client.Get(ctx, "dashboard:1:metrics")
	assert.False(t, ok)
	_, ok = client.Get(ctx, "dashboard:1:top-performers")
	assert.False(t, ok)
	_, ok = client.Get(ctx, "dashboard:2:metrics")
	assert.True(t, ok)

	client.Delete(ctx, "dashboard:2:metrics")
	_, ok = client.Get(ctx, "dashboard:2:metrics")
	assert.False(t, ok)
}

func TestClientExpiry(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	client.Set(ctx, "short", []byte("x"), 50*time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := client.Get(ctx, "short")
		return !ok
	}, 2*time.Second, 25*time.Millisecond)
}
