//go:build integration

package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/ctgov-client/internal/testutil"
	"github.com/Sternrassler/ctgov-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func newRedisClient(t *testing.T, baseURL string, redisClient *redis.Client, backoff time.Duration) *Client {
	t.Helper()

	store, err := ratelimit.NewRedisStore(redisClient)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}

	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.BackoffBase = backoff
	cfg.Jitter = 0
	cfg.RateLimit = store
	logger := zerolog.Nop()
	cfg.Logger = &logger

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIntegration_SharedCooldown(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockRegistry()
	defer mock.Close()
	mock.SetSequence("/studies",
		testutil.NewRateLimitResponse(1),
		testutil.NewOKResponse(`{"studies": []}`),
	)
	mock.SetResponse("/version", testutil.NewOKResponse(`{"apiVersion": "2.0.3"}`))

	first := newRedisClient(t, mock.URL(), redisClient, 10*time.Millisecond)
	second := newRedisClient(t, mock.URL(), redisClient, 10*time.Millisecond)
	ctx := context.Background()

	// The 429 raises the wait to the one-second Retry-After.
	done := make(chan error, 1)
	go func() {
		_, err := first.Get(ctx, "/studies", nil)
		done <- err
	}()

	// Give the first client time to record the cooldown.
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	if _, err := second.Get(ctx, "/version", nil); err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if d := time.Since(start); d < 500*time.Millisecond {
		t.Errorf("second client waited %v, want it held by the shared cooldown", d)
	}

	if err := <-done; err != nil {
		t.Fatalf("first Get() error = %v", err)
	}

	state, err := second.RateLimitState(ctx)
	if err != nil {
		t.Fatalf("RateLimitState() error = %v", err)
	}
	if state.Hits != 0 {
		t.Errorf("Hits = %d, want 0 after recovery", state.Hits)
	}
}

func TestIntegration_RedisUnavailableFailsOpen(t *testing.T) {
	// Nothing listens on this port.
	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer redisClient.Close()

	mock := testutil.NewMockRegistry()
	defer mock.Close()
	mock.SetResponse("/version", testutil.NewOKResponse(`{}`))

	c := newRedisClient(t, mock.URL(), redisClient, time.Millisecond)
	if _, err := c.Get(context.Background(), "/version", nil); err != nil {
		t.Fatalf("Get() error = %v, want request to proceed without redis", err)
	}

	mock.SetResponse("/studies/NCT00000009", testutil.NewNotFoundResponse())
	if _, err := c.Get(context.Background(), "/studies/NCT00000009", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
