package redis

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/testutil"
)

func TestRedisAdapter_Integration(t *testing.T) {
	testutil.RequireIntegration(t)

	ctx := context.Background()
	redisContainer, err := tcredis.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	uri, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	adapter, err := NewRedisAdapter(Config{URL: uri, MaxConns: 5, OperationTimeout: time.Second}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewRedisAdapter() error = %v", err)
	}
	defer adapter.Close()

	t.Run("result cache round trip", func(t *testing.T) {
		cache := NewResultCache(adapter)
		if _, found, err := cache.Get(ctx, "docquery:groupbyset:q"); err != nil || found {
			t.Fatalf("Get() before Set = found %v, err %v", found, err)
		}
		if err := cache.Set(ctx, "docquery:groupbyset:q", []byte(`["a","b"]`), time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		value, found, err := cache.Get(ctx, "docquery:groupbyset:q")
		if err != nil || !found || string(value) != `["a","b"]` {
			t.Errorf("Get() = %q, %v, %v", value, found, err)
		}
	})

	t.Run("ttl expires", func(t *testing.T) {
		if err := adapter.SetWithTTL(ctx, "short", []byte("x"), 100*time.Millisecond); err != nil {
			t.Fatalf("SetWithTTL() error = %v", err)
		}
		time.Sleep(300 * time.Millisecond)
		if _, found, _ := adapter.GetBytes(ctx, "short"); found {
			t.Error("key should have expired")
		}
	})

	t.Run("health check", func(t *testing.T) {
		if err := adapter.HealthCheck(ctx); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})
}
