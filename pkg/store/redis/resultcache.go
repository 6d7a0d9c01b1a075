package redis

import (
	"context"
	"errors"
	"time"

	"github.com/nimburion/docquery/pkg/observability/tracing"
	"github.com/nimburion/docquery/pkg/resilience"
)

// byteStore is the part of RedisAdapter the result cache needs.
type byteStore interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ResultCache stores encoded engine results in Redis. It satisfies
// query.ResultCache.
type ResultCache struct {
	store   byteStore
	breaker *resilience.CircuitBreaker
}

// ResultCacheOption configures a ResultCache.
type ResultCacheOption func(*ResultCache)

// WithCircuitBreaker skips Redis while cb is open: reads miss and writes are
// dropped without error.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) ResultCacheOption {
	return func(c *ResultCache) { c.breaker = cb }
}

// NewResultCache creates a ResultCache on top of adapter.
func NewResultCache(adapter *RedisAdapter, opts ...ResultCacheOption) *ResultCache {
	return newResultCache(adapter, opts...)
}

func newResultCache(store byteStore, opts ...ResultCacheOption) *ResultCache {
	c := &ResultCache{store: store}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get looks key up. A miss returns found=false and no error.
func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := tracing.StartCacheSpan(ctx, tracing.SpanOperationCacheGet,
		tracing.WithCacheSystem("redis"),
		tracing.WithCacheKey(key),
	)
	defer span.End()

	var value []byte
	var found bool
	err := c.guard(func() error {
		var err error
		value, found, err = c.store.GetBytes(ctx, key)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitBreakerOpen) {
		tracing.MarkCacheSkipped(span)
		return nil, false, nil
	}
	if err != nil {
		tracing.RecordError(span, err)
		return nil, false, err
	}
	tracing.MarkCacheHit(span, found)
	tracing.RecordSuccess(span)
	return value, found, nil
}

// Set stores value under key for ttl.
func (c *ResultCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := tracing.StartCacheSpan(ctx, tracing.SpanOperationCacheSet,
		tracing.WithCacheSystem("redis"),
		tracing.WithCacheKey(key),
	)
	defer span.End()

	err := c.guard(func() error { return c.store.SetWithTTL(ctx, key, value, ttl) })
	if errors.Is(err, resilience.ErrCircuitBreakerOpen) {
		tracing.MarkCacheSkipped(span)
		return nil
	}
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	tracing.RecordSuccess(span)
	return nil
}

func (c *ResultCache) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}
