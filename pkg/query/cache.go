package query

import (
	"context"
	"encoding/json"
	"time"
)

// ResultCache stores encoded results between requests.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const cacheKeyPrefix = "docquery:"

func cacheKey(op, encoded string) string {
	return cacheKeyPrefix + op + ":" + encoded
}

// cached serves key from the engine's cache, falling back to load. Cache
// failures are logged and never fail the operation.
func cached[T any](ctx context.Context, e *Engine, op, key string, load func() (T, error)) (T, error) {
	if e.cache == nil {
		return load()
	}
	if raw, ok, err := e.cache.Get(ctx, key); err != nil {
		e.logger.Warn("result cache read failed", "operation", op, "key", key, "error", err)
	} else if ok {
		var out T
		if err := json.Unmarshal(raw, &out); err == nil {
			return out, nil
		}
		e.logger.Warn("discarding undecodable cached result", "operation", op, "key", key)
	}

	out, err := load()
	if err != nil {
		return out, err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		e.logger.Warn("result cache encode failed", "operation", op, "error", err)
		return out, nil
	}
	if err := e.cache.Set(ctx, key, raw, e.cacheTTL); err != nil {
		e.logger.Warn("result cache write failed", "operation", op, "key", key, "error", err)
	}
	return out, nil
}
