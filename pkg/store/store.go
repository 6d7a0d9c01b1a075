// Package store groups the backing-service adapters.
package store

import (
	"context"

	"github.com/nimburion/docquery/pkg/store/mongodb"
	"github.com/nimburion/docquery/pkg/store/redis"
)

// Adapter is the lifecycle and health contract shared by adapters.
type Adapter interface {
	HealthCheck(ctx context.Context) error
	Close() error
}

var (
	_ Adapter = (*mongodb.Adapter)(nil)
	_ Adapter = (*redis.RedisAdapter)(nil)
)

// CloseAll closes adapters in reverse order and returns the first error.
func CloseAll(adapters ...Adapter) error {
	var first error
	for i := len(adapters) - 1; i >= 0; i-- {
		if adapters[i] == nil {
			continue
		}
		if err := adapters[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
