package cache

import (
	"context"
	"fmt"

	"github.com/erp/printdispatch/internal/domain/shared"
)

// NewIdempotencyStore builds the store named by backend ("memory" or "redis")
func NewIdempotencyStore(ctx context.Context, backend string, redisCfg RedisConfig) (shared.IdempotencyStore, error) {
	switch backend {
	case "", "memory":
		return NewInMemoryIdempotencyStore(0), nil
	case "redis":
		return NewRedisIdempotencyStore(ctx, redisCfg)
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", backend)
	}
}
