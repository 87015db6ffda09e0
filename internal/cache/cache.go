package cache

import (
	"context"
	"time"
)

// BytesCache: общий кэш "ключ -> байты" (Redis в проде, фейк/мок в тестах).
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
