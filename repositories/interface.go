package repositories

import (
	"context"
	"time"
)

// KeyValueRepository is the persistent store behind the mailbox. Values are
// opaque JSON documents. A ttl of zero means the key never expires.
type KeyValueRepository interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Take returns the value and removes the key in one step.
	Take(ctx context.Context, key string) ([]byte, bool, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
	Name() string
}
