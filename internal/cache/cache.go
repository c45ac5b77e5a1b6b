package cache

import (
	"context"
	"errors"
	"time"
)

// TagCache stores opaque catalog responses and evicts them by tag.
type TagCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, tags []string, ttl time.Duration) error
	// InvalidateTag evicts every entry carrying tag and reports how many were removed.
	InvalidateTag(ctx context.Context, tag string) (int, error)
}

var ErrCacheMiss = errors.New("cache miss")

// Entry is one cached response.
type Entry struct {
	Key       string
	Value     []byte
	Tags      []string
	Expiry    time.Time
	LastWrite time.Time
}

func (e *Entry) IsExpired(now time.Time) bool {
	return !e.Expiry.IsZero() && !now.Before(e.Expiry)
}
