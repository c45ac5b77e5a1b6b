package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ReadThrough serves catalog reads from a TagCache and fills misses from the backend.
type ReadThrough struct {
	cache  TagCache
	logger *slog.Logger
	sfg    singleflight.Group // Prevents cache stampede

	// mu orders stores against invalidations; epochs counts invalidations per tag.
	mu     sync.RWMutex
	epochs map[string]uint64
}

func NewReadThrough(cache TagCache, logger *slog.Logger) *ReadThrough {
	return &ReadThrough{
		cache:  cache,
		logger: logger,
		epochs: make(map[string]uint64),
	}
}

// Read returns the cached value for key or runs fetch and stores its result under tags.
// Fetch errors are returned as is and nothing is stored.
func (r *ReadThrough) Read(ctx context.Context, key string, tags []string, ttl time.Duration, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	v, err, _ := r.sfg.Do(key, func() (interface{}, error) {
		data, err := r.cache.Get(ctx, key)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			r.logger.WarnContext(ctx, "cache get error", slog.String("key", key), slog.Any("error", err))
		}

		seen := r.snapshotEpochs(tags)
		data, err = fetch(ctx)
		if err != nil {
			return nil, err
		}
		r.store(ctx, key, data, tags, ttl, seen)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (r *ReadThrough) snapshotEpochs(tags []string) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uint64, len(tags))
	for i, tag := range tags {
		out[i] = r.epochs[tag]
	}
	return out
}

func (r *ReadThrough) store(ctx context.Context, key string, data []byte, tags []string, ttl time.Duration, seen []uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i, tag := range tags {
		if r.epochs[tag] != seen[i] {
			r.logger.DebugContext(ctx, "skipping cache store after invalidation", slog.String("key", key), slog.String("tag", tag))
			return
		}
	}
	if err := r.cache.Set(ctx, key, data, tags, ttl); err != nil {
		r.logger.WarnContext(ctx, "cache set error", slog.String("key", key), slog.Any("error", err))
	}
}

// Invalidate evicts every entry carrying tag.
func (r *ReadThrough) Invalidate(ctx context.Context, tag string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.epochs[tag]++
	n, err := r.cache.InvalidateTag(ctx, tag)
	if err != nil {
		return 0, fmt.Errorf("invalidate tag %q: %w", tag, err)
	}
	r.logger.InfoContext(ctx, "cache tag invalidated", slog.String("tag", tag), slog.Int("entries", n))
	return n, nil
}

// Fetch is Read for JSON-encoded values of type T.
func Fetch[T any](ctx context.Context, r *ReadThrough, key string, tags []string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	data, err := r.Read(ctx, key, tags, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", key, err)
		}
		return b, nil
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return out, nil
}
