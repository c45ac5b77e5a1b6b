package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCache struct {
	mu      sync.Mutex
	evicted []string
	err     error
	// failures is the number of calls that fail before the cache recovers.
	failures int
}

func (r *recordingCache) Invalidate(_ context.Context, tag string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	if r.failures > 0 {
		r.failures--
		return 0, errors.New("redis down")
	}
	r.evicted = append(r.evicted, tag)
	return 1, nil
}

func (r *recordingCache) tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.evicted...)
}

func TestHandle_RejectsBadSecret(t *testing.T) {
	rc := &recordingCache{}
	inv := NewInvalidator("s3cret", rc, logger.Discard())

	for _, secret := range []string{"", "wrong", "s3cret "} {
		res, err := inv.Handle(context.Background(), Notification{Secret: secret, Topic: "products/update"})
		assert.ErrorIs(t, err, ErrUnauthorized, "secret %q", secret)
		assert.Equal(t, StateReceived, res.State)
		assert.False(t, res.Revalidated)
	}
	assert.Empty(t, rc.tags())
}

func TestHandle_EmptyConfiguredSecretRejectsEverything(t *testing.T) {
	rc := &recordingCache{}
	inv := NewInvalidator("", rc, logger.Discard())

	_, err := inv.Handle(context.Background(), Notification{Secret: "", Topic: "products/update"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, rc.tags())
}

func TestHandle_MapsTopicsToTags(t *testing.T) {
	cases := map[string]string{
		"collections/create": "collections",
		"collections/update": "collections",
		"collections/delete": "collections",
		"products/create":    "products",
		"products/update":    "products",
		"products/delete":    "products",
	}
	for topic, tag := range cases {
		t.Run(topic, func(t *testing.T) {
			rc := &recordingCache{}
			inv := NewInvalidator("s3cret", rc, logger.Discard())
			fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
			inv.now = func() time.Time { return fixed }

			res, err := inv.Handle(context.Background(), Notification{Secret: "s3cret", Topic: topic})
			require.NoError(t, err)
			assert.Equal(t, StateDispatched, res.State)
			assert.True(t, res.Revalidated)
			assert.Equal(t, 1, res.Evicted)
			assert.Equal(t, fixed, res.Now)
			assert.Equal(t, []string{tag}, rc.tags())
		})
	}
}

func TestHandle_UnmappedTopicIsAcknowledged(t *testing.T) {
	rc := &recordingCache{}
	inv := NewInvalidator("s3cret", rc, logger.Discard())

	for _, topic := range []string{"orders/create", "", "blogs/update"} {
		res, err := inv.Handle(context.Background(), Notification{Secret: "s3cret", Topic: topic})
		require.NoError(t, err)
		assert.Equal(t, StateValidated, res.State)
		assert.False(t, res.Revalidated)
	}
	assert.Empty(t, rc.tags())
}

func TestHandle_CacheFailure(t *testing.T) {
	rc := &recordingCache{err: errors.New("redis down")}
	inv := NewInvalidator("s3cret", rc, logger.Discard())

	res, err := inv.Handle(context.Background(), Notification{Secret: "s3cret", Topic: "products/update"})
	assert.ErrorIs(t, err, ErrInvalidationFailed)
	assert.False(t, res.Revalidated)
}

func TestHandle_EvictsOnlyMappedTag(t *testing.T) {
	mem := cache.NewMemoryTagCache()
	t.Cleanup(func() { mem.Close() })
	reads := cache.NewReadThrough(mem, logger.Discard())
	ctx := context.Background()

	fill := func(key string, tags ...string) {
		_, err := reads.Read(ctx, key, tags, time.Hour, func(context.Context) ([]byte, error) {
			return []byte(key), nil
		})
		require.NoError(t, err)
	}
	fill("product:tee", "products")
	fill("collections", "collections")
	fill("collection-products:shoes", "collections", "products")

	inv := NewInvalidator("s3cret", reads, logger.Discard())
	res, err := inv.Handle(ctx, Notification{Secret: "s3cret", Topic: "collections/update"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Evicted)

	_, err = mem.Get(ctx, "product:tee")
	assert.NoError(t, err)
	_, err = mem.Get(ctx, "collections")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	_, err = mem.Get(ctx, "collection-products:shoes")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "RECEIVED", StateReceived.String())
	assert.Equal(t, "VALIDATED", StateValidated.String())
	assert.Equal(t, "DISPATCHED", StateDispatched.String())
	assert.Equal(t, "State(9)", State(9).String())
}
