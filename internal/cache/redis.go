package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedisTagCache(client *redis.Client) *RedisTagCache {
	return &RedisTagCache{
		client:    client,
		maxJitter: 30 * time.Minute,
	}
}

// RedisTagCache shares catalog entries across storefront instances.
type RedisTagCache struct {
	client    *redis.Client
	maxJitter time.Duration
}

func (r *RedisTagCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// setScript stores KEYS[1] and adds it to every tag set in KEYS[2:]. A tag set
// lives at least as long as its longest-lived member.
var setScript = redis.NewScript(`
local ttl = tonumber(ARGV[2])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[1])
end
for i = 2, #KEYS do
	local existed = redis.call('EXISTS', KEYS[i])
	local current = redis.call('PTTL', KEYS[i])
	redis.call('SADD', KEYS[i], KEYS[1])
	if ttl <= 0 then
		redis.call('PERSIST', KEYS[i])
	elseif existed == 0 or (current >= 0 and current < ttl) then
		redis.call('PEXPIRE', KEYS[i], ttl)
	end
end
return 1
`)

// invalidateScript deletes every member of the tag set KEYS[1] and the set
// itself in one step, so no concurrent Set can slip between the read and the
// delete.
var invalidateScript = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
local removed = 0
for i = 1, #members, 1000 do
	removed = removed + redis.call('DEL', unpack(members, i, math.min(i + 999, #members)))
end
redis.call('DEL', KEYS[1])
return removed
`)

func (r *RedisTagCache) Set(ctx context.Context, key string, value []byte, tags []string, ttl time.Duration) error {
	if ttl > 0 && r.maxJitter > 0 {
		ttl += time.Duration(rand.Int63n(int64(r.maxJitter)))
	}
	ms := ttl.Milliseconds()
	if ttl > 0 && ms == 0 {
		ms = 1
	}

	keys := make([]string, 0, len(tags)+1)
	keys = append(keys, entryKey(key))
	for _, tag := range tags {
		keys = append(keys, tagKey(tag))
	}
	if err := setScript.Run(ctx, r.client, keys, value, ms).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisTagCache) InvalidateTag(ctx context.Context, tag string) (int, error) {
	removed, err := invalidateScript.Run(ctx, r.client, []string{tagKey(tag)}).Int()
	if err != nil {
		return 0, fmt.Errorf("redis invalidate failed: %w", err)
	}
	return removed, nil
}

func entryKey(key string) string {
	return fmt.Sprintf("catalog:entry:%s", key)
}

func tagKey(tag string) string {
	return fmt.Sprintf("catalog:tag:%s", tag)
}
