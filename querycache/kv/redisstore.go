package kv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore adapts github.com/redis/go-redis/v9 to the Substrate and
// OrderedSet contracts. It is grounded on pkg/cache (same client, same
// Get/Set/Del shape) but speaks the KV substrate's typed value model
// directly instead of JSON-blob caching.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration // 0 = no expiry; queries/entities are durable by default
}

// NewRedisStore wraps an existing *redis.Client. ttl, if non-zero, is
// applied to every write (useful for demo/ephemeral deployments); production
// use should pass 0 so cache entries live until explicitly evicted.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("kv: redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *RedisStore) GetString(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisStore) SetString(ctx context.Context, key string, value string) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("kv: redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) GetNumber(ctx context.Context, key string) (float64, bool, error) {
	v, ok, err := r.GetString(ctx, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("kv: redis number %s: %w", key, err)
	}
	return n, true, nil
}

func (r *RedisStore) SetNumber(ctx context.Context, key string, value float64) error {
	return r.SetString(ctx, key, strconv.FormatFloat(value, 'f', -1, 64))
}

// GetBuffer decodes a u32 buffer stored as comma-separated decimal text —
// readable in redis-cli, which matters for the operator-facing CLI demo.
func (r *RedisStore) GetBuffer(ctx context.Context, key string) ([]uint32, bool, error) {
	v, ok, err := r.GetString(ctx, key)
	if err != nil || !ok || v == "" {
		return nil, ok, err
	}
	parts := strings.Split(v, ",")
	out := make([]uint32, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, false, fmt.Errorf("kv: redis buffer %s: %w", key, err)
		}
		out = append(out, uint32(n))
	}
	return out, true, nil
}

func (r *RedisStore) SetBuffer(ctx context.Context, key string, value []uint32) error {
	parts := make([]string, len(value))
	for i, v := range value {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return r.SetString(ctx, key, strings.Join(parts, ","))
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kv: redis del %s: %w", key, err)
	}
	return nil
}

// ---- OrderedSet, backed by a Redis sorted set (score = last Touch time, Unix ns) ----

func (r *RedisStore) Touch(ctx context.Context, setKey, member string) error {
	score := float64(time.Now().UnixNano())
	if err := r.client.ZAdd(ctx, lruKey(setKey), redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("kv: redis zadd %s: %w", setKey, err)
	}
	return nil
}

func (r *RedisStore) Oldest(ctx context.Context, setKey string, excluding map[string]bool) (string, bool, error) {
	// Read the set oldest-first in batches of 32 and skip excluded members,
	// rather than loading the whole set at once, to keep this cheap under a
	// large LRU.
	const batch = 32
	for start := int64(0); ; start += batch {
		members, err := r.client.ZRangeWithScores(ctx, lruKey(setKey), start, start+batch-1).Result()
		if err != nil {
			return "", false, fmt.Errorf("kv: redis zrange %s: %w", setKey, err)
		}
		if len(members) == 0 {
			return "", false, nil
		}
		for _, m := range members {
			member, _ := m.Member.(string)
			if excluding != nil && excluding[member] {
				continue
			}
			return member, true, nil
		}
	}
}

func (r *RedisStore) Remove(ctx context.Context, setKey, member string) error {
	if err := r.client.ZRem(ctx, lruKey(setKey), member).Err(); err != nil {
		return fmt.Errorf("kv: redis zrem %s: %w", setKey, err)
	}
	return nil
}

func (r *RedisStore) Len(ctx context.Context, setKey string) (int, error) {
	n, err := r.client.ZCard(ctx, lruKey(setKey)).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: redis zcard %s: %w", setKey, err)
	}
	return int(n), nil
}

func lruKey(setKey string) string { return "lru:" + setKey }

// encodeBufferBinary is an alternative compact encoding available for
// callers that prefer a raw byte buffer over the human-readable CSV form
// GetBuffer/SetBuffer use above (e.g. bulk migration tooling).
func encodeBufferBinary(value []uint32) []byte {
	out := make([]byte, 4*len(value))
	for i, v := range value {
		binary.BigEndian.PutUint32(out[i*4:], v)
	}
	return out
}
