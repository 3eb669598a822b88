package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis. Values are JSON encoded under prefix+key.
// Expiry is delegated to Redis (PEXPIREAT at expiresAt+grace), so no sweep is needed.
type RedisStore[V any] struct {
	client redis.UniversalClient
	prefix string
	grace  time.Duration
}

// NewRedisStore returns a Redis-backed store. prefix namespaces the table (e.g. "otpauth:otp:").
func NewRedisStore[V any](client redis.UniversalClient, prefix string, grace time.Duration) *RedisStore[V] {
	if grace < 0 {
		grace = 0
	}
	return &RedisStore[V]{client: client, prefix: prefix, grace: grace}
}

func (r *RedisStore[V]) key(k string) string {
	return r.prefix + k
}

// ttl returns the Redis expiration for expiresAt. Zero means no expiration.
// A record already past expiresAt+grace gets a 1ms TTL so it is still written and then evicted.
func (r *RedisStore[V]) ttl(expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() {
		return 0
	}
	d := time.Until(expiresAt.Add(r.grace))
	if d <= 0 {
		return time.Millisecond
	}
	return d
}

// Get loads and decodes key. A missing key returns ok false.
func (r *RedisStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("kvstore: redis get: %w", err)
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("kvstore: failed to unmarshal: %w", err)
	}
	return v, true, nil
}

// Set encodes v and writes it with the expiry derived from expiresAt.
func (r *RedisStore[V]) Set(ctx context.Context, key string, v V, expiresAt time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kvstore: failed to marshal: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl(expiresAt)).Err(); err != nil {
		return fmt.Errorf("kvstore: redis set: %w", err)
	}
	return nil
}

// SetIfAbsent writes v with SET NX.
func (r *RedisStore[V]) SetIfAbsent(ctx context.Context, key string, v V, expiresAt time.Time) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("kvstore: failed to marshal: %w", err)
	}
	ok, err := r.client.SetNX(ctx, r.key(key), data, r.ttl(expiresAt)).Result()
	if err != nil {
		return false, fmt.Errorf("kvstore: redis setnx: %w", err)
	}
	return ok, nil
}

// Delete removes key.
func (r *RedisStore[V]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("kvstore: redis del: %w", err)
	}
	return nil
}

// maxTxRetries bounds optimistic-lock retries in DeleteIf.
const maxTxRetries = 10

// DeleteIf watches key, decodes it, and deletes it in a MULTI block when match accepts it.
// A concurrent write to key aborts the transaction and the check is retried.
func (r *RedisStore[V]) DeleteIf(ctx context.Context, key string, match func(V) bool) (bool, error) {
	k := r.key(key)
	var deleted bool
	txf := func(tx *redis.Tx) error {
		deleted = false
		raw, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("kvstore: failed to unmarshal: %w", err)
		}
		if !match(v) {
			return nil
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, k)
			return nil
		}); err != nil {
			return err
		}
		deleted = true
		return nil
	}
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("kvstore: redis conditional delete: %w", err)
		}
		return deleted, nil
	}
	return false, fmt.Errorf("kvstore: redis conditional delete: %w", redis.TxFailedErr)
}

// Ping checks the Redis connection. Used by readiness checks.
func (r *RedisStore[V]) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
