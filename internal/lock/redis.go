package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when this holder still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker is a Redis-backed FingerprintLocker for deployments running
// several ingest instances against the same database. Acquisition uses
// SET NX with expiry; the TTL bounds the damage of a crashed holder.
type RedisLocker struct {
	client     *redis.Client
	keyPrefix  string
	ttl        time.Duration
	retryDelay time.Duration
}

// NewRedisLocker creates a RedisLocker. Keys are namespaced under prefix;
// ttl is the automatic expiry of a held lock.
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:     client,
		keyPrefix:  prefix,
		ttl:        ttl,
		retryDelay: 10 * time.Millisecond,
	}
}

// Lock implements FingerprintLocker. It polls SET NX until acquisition or
// ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, fingerprint string) (func(), error) {
	key := l.keyPrefix + fingerprint
	holder := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, key, holder, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire fingerprint lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}

	release := func() {
		// Release must not inherit a cancelled ingest context; the TTL is
		// the backstop if Redis is unreachable here.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(ctx, l.client, []string{key}, holder).Int64()
	}
	return release, nil
}

// Ensure RedisLocker implements FingerprintLocker
var _ FingerprintLocker = (*RedisLocker)(nil)
