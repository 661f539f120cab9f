package lock

import (
	"context"
	"hash/fnv"
	"sync"
)

// defaultShards trades memory for contention; two fingerprints only ever
// contend when their hashes collide modulo the shard count.
const defaultShards = 256

// Keyed is an in-process FingerprintLocker sharded by fingerprint hash.
// It is the right choice for single-instance deployments; multi-instance
// deployments should use RedisLocker instead.
type Keyed struct {
	shards []sync.Mutex
}

// NewKeyed creates a Keyed locker with the given shard count.
// A non-positive count uses the default.
func NewKeyed(shards int) *Keyed {
	if shards <= 0 {
		shards = defaultShards
	}
	return &Keyed{shards: make([]sync.Mutex, shards)}
}

// Lock implements FingerprintLocker.
func (k *Keyed) Lock(ctx context.Context, fingerprint string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu := &k.shards[k.shard(fingerprint)]
	mu.Lock()
	return mu.Unlock, nil
}

func (k *Keyed) shard(fingerprint string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fingerprint))
	return h.Sum32() % uint32(len(k.shards))
}

// Ensure Keyed implements FingerprintLocker
var _ FingerprintLocker = (*Keyed)(nil)
