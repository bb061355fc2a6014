package flow

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/flowkit/flowkit/log"
)

// remoteCacheKeyPrefix namespaces flowkit's keys in a Redis instance that
// may be shared with other applications.
const remoteCacheKeyPrefix = "flowkit:cache:"

// remoteCache is the Redis-backed cache tier a Session consults after its
// in-memory map misses, letting a node's "share=true" result be visible to
// sibling processes (separate Flow values, separate OS processes) instead
// of only to goroutines inside one process. Grounded on the
// graph/checkpoint/redis package's "JSON-encode a value, SET/GET under a
// composite key" shape.
type remoteCache struct {
	client *redis.Client
}

func newRemoteCache(addr string) *remoteCache {
	return &remoteCache{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *remoteCache) get(slug string) (any, bool) {
	if r == nil {
		return nil, false
	}
	raw, err := r.client.Get(context.Background(), remoteCacheKeyPrefix+slug).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Default.Warnf("remote cache: get %s: %v", slug, err)
		}
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Default.Warnf("remote cache: decode %s: %v", slug, err)
		return nil, false
	}
	return v, true
}

func (r *remoteCache) set(slug string, v any) {
	if r == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		log.Default.Warnf("remote cache: encode %s: %v", slug, err)
		return
	}
	if err := r.client.Set(context.Background(), remoteCacheKeyPrefix+slug, raw, 0).Err(); err != nil {
		log.Default.Warnf("remote cache: set %s: %v", slug, err)
	}
}

func (r *remoteCache) delete(slug string) {
	if r == nil {
		return
	}
	if err := r.client.Del(context.Background(), remoteCacheKeyPrefix+slug).Err(); err != nil {
		log.Default.Warnf("remote cache: delete %s: %v", slug, err)
	}
}

func (r *remoteCache) Close() error {
	if r == nil {
		return nil
	}
	return r.client.Close()
}
