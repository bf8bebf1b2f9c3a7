package promptpipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// cacheShards stripes the (text, config) completion cache across a fixed
// number of sync.Map buckets so concurrent moderate/route/lyrics calls
// for different prompts don't contend on one map.
const cacheShards = 16

type stripedCache struct {
	shards [cacheShards]sync.Map
}

func newStripedCache() *stripedCache {
	return &stripedCache{}
}

func cacheKey(text, configTag string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:]) + ":" + configTag
}

func (c *stripedCache) shard(key string) *sync.Map {
	var h uint32
	for i := 0; i < len(key); i++ {
		h = h*31 + uint32(key[i])
	}
	return &c.shards[h%cacheShards]
}

func (c *stripedCache) get(text, configTag string) (string, bool) {
	key := cacheKey(text, configTag)
	v, ok := c.shard(key).Load(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *stripedCache) put(text, configTag, value string) {
	key := cacheKey(text, configTag)
	c.shard(key).Store(key, value)
}
