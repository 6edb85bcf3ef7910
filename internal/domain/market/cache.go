package market

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/telemetry"
)

const cacheName = "area"

// Cache holds resolved county sets by area key with LRU + TTL eviction.
type Cache struct {
	lru *expirable.LRU[string, CountySet]
}

// NewCache creates a cache holding up to size entries for ttl each. A
// zero ttl keeps entries until they are evicted by size.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 1024
	}
	return &Cache{lru: expirable.NewLRU[string, CountySet](size, nil, ttl)}
}

func (c *Cache) Get(key string) (CountySet, bool) {
	set, ok := c.lru.Get(key)
	if ok {
		telemetry.CacheHit(cacheName)
	} else {
		telemetry.CacheMiss(cacheName)
	}
	return set, ok
}

func (c *Cache) Add(key string, set CountySet) {
	c.lru.Add(key, set)
}

func (c *Cache) Len() int { return c.lru.Len() }

func (c *Cache) Purge() { c.lru.Purge() }
