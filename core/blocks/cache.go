package blocks

import (
	"time"

	"github.com/bnb-chain/stackcfg/cachemetrics"
	"github.com/bnb-chain/stackcfg/core/opcodes"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"golang.org/x/sync/singleflight"
)

// DefaultLayoutCacheSize is the number of layouts kept by NewLayoutCache
// when given a non-positive size.
const DefaultLayoutCacheSize = 4096

// LayoutCache keeps layouts by unit fingerprint. Concurrent requests for
// the same fingerprint are built once. Failed builds are not cached.
type LayoutCache struct {
	cache *lru.Cache[common.Hash, *Layout]
	group singleflight.Group
}

// NewLayoutCache creates a cache holding up to size layouts.
func NewLayoutCache(size int) *LayoutCache {
	if size <= 0 {
		size = DefaultLayoutCacheSize
	}
	return &LayoutCache{cache: lru.NewCache[common.Hash, *Layout](size)}
}

// Layout returns the layout of code, building and storing it on a miss.
// Code is validated before lookup, so a broken unit never picks up the
// layout of a well-formed twin.
func (c *LayoutCache) Layout(code *opcodes.Code) (*Layout, error) {
	if err := code.Validate(); err != nil {
		return nil, malformed("%v", err)
	}
	start := time.Now()
	key := code.Fingerprint()
	if l, ok := c.cache.Get(key); ok {
		cachemetrics.RecordCacheDepth(cachemetrics.LayoutCacheHit)
		cachemetrics.RecordCacheMetrics(cachemetrics.LayoutCacheHit, start)
		cachemetrics.RecordTotalCosts(cachemetrics.LayoutCacheHit, start)
		return l, nil
	}
	cachemetrics.RecordCacheDepth(cachemetrics.LayoutCacheMiss)
	v, err, _ := c.group.Do(key.Hex(), func() (interface{}, error) {
		if l, ok := c.cache.Get(key); ok {
			return l, nil
		}
		l, err := BuildLayout(code)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, l)
		return l, nil
	})
	cachemetrics.RecordCacheMetrics(cachemetrics.LayoutCacheMiss, start)
	cachemetrics.RecordTotalCosts(cachemetrics.LayoutCacheMiss, start)
	if err != nil {
		return nil, err
	}
	return v.(*Layout), nil
}

// Contains reports whether a layout for code is cached. Invalid code is
// never cached.
func (c *LayoutCache) Contains(code *opcodes.Code) bool {
	if code.Validate() != nil {
		return false
	}
	return c.cache.Contains(code.Fingerprint())
}

func (c *LayoutCache) Len() int {
	return c.cache.Len()
}

// Purge drops every cached layout.
func (c *LayoutCache) Purge() {
	c.cache.Purge()
}
