package scrape

import (
	"time"

	"github.com/maypok86/otter"

	"github.com/hoofs-app/hoofs/internal/model"
)

// fingerprint ties one extraction result to the body hash that produced it.
type fingerprint struct {
	hash uint64
	snap model.Snapshot
}

// pageCache remembers the last extraction per numero so a refetch returning
// an unchanged body skips re-running the pattern set. Entries expire after
// ttl so a stale parse cannot outlive markup drift indefinitely.
type pageCache struct {
	cache otter.Cache[int64, fingerprint]
}

func newPageCache(capacity int, ttl time.Duration) *pageCache {
	cache, err := otter.MustBuilder[int64, fingerprint](capacity).
		Cost(func(_ int64, _ fingerprint) uint32 { return 1 }).
		WithTTL(ttl).
		Build()
	if err != nil {
		panic("scrape: failed to create page cache: " + err.Error())
	}
	return &pageCache{cache: cache}
}

func (c *pageCache) lookup(numero int64, hash uint64) (model.Snapshot, bool) {
	fp, ok := c.cache.Get(numero)
	if !ok || fp.hash != hash {
		return model.Snapshot{}, false
	}
	return fp.snap, true
}

func (c *pageCache) store(numero int64, hash uint64, snap model.Snapshot) {
	c.cache.Set(numero, fingerprint{hash: hash, snap: snap})
}

func (c *pageCache) close() {
	c.cache.Close()
}
