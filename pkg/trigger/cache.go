package trigger

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/geoqc/pkg/quality"
)

// DefaultCacheSize is used when NewReportCache is given a non-positive size
const DefaultCacheSize = 256

// CacheMetrics observes cache behaviour. *observability.Metrics implements it.
type CacheMetrics interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheEviction()
}

// ReportCache keeps the findings of datasets between repeated runs so that
// unchanged datasets are not evaluated again. It implements
// quality.FindingCache and is safe for concurrent use.
type ReportCache struct {
	cache   *lru.LRU[string, []quality.Finding]
	metrics CacheMetrics
}

// NewReportCache creates a cache holding up to size entries, each living for
// ttl. A zero ttl keeps entries until they are evicted by size.
func NewReportCache(size int, ttl time.Duration, metrics CacheMetrics) *ReportCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c := &ReportCache{metrics: metrics}

	var onEvict lru.EvictCallback[string, []quality.Finding]
	if metrics != nil {
		onEvict = func(string, []quality.Finding) { metrics.RecordCacheEviction() }
	}
	c.cache = lru.NewLRU[string, []quality.Finding](size, onEvict, ttl)
	return c
}

// Get returns the cached findings for key
func (c *ReportCache) Get(key string) ([]quality.Finding, bool) {
	findings, ok := c.cache.Get(key)
	if c.metrics != nil {
		if ok {
			c.metrics.RecordCacheHit()
		} else {
			c.metrics.RecordCacheMiss()
		}
	}
	return findings, ok
}

// Add stores findings under key
func (c *ReportCache) Add(key string, findings []quality.Finding) {
	c.cache.Add(key, append([]quality.Finding(nil), findings...))
}

// Len returns the number of live entries
func (c *ReportCache) Len() int {
	return c.cache.Len()
}

// Purge drops every entry
func (c *ReportCache) Purge() {
	c.cache.Purge()
}

var _ quality.FindingCache = (*ReportCache)(nil)
