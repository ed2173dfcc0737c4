package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sync"
	"sync/atomic"
	"time"
)

// SelectionCache caches view selections to avoid re-running the selector on
// an unchanged workload
type SelectionCache struct {
	cache map[string]*cachedSelection
	mu    sync.RWMutex

	// Statistics
	hits   int64
	misses int64

	// Configuration
	maxSize int
	ttl     time.Duration
}

type cachedSelection struct {
	selection *Selection
	timestamp time.Time
}

// NewSelectionCache creates a new selection cache
func NewSelectionCache(maxSize int, ttl time.Duration) *SelectionCache {
	if maxSize <= 0 {
		maxSize = 1000 // Default to 1000 cached selections
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute // Default to 5 minute TTL
	}

	return &SelectionCache{
		cache:   make(map[string]*cachedSelection),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a cached selection if it exists and is not expired.
// The returned selection is shared and must not be modified.
func (c *SelectionCache) Get(d *AndOrDag, mode SelectionMode, budget uint64) (*Selection, bool) {
	if c == nil {
		return nil, false
	}

	key := c.computeKey(d, mode, budget)

	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.cache[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	// Check if expired
	if time.Since(cached.timestamp) > c.ttl {
		// Lazy deletion happens on Set
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&c.hits, 1)
	return cached.selection, true
}

// Set stores a selection in the cache
func (c *SelectionCache) Set(d *AndOrDag, mode SelectionMode, budget uint64, sel *Selection) {
	if c == nil || sel == nil {
		return
	}

	key := c.computeKey(d, mode, budget)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict expired entries if cache is full
	if len(c.cache) >= c.maxSize {
		c.evictExpired()

		// If still full, evict oldest
		if len(c.cache) >= c.maxSize {
			c.evictOldest()
		}
	}

	c.cache[key] = &cachedSelection{
		selection: sel,
		timestamp: time.Now(),
	}
}

// Clear removes all cached selections
func (c *SelectionCache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cachedSelection)
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Stats returns cache statistics
func (c *SelectionCache) Stats() (hits, misses int64, size int) {
	if c == nil {
		return 0, 0, 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses), len(c.cache)
}

// computeKey hashes everything a selection depends on: the node table, the
// planned estimates, the workload and the cost model
func (c *SelectionCache) computeKey(d *AndOrDag, mode SelectionMode, budget uint64) string {
	h := sha256.New()

	fmt.Fprintf(h, "MODE:%d;BUDGET:%d;", int(mode), budget)
	writeWorkloadFingerprint(h, d)

	return hex.EncodeToString(h.Sum(nil))
}

func writeWorkloadFingerprint(h hash.Hash, d *AndOrDag) {
	fmt.Fprintf(h, "NODES:%d;", len(d.nodes))
	for i, n := range d.nodes {
		fmt.Fprintf(h, "%d:%d:%v:%d:%v:%v;", i, n.Op, n.Children, n.TargetChild, n.StartLabels, n.EndLabels)
		fmt.Fprintf(h, "%x:%d:%d:%x:%d;",
			d.evalCost[i], d.srcCnt[i], d.dstCnt[i], d.pairProb[i], d.useCnt[i])
	}

	fmt.Fprintf(h, "WORKLOAD:")
	for _, e := range d.entries() {
		fmt.Fprintf(h, "%d:%d;", e, d.workloadFreq[e])
	}

	o := d.options
	fmt.Fprintf(h, "OPTIONS:%x:%x:%x:%d:%x;",
		o.LeafScanCost, o.ConcatFactor, o.MergeOverhead, o.KleeneMaxRounds, o.LookupCost)
}

// evictExpired removes expired entries from the cache
func (c *SelectionCache) evictExpired() {
	now := time.Now()
	for key, cached := range c.cache {
		if now.Sub(cached.timestamp) > c.ttl {
			delete(c.cache, key)
		}
	}
}

// evictOldest removes the oldest entry from the cache
func (c *SelectionCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, cached := range c.cache {
		if oldestKey == "" || cached.timestamp.Before(oldestTime) {
			oldestKey = key
			oldestTime = cached.timestamp
		}
	}

	if oldestKey != "" {
		delete(c.cache, oldestKey)
	}
}
