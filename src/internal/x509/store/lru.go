// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package store

import (
	"context"
	"crypto/x509"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/metrics"
	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
)

// Defaults applied by [NewLRUCache].
const (
	DefaultMaxSize         = 100
	DefaultCleanupInterval = time.Hour
	// DefaultFreshFor bounds how long a fetched CRL is served even when its
	// nextUpdate lies further ahead.
	DefaultFreshFor = 24 * time.Hour
	// expiryGrace keeps a CRL around for a while after nextUpdate passed.
	expiryGrace = time.Hour
)

// crlEntry represents a cached CRL with metadata
type crlEntry struct {
	crl       *x509.RevocationList
	key       string
	fetchedAt time.Time
}

// isFresh checks if the cached CRL may still be served
func (e *crlEntry) isFresh(now time.Time, freshFor time.Duration) bool {
	if !e.crl.NextUpdate.IsZero() && !e.crl.NextUpdate.After(now) {
		return false
	}
	return e.fetchedAt.After(now.Add(-freshFor))
}

// isExpired checks if the CRL has expired and should be cleaned up
func (e *crlEntry) isExpired(now time.Time) bool {
	return !e.crl.NextUpdate.IsZero() && e.crl.NextUpdate.Before(now.Add(-expiryGrace))
}

// LRUConfig holds configuration for an [LRUCache].
type LRUConfig struct {
	MaxSize         int           // Maximum number of CRLs to cache (negative = unlimited)
	CleanupInterval time.Duration // How often [LRUCache.Run] drops expired CRLs
	FreshFor        time.Duration // How long after fetching a CRL is served
}

// CacheMetrics tracks cache performance and usage
type CacheMetrics struct {
	Size        int64 // Current number of cached CRLs
	Hits        int64 // Number of cache hits
	Misses      int64 // Number of cache misses
	Evictions   int64 // Number of LRU evictions
	Cleanups    int64 // Number of expired CRL cleanups
	TotalMemory int64 // Approximate memory usage in bytes
}

// LRUCache is a bounded in-memory [CRLCache]. Certificates added through the
// embedded pool are served as issuers; CRLs are evicted least recently used
// first once MaxSize is reached.
//
// Thread Safety: Safe for concurrent use.
type LRUCache struct {
	*x509chain.Pool

	mu      sync.Mutex
	config  LRUConfig
	entries map[string]*crlEntry
	order   []string // Access order, least recently used first
	stats   CacheMetrics
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewLRUCache returns an empty cache. Zero config fields take the package
// defaults; a negative MaxSize means unlimited. m may be nil.
func NewLRUCache(config LRUConfig, m *metrics.Metrics) *LRUCache {
	if config.MaxSize == 0 {
		config.MaxSize = DefaultMaxSize
	}
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}
	if config.FreshFor <= 0 {
		config.FreshFor = DefaultFreshFor
	}

	return &LRUCache{
		Pool:    x509chain.NewPool(),
		config:  config,
		entries: make(map[string]*crlEntry),
		metrics: m,
		now:     time.Now,
	}
}

// Config returns a copy of the cache configuration.
func (c *LRUCache) Config() LRUConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// AddCRL implements [CRLCache]. An older CRL never replaces a newer one for
// the same issuer key.
func (c *LRUCache) AddCRL(crl *x509.RevocationList) error {
	if crl == nil {
		return ErrNilCRL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := string(crlKey(crl.RawIssuer, crl.AuthorityKeyId))
	if old, ok := c.entries[key]; ok && crl.ThisUpdate.Before(old.crl.ThisUpdate) {
		return nil
	}

	evicted := 0
	if _, ok := c.entries[key]; !ok {
		// Evict least recently used entries if cache is full
		for c.config.MaxSize > 0 && len(c.entries) >= c.config.MaxSize && len(c.order) > 0 {
			c.remove(c.order[0])
			evicted++
		}
	}
	c.stats.Evictions += int64(evicted)
	c.metrics.RecordCache(metrics.CacheEviction, evicted)

	c.entries[key] = &crlEntry{crl: crl, key: key, fetchedAt: c.now()}
	c.touch(key)
	c.metrics.RecordCache(metrics.CacheStore, 1)
	return nil
}

// FindCRLFor implements [Store]. Only fresh entries are returned.
func (c *LRUCache) FindCRLFor(cert *x509chain.Certificate) *x509.RevocationList {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var hit *crlEntry
	if len(cert.AuthorityKeyId) > 0 {
		hit = c.entries[string(crlKey(cert.RawIssuer, cert.AuthorityKeyId))]
	}
	if hit == nil {
		prefix := issuerKey(cert.RawIssuer)
		for key, e := range c.entries {
			if strings.HasPrefix(key, prefix) && (hit == nil || e.crl.ThisUpdate.After(hit.crl.ThisUpdate)) {
				hit = e
			}
		}
	}

	if hit == nil || !hit.isFresh(now, c.config.FreshFor) {
		c.stats.Misses++
		c.metrics.RecordCache(metrics.CacheMiss, 1)
		return nil
	}

	c.stats.Hits++
	c.metrics.RecordCache(metrics.CacheHit, 1)
	c.touch(hit.key)
	return hit.crl
}

// Cleanup removes CRLs that expired beyond their nextUpdate grace period and
// returns how many were dropped.
func (c *LRUCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expired []string
	for key, e := range c.entries {
		if e.isExpired(now) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		c.remove(key)
	}

	c.stats.Cleanups += int64(len(expired))
	c.metrics.RecordCache(metrics.CacheCleanup, len(expired))
	return len(expired)
}

// Run calls [LRUCache.Cleanup] every CleanupInterval until ctx is done.
func (c *LRUCache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.Config().CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

// Clear drops every cached CRL and resets the counters.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*crlEntry)
	c.order = nil
	c.stats = CacheMetrics{}
}

// Metrics returns current cache metrics.
func (c *LRUCache) Metrics() CacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	var totalMemory int64
	for key, e := range c.entries {
		totalMemory += int64(len(e.crl.Raw)) + int64(len(key)) + 24 // Approximate overhead
	}

	m := c.stats
	m.Size = int64(len(c.entries))
	m.TotalMemory = totalMemory
	return m
}

// Stats returns a formatted string with cache statistics.
func (c *LRUCache) Stats() string {
	m := c.Metrics()
	config := c.Config()

	hitRate := float64(0)
	totalRequests := m.Hits + m.Misses
	if totalRequests > 0 {
		hitRate = float64(m.Hits) / float64(totalRequests) * 100
	}

	return fmt.Sprintf("CRL Cache Statistics:\n"+
		"  Size: %d/%d entries\n"+
		"  Memory Usage: %.2f KB\n"+
		"  Hit Rate: %.1f%% (%d hits, %d misses)\n"+
		"  Evictions: %d\n"+
		"  Cleanups: %d\n"+
		"  Cleanup Interval: %v",
		m.Size, config.MaxSize,
		float64(m.TotalMemory)/1024,
		hitRate, m.Hits, m.Misses,
		m.Evictions,
		m.Cleanups,
		config.CleanupInterval)
}

// touch moves key to the most recently used end. Callers hold c.mu.
func (c *LRUCache) touch(key string) {
	c.dropOrder(key)
	c.order = append(c.order, key)
}

// remove deletes key from the entries and the access order. Callers hold c.mu.
func (c *LRUCache) remove(key string) {
	delete(c.entries, key)
	c.dropOrder(key)
}

func (c *LRUCache) dropOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
