package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/integration"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMappingTTL      = 5 * time.Minute
	defaultCleanupInterval = 30 * time.Second
)

// mappingEntry wraps a cached mapping with expiration time
type mappingEntry struct {
	value     *integration.SkuMapping
	expiresAt time.Time
}

func (e *mappingEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemoryMappingCache implements MappingCache using in-memory storage.
// Suitable for single-instance deployments and as L1 in front of Redis.
type InMemoryMappingCache struct {
	entries sync.Map // map[string]*mappingEntry
	ttl     time.Duration
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped int32

	hits   int64
	misses int64
}

// InMemoryMappingCacheOption is a functional option for configuring the cache
type InMemoryMappingCacheOption func(*InMemoryMappingCache)

// WithInMemoryTTL sets the default entry TTL
func WithInMemoryTTL(ttl time.Duration) InMemoryMappingCacheOption {
	return func(c *InMemoryMappingCache) {
		c.ttl = ttl
	}
}

// WithInMemoryLogger sets the logger for the cache
func WithInMemoryLogger(logger *zap.Logger) InMemoryMappingCacheOption {
	return func(c *InMemoryMappingCache) {
		c.logger = logger
	}
}

// NewInMemoryMappingCache creates a new in-memory SKU mapping cache
func NewInMemoryMappingCache(opts ...InMemoryMappingCacheOption) *InMemoryMappingCache {
	cache := &InMemoryMappingCache{
		ttl:    defaultMappingTTL,
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	go cache.cleanupExpired()

	return cache
}

func mappingCacheKey(companyID uuid.UUID, ch channel.Code, channelSKU string) string {
	return companyID.String() + ":" + string(ch) + ":" + channelSKU
}

// Get retrieves a cached mapping, nil on miss
func (c *InMemoryMappingCache) Get(_ context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string) (*integration.SkuMapping, error) {
	key := mappingCacheKey(companyID, ch, channelSKU)

	if value, ok := c.entries.Load(key); ok {
		entry := value.(*mappingEntry)
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			return entry.value, nil
		}
		c.entries.Delete(key)
	}

	atomic.AddInt64(&c.misses, 1)
	return nil, nil
}

// Set stores a mapping
func (c *InMemoryMappingCache) Set(_ context.Context, mapping *integration.SkuMapping, ttl time.Duration) error {
	if mapping == nil {
		return nil
	}
	if ttl == 0 {
		ttl = c.ttl
	}

	key := mappingCacheKey(mapping.CompanyID, mapping.Channel, mapping.ChannelSKU)
	c.entries.Store(key, &mappingEntry{
		value:     mapping,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

// Delete evicts a single mapping
func (c *InMemoryMappingCache) Delete(_ context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string) error {
	c.entries.Delete(mappingCacheKey(companyID, ch, channelSKU))
	return nil
}

// InvalidateCompany evicts every mapping cached for a company
func (c *InMemoryMappingCache) InvalidateCompany(_ context.Context, companyID uuid.UUID) error {
	prefix := companyID.String() + ":"
	removed := 0
	c.entries.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), prefix) {
			c.entries.Delete(key)
			removed++
		}
		return true
	})
	c.logger.Debug("invalidated company mapping cache",
		zap.String("company_id", companyID.String()),
		zap.Int("removed", removed))
	return nil
}

// Close stops the background cleanup goroutine
func (c *InMemoryMappingCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// GetStats returns cache hit/miss counters
func (c *InMemoryMappingCache) GetStats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// cleanupExpired periodically removes expired entries
func (c *InMemoryMappingCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.entries.Range(func(key, value any) bool {
				if value.(*mappingEntry).isExpired() {
					c.entries.Delete(key)
				}
				return true
			})
		}
	}
}

// Ensure InMemoryMappingCache implements MappingCache
var _ integration.MappingCache = (*InMemoryMappingCache)(nil)
