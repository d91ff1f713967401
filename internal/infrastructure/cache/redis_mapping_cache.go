package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultScanBatchSize = 100

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisMappingCache implements MappingCache using Redis. Suitable for
// distributed deployments where import workers on multiple instances share
// mapping resolutions.
type RedisMappingCache struct {
	client     *redis.Client
	ownsClient bool
	ttl        time.Duration
	logger     *zap.Logger
}

// RedisMappingCacheOption is a functional option for configuring the cache
type RedisMappingCacheOption func(*RedisMappingCache)

// WithRedisTTL sets the default entry TTL
func WithRedisTTL(ttl time.Duration) RedisMappingCacheOption {
	return func(c *RedisMappingCache) {
		c.ttl = ttl
	}
}

// WithRedisLogger sets the logger for the cache
func WithRedisLogger(logger *zap.Logger) RedisMappingCacheOption {
	return func(c *RedisMappingCache) {
		c.logger = logger
	}
}

// NewRedisMappingCache creates a new Redis-based SKU mapping cache
func NewRedisMappingCache(cfg RedisConfig, opts ...RedisMappingCacheOption) (*RedisMappingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := &RedisMappingCache{
		client:     client,
		ownsClient: true,
		ttl:        defaultMappingTTL,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache, nil
}

// NewRedisMappingCacheWithClient creates a cache with an existing Redis client.
// The caller retains ownership of the client and is responsible for closing it.
func NewRedisMappingCacheWithClient(client *redis.Client, opts ...RedisMappingCacheOption) *RedisMappingCache {
	cache := &RedisMappingCache{
		client:     client,
		ownsClient: false,
		ttl:        defaultMappingTTL,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

func (c *RedisMappingCache) key(companyID uuid.UUID, ch channel.Code, channelSKU string) string {
	return fmt.Sprintf("sku_mapping:%s:%s:%s", companyID, ch, channelSKU)
}

// Get retrieves a cached mapping, nil on miss
func (c *RedisMappingCache) Get(ctx context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string) (*integration.SkuMapping, error) {
	cacheKey := c.key(companyID, ch, channelSKU)

	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping from cache: %w", err)
	}

	var mapping integration.SkuMapping
	if err := json.Unmarshal(data, &mapping); err != nil {
		c.logger.Error("failed to unmarshal cached mapping",
			zap.String("key", cacheKey),
			zap.Error(err))
		_ = c.client.Del(ctx, cacheKey)
		return nil, fmt.Errorf("failed to unmarshal mapping: %w", err)
	}
	return &mapping, nil
}

// Set stores a mapping
func (c *RedisMappingCache) Set(ctx context.Context, mapping *integration.SkuMapping, ttl time.Duration) error {
	if mapping == nil {
		return nil
	}
	if ttl == 0 {
		ttl = c.ttl
	}

	data, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	cacheKey := c.key(mapping.CompanyID, mapping.Channel, mapping.ChannelSKU)
	if err := c.client.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set mapping in cache: %w", err)
	}
	return nil
}

// Delete evicts a single mapping
func (c *RedisMappingCache) Delete(ctx context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string) error {
	if err := c.client.Del(ctx, c.key(companyID, ch, channelSKU)).Err(); err != nil {
		return fmt.Errorf("failed to delete mapping from cache: %w", err)
	}
	return nil
}

// InvalidateCompany evicts every mapping cached for a company. Uses SCAN to
// avoid blocking Redis with KEYS.
func (c *RedisMappingCache) InvalidateCompany(ctx context.Context, companyID uuid.UUID) error {
	pattern := fmt.Sprintf("sku_mapping:%s:*", companyID)
	var cursor uint64
	var deleted int64

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, defaultScanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Debug("invalidated company mapping cache",
		zap.String("company_id", companyID.String()),
		zap.Int64("deleted", deleted))
	return nil
}

// Close releases the Redis client if this cache owns it
func (c *RedisMappingCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

// Ensure RedisMappingCache implements MappingCache
var _ integration.MappingCache = (*RedisMappingCache)(nil)
