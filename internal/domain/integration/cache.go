package integration

import (
	"context"
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/google/uuid"
)

// MappingCache caches SKU mapping resolutions so an import run does not hit
// the database once per row. A miss returns (nil, nil). Implementations must
// be safe for concurrent use.
type MappingCache interface {
	// Get retrieves a cached mapping, nil on miss
	Get(ctx context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string) (*SkuMapping, error)

	// Set stores a mapping; ttl 0 uses the implementation default
	Set(ctx context.Context, mapping *SkuMapping, ttl time.Duration) error

	// Delete evicts a single mapping (after confirm or delete, so stale
	// pending resolutions never survive a retroactive relink)
	Delete(ctx context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string) error

	// InvalidateCompany evicts every mapping cached for a company
	InvalidateCompany(ctx context.Context, companyID uuid.UUID) error

	// Close releases any resources held by the cache
	Close() error
}
