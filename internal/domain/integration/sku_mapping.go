package integration

import (
	"context"
	"strings"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MappingStatus represents the resolution state of a SKU mapping
type MappingStatus string

const (
	// MappingStatusPending is auto-created the first time an unmapped SKU is
	// seen; it sits in a queue until a human confirms the product.
	MappingStatusPending MappingStatus = "PENDING"
	// MappingStatusConfirmed means a human resolved the channel SKU to an
	// internal product.
	MappingStatusConfirmed MappingStatus = "CONFIRMED"
)

// IsValid checks if the status is valid
func (s MappingStatus) IsValid() bool {
	return s == MappingStatusPending || s == MappingStatusConfirmed
}

// SkuMapping links a channel SKU to an internal product per company+channel.
// The tuple (company, channel, channel SKU) is unique; writes are
// upsert-on-conflict so re-importing never duplicates a mapping.
type SkuMapping struct {
	shared.BaseEntity
	CompanyID  uuid.UUID
	Channel    channel.Code
	ChannelSKU string
	ProductID  *uuid.UUID // Nil while pending
	SKUID      *uuid.UUID
	Label      string // Human-readable description, usually the item title
	Status     MappingStatus
}

// NewPendingMapping creates an unresolved mapping for an unmapped channel SKU
func NewPendingMapping(companyID uuid.UUID, ch channel.Code, channelSKU, label string) (*SkuMapping, error) {
	channelSKU = strings.TrimSpace(channelSKU)
	if companyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COMPANY", "Company ID cannot be empty")
	}
	if !ch.IsValid() {
		return nil, shared.NewDomainError("INVALID_CHANNEL", "Channel is not valid")
	}
	if channelSKU == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "Channel SKU cannot be empty")
	}

	return &SkuMapping{
		BaseEntity: shared.NewBaseEntity(),
		CompanyID:  companyID,
		Channel:    ch,
		ChannelSKU: channelSKU,
		Label:      label,
		Status:     MappingStatusPending,
	}, nil
}

// Confirm resolves the mapping to an internal product. Idempotent: confirming
// with the same product again is a no-op.
func (m *SkuMapping) Confirm(productID uuid.UUID, skuID *uuid.UUID) error {
	if productID == uuid.Nil {
		return shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	m.ProductID = &productID
	m.SKUID = skuID
	m.Status = MappingStatusConfirmed
	m.Touch()
	return nil
}

// IsConfirmed returns true when the mapping resolves to a product
func (m *SkuMapping) IsConfirmed() bool {
	return m.Status == MappingStatusConfirmed && m.ProductID != nil
}

// MappingFilter defines filter criteria for mapping queries
type MappingFilter struct {
	Channel  *channel.Code
	Status   *MappingStatus
	Search   string
	Page     int
	PageSize int
}

// SkuMappingRepository defines persistence for SKU mappings
type SkuMappingRepository interface {
	// FindByKey finds a mapping by its unique (company, channel, sku) key
	FindByKey(ctx context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string) (*SkuMapping, error)

	// FindAll lists mappings for a company with filtering
	FindAll(ctx context.Context, companyID uuid.UUID, filter MappingFilter) ([]SkuMapping, error)

	// FindConfirmed returns every confirmed mapping for a company (used by
	// the reprocess-all operation)
	FindConfirmed(ctx context.Context, companyID uuid.UUID) ([]SkuMapping, error)

	// Upsert writes the mapping with conflict resolution on the unique key.
	// Inserting a pending mapping over an existing row is a silent no-op.
	Upsert(ctx context.Context, mapping *SkuMapping) error

	// Delete removes a mapping
	Delete(ctx context.Context, companyID, id uuid.UUID) error
}
