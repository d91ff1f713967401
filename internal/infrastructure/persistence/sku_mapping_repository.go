package persistence

import (
	"context"
	"errors"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/integration"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/ecomfin/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSkuMappingRepository implements SkuMappingRepository using GORM
type GormSkuMappingRepository struct {
	db *gorm.DB
}

// NewGormSkuMappingRepository creates a new GormSkuMappingRepository
func NewGormSkuMappingRepository(db *gorm.DB) *GormSkuMappingRepository {
	return &GormSkuMappingRepository{db: db}
}

// FindByKey finds a mapping by its unique (company, channel, sku) key
func (r *GormSkuMappingRepository) FindByKey(ctx context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string) (*integration.SkuMapping, error) {
	var model models.SkuMappingModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND channel = ? AND channel_sku = ?", companyID, string(ch), channelSKU).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists mappings for a company with filtering
func (r *GormSkuMappingRepository) FindAll(ctx context.Context, companyID uuid.UUID, filter integration.MappingFilter) ([]integration.SkuMapping, error) {
	query := r.db.WithContext(ctx).Where("company_id = ?", companyID)

	if filter.Channel != nil {
		query = query.Where("channel = ?", string(*filter.Channel))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("LOWER(channel_sku) LIKE LOWER(?) OR LOWER(label) LIKE LOWER(?)", pattern, pattern)
	}
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var results []models.SkuMappingModel
	if err := query.Order("channel ASC, channel_sku ASC").Find(&results).Error; err != nil {
		return nil, err
	}

	mappings := make([]integration.SkuMapping, 0, len(results))
	for i := range results {
		mappings = append(mappings, *results[i].ToDomain())
	}
	return mappings, nil
}

// FindConfirmed returns every confirmed mapping for a company
func (r *GormSkuMappingRepository) FindConfirmed(ctx context.Context, companyID uuid.UUID) ([]integration.SkuMapping, error) {
	var results []models.SkuMappingModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND status = ?", companyID, string(integration.MappingStatusConfirmed)).
		Order("channel ASC, channel_sku ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}

	mappings := make([]integration.SkuMapping, 0, len(results))
	for i := range results {
		mappings = append(mappings, *results[i].ToDomain())
	}
	return mappings, nil
}

// Upsert writes the mapping with conflict resolution on the unique key.
// A pending insert over an existing row is dropped so an import run never
// downgrades a confirmed mapping; a confirmed write always wins.
func (r *GormSkuMappingRepository) Upsert(ctx context.Context, mapping *integration.SkuMapping) error {
	model := models.SkuMappingModelFromDomain(mapping)
	conflictColumns := []clause.Column{
		{Name: "company_id"},
		{Name: "channel"},
		{Name: "channel_sku"},
	}

	var onConflict clause.OnConflict
	if mapping.Status == integration.MappingStatusPending {
		onConflict = clause.OnConflict{Columns: conflictColumns, DoNothing: true}
	} else {
		onConflict = clause.OnConflict{
			Columns:   conflictColumns,
			DoUpdates: clause.AssignmentColumns([]string{"product_id", "sku_id", "label", "status", "updated_at"}),
		}
	}

	return r.db.WithContext(ctx).Clauses(onConflict).Create(model).Error
}

// Delete removes a mapping
func (r *GormSkuMappingRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		Delete(&models.SkuMappingModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
