package persistence

import (
	"context"
	"time"

	"github.com/ecomfin/backend/internal/domain/costing"
	"github.com/ecomfin/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormCMVRepository implements CMVRepository using GORM
type GormCMVRepository struct {
	db *gorm.DB
}

// NewGormCMVRepository creates a new GormCMVRepository
func NewGormCMVRepository(db *gorm.DB) *GormCMVRepository {
	return &GormCMVRepository{db: db}
}

// ExistsForItem reports whether the item already has a CMV record
func (r *GormCMVRepository) ExistsForItem(ctx context.Context, itemID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CMVRecordModel{}).
		Where("item_id = ?", itemID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save inserts a record; a duplicate item reference surfaces
// shared.ErrDuplicateKey
func (r *GormCMVRepository) Save(ctx context.Context, rec *costing.CMVRecord) error {
	model := models.CMVRecordModelFromDomain(rec)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// DeleteByTransaction removes every record referencing the transaction,
// returning how many were deleted
func (r *GormCMVRepository) DeleteByTransaction(ctx context.Context, companyID, transactionID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("company_id = ? AND transaction_id = ?", companyID, transactionID).
		Delete(&models.CMVRecordModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SumByPeriod returns total CMV for a company within a date range
func (r *GormCMVRepository) SumByPeriod(ctx context.Context, companyID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.CMVRecordModel{}).
		Select("SUM(total_cost)").
		Where("company_id = ? AND date >= ? AND date <= ?", companyID, from, to).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// FindByPeriod lists records for a company within a date range
func (r *GormCMVRepository) FindByPeriod(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]costing.CMVRecord, error) {
	var results []models.CMVRecordModel
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND date >= ? AND date <= ?", companyID, from, to).
		Order("date ASC, created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	records := make([]costing.CMVRecord, 0, len(results))
	for i := range results {
		records = append(records, *results[i].ToDomain())
	}
	return records, nil
}
