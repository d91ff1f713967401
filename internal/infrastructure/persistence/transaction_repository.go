package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/reconciliation"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/ecomfin/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTransactionRepository implements TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// FindByID finds a transaction with its items, scoped to a company
func (r *GormTransactionRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*reconciliation.Transaction, error) {
	var model models.TransactionModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("company_id = ? AND id = ?", companyID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNaturalKey finds a transaction by its dedupe key
func (r *GormTransactionRepository) FindByNaturalKey(ctx context.Context, key reconciliation.NaturalKey) (*reconciliation.Transaction, error) {
	if key.IsZero() {
		return nil, shared.ErrNotFound
	}
	var model models.TransactionModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("company_id = ? AND channel = ? AND external_reference = ? AND type = ? AND direction = ?",
			key.CompanyID, string(key.Channel), key.ExternalReference, string(key.Type), string(key.Direction)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds transactions for a company with filtering and pagination
func (r *GormTransactionRepository) FindAll(ctx context.Context, companyID uuid.UUID, filter reconciliation.TransactionFilter) ([]reconciliation.Transaction, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("company_id = ?", companyID)

	if filter.Channel != nil {
		query = query.Where("channel = ?", string(*filter.Channel))
	}
	if filter.Type != nil {
		query = query.Where("type = ?", string(*filter.Type))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.DateFrom != nil {
		query = query.Where("transaction_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("transaction_date <= ?", *filter.DateTo)
	}
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var results []models.TransactionModel
	if err := query.Order("transaction_date DESC, created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}

	transactions := make([]reconciliation.Transaction, 0, len(results))
	for i := range results {
		transactions = append(transactions, *results[i].ToDomain())
	}
	return transactions, nil
}

// FindReconciledWithoutCMV returns reconciled transactions that still have
// at least one linked item without a CMV record, oldest reconciliation first
func (r *GormTransactionRepository) FindReconciledWithoutCMV(ctx context.Context, companyID uuid.UUID, limit int) ([]reconciliation.Transaction, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("company_id = ? AND status = ?", companyID, string(reconciliation.StatusReconciled)).
		Where(`EXISTS (
			SELECT 1 FROM transaction_items ti
			WHERE ti.transaction_id = transactions.id
			  AND (ti.product_id IS NOT NULL OR ti.sku_id IS NOT NULL)
			  AND NOT EXISTS (SELECT 1 FROM cmv_records cr WHERE cr.item_id = ti.id)
		)`).
		Order("reconciled_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var results []models.TransactionModel
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}

	transactions := make([]reconciliation.Transaction, 0, len(results))
	for i := range results {
		transactions = append(transactions, *results[i].ToDomain())
	}
	return transactions, nil
}

// CountReconciledWithoutCMV counts the company's attribution backlog
func (r *GormTransactionRepository) CountReconciledWithoutCMV(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TransactionModel{}).
		Where("company_id = ? AND status = ?", companyID, string(reconciliation.StatusReconciled)).
		Where(`EXISTS (
			SELECT 1 FROM transaction_items ti
			WHERE ti.transaction_id = transactions.id
			  AND (ti.product_id IS NOT NULL OR ti.sku_id IS NOT NULL)
			  AND NOT EXISTS (SELECT 1 FROM cmv_records cr WHERE cr.item_id = ti.id)
		)`).
		Count(&count).Error
	return count, err
}

// CountByExternalReferences counts how many of the given references already
// exist for a company+channel
func (r *GormTransactionRepository) CountByExternalReferences(ctx context.Context, companyID uuid.UUID, ch channel.Code, refs []string) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TransactionModel{}).
		Distinct("external_reference").
		Where("company_id = ? AND channel = ? AND external_reference IN ?", companyID, string(ch), refs).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// RelinkItems resolves every historical unlinked item matching the channel
// SKU to the given product. Already linked items are left untouched.
func (r *GormTransactionRepository) RelinkItems(ctx context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string, productID uuid.UUID, skuID *uuid.UUID) (int64, error) {
	transactionIDs := r.db.
		Model(&models.TransactionModel{}).
		Select("id").
		Where("company_id = ? AND channel = ?", companyID, string(ch))

	result := r.db.WithContext(ctx).
		Model(&models.TransactionItemModel{}).
		Where("channel_sku = ? AND product_id IS NULL AND sku_id IS NULL", channelSKU).
		Where("transaction_id IN (?)", transactionIDs).
		Updates(map[string]interface{}{
			"product_id": productID,
			"sku_id":     skuID,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Save inserts a new transaction with its items. A natural-key collision
// surfaces shared.ErrDuplicateKey so the caller can merge instead.
func (r *GormTransactionRepository) Save(ctx context.Context, tx *reconciliation.Transaction) error {
	model := models.TransactionModelFromDomain(tx)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// Update persists changes to an existing transaction and its items. Items
// are upserted by primary key so merge-added lines insert and existing
// lines update in the same pass.
func (r *GormTransactionRepository) Update(ctx context.Context, tx *reconciliation.Transaction) error {
	model := models.TransactionModelFromDomain(tx)
	return r.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Omit("Items").Save(model).Error; err != nil {
			return translateError(err)
		}
		if len(model.Items) == 0 {
			return nil
		}
		if err := dbtx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&model.Items).Error; err != nil {
			return translateError(err)
		}
		return nil
	})
}

// ItemsWithoutCMV returns the linked items of a transaction that have no
// CMV record yet
func (r *GormTransactionRepository) ItemsWithoutCMV(ctx context.Context, transactionID uuid.UUID) ([]reconciliation.TransactionItem, error) {
	var results []models.TransactionItemModel
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Where("product_id IS NOT NULL OR sku_id IS NOT NULL").
		Where("NOT EXISTS (SELECT 1 FROM cmv_records cr WHERE cr.item_id = transaction_items.id)").
		Order("source_row ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	items := make([]reconciliation.TransactionItem, 0, len(results))
	for i := range results {
		items = append(items, *results[i].ToDomain())
	}
	return items, nil
}
