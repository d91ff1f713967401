package persistence

import (
	"context"
	"errors"

	"github.com/ecomfin/backend/internal/domain/ledger"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/ecomfin/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMovementRepository implements MovementRepository using GORM
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// FindByOriginRef finds the movement upserted for an origin record
func (r *GormMovementRepository) FindByOriginRef(ctx context.Context, companyID uuid.UUID, origin ledger.Origin, externalRefID string) (*ledger.Movement, error) {
	var model models.FinancialMovementModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND origin = ? AND external_ref_id = ?", companyID, string(origin), externalRefID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists movements for a company with filtering
func (r *GormMovementRepository) FindAll(ctx context.Context, companyID uuid.UUID, filter ledger.MovementFilter) ([]ledger.Movement, error) {
	query := r.db.WithContext(ctx).Where("company_id = ?", companyID)

	if filter.Regime != nil {
		query = query.Where("regime = ?", string(*filter.Regime))
	}
	if filter.Origin != nil {
		query = query.Where("origin = ?", string(*filter.Origin))
	}
	if filter.DateFrom != nil {
		query = query.Where("date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("date <= ?", *filter.DateTo)
	}

	var results []models.FinancialMovementModel
	if err := query.Order("date ASC, created_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}

	movements := make([]ledger.Movement, 0, len(results))
	for i := range results {
		movements = append(movements, *results[i].ToDomain())
	}
	return movements, nil
}

// Upsert writes the movement keyed on (company, origin, external ref).
// Movements without an external ref always insert.
func (r *GormMovementRepository) Upsert(ctx context.Context, m *ledger.Movement) error {
	model := models.FinancialMovementModelFromDomain(m)
	if m.ExternalRefID == nil {
		return r.db.WithContext(ctx).Create(model).Error
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "company_id"},
			{Name: "origin"},
			{Name: "external_ref_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"date", "direction", "regime", "description", "amount",
			"category_id", "category_name", "cost_center_id", "cost_center_name",
			"responsible_id", "transaction_type", "updated_at",
		}),
	}).Create(model).Error
}

// DeleteByOriginRef removes the movement for an origin record
func (r *GormMovementRepository) DeleteByOriginRef(ctx context.Context, companyID uuid.UUID, origin ledger.Origin, externalRefID string) error {
	return r.db.WithContext(ctx).
		Where("company_id = ? AND origin = ? AND external_ref_id = ?", companyID, string(origin), externalRefID).
		Delete(&models.FinancialMovementModel{}).Error
}
