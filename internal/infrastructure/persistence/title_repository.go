package persistence

import (
	"context"
	"errors"

	"github.com/ecomfin/backend/internal/domain/report"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/ecomfin/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTitleRepository implements TitleRepository using GORM
type GormTitleRepository struct {
	db *gorm.DB
}

// NewGormTitleRepository creates a new GormTitleRepository
func NewGormTitleRepository(db *gorm.DB) *GormTitleRepository {
	return &GormTitleRepository{db: db}
}

// FindByID finds a title by ID, scoped to a company
func (r *GormTitleRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*report.Title, error) {
	var model models.TitleModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByKind lists every title of a kind for a company, oldest due first
func (r *GormTitleRepository) FindByKind(ctx context.Context, companyID uuid.UUID, kind report.TitleKind) ([]report.Title, error) {
	var rows []models.TitleModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND kind = ?", companyID, kind).
		Order("due_date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	titles := make([]report.Title, 0, len(rows))
	for i := range rows {
		titles = append(titles, *rows[i].ToDomain())
	}
	return titles, nil
}

// Save inserts a new title
func (r *GormTitleRepository) Save(ctx context.Context, t *report.Title) error {
	model := models.TitleModelFromDomain(t)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// Update persists changes to an existing title
func (r *GormTitleRepository) Update(ctx context.Context, t *report.Title) error {
	model := models.TitleModelFromDomain(t)
	return r.db.WithContext(ctx).Save(model).Error
}
