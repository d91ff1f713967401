package persistence

import (
	"context"
	"errors"

	"github.com/ecomfin/backend/internal/domain/importing"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/ecomfin/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormImportJobRepository implements JobRepository using GORM
type GormImportJobRepository struct {
	db *gorm.DB
}

// NewGormImportJobRepository creates a new GormImportJobRepository
func NewGormImportJobRepository(db *gorm.DB) *GormImportJobRepository {
	return &GormImportJobRepository{db: db}
}

// FindByID finds a job by ID
func (r *GormImportJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*importing.Job, error) {
	var model models.ImportJobModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCompany lists a company's most recent jobs
func (r *GormImportJobRepository) FindByCompany(ctx context.Context, companyID uuid.UUID, limit int) ([]*importing.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.ImportJobModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	jobs := make([]*importing.Job, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, rows[i].ToDomain())
	}
	return jobs, nil
}

// Save inserts a new job
func (r *GormImportJobRepository) Save(ctx context.Context, job *importing.Job) error {
	model := models.ImportJobModelFromDomain(job)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists job progress. Terminal jobs are never updated again,
// which keeps a late worker write from resurrecting a cancelled job.
func (r *GormImportJobRepository) Update(ctx context.Context, job *importing.Job) error {
	model := models.ImportJobModelFromDomain(job)
	result := r.db.WithContext(ctx).
		Model(&models.ImportJobModel{}).
		Where("id = ? AND status = ?", model.ID, string(importing.JobStatusProcessing)).
		Updates(map[string]interface{}{
			"processed":     model.Processed,
			"imported":      model.Imported,
			"duplicates":    model.Duplicates,
			"errors":        model.Errors,
			"total_rows":    model.TotalRows,
			"status":        model.Status,
			"error_message": model.ErrorMessage,
			"finished_at":   model.FinishedAt,
			"updated_at":    model.UpdatedAt,
			"version":       model.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	return nil
}
