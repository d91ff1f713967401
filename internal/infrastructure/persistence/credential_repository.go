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

// GormCredentialRepository implements CredentialRepository using GORM
type GormCredentialRepository struct {
	db *gorm.DB
}

// NewGormCredentialRepository creates a new GormCredentialRepository
func NewGormCredentialRepository(db *gorm.DB) *GormCredentialRepository {
	return &GormCredentialRepository{db: db}
}

// FindByChannel finds the stored credential for a company+channel
func (r *GormCredentialRepository) FindByChannel(ctx context.Context, companyID uuid.UUID, ch channel.Code) (*integration.Credential, error) {
	var model models.CredentialModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND channel = ?", companyID, string(ch)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByAccountID finds the credential holding a marketplace seller
// account, regardless of company
func (r *GormCredentialRepository) FindByAccountID(ctx context.Context, ch channel.Code, accountID string) (*integration.Credential, error) {
	var model models.CredentialModel
	if err := r.db.WithContext(ctx).
		Where("channel = ? AND account_id = ?", string(ch), accountID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save upserts the credential on its (company, channel) key. Reconnecting
// a marketplace replaces the stored token pair.
func (r *GormCredentialRepository) Save(ctx context.Context, cred *integration.Credential) error {
	model := models.CredentialModelFromDomain(cred)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "company_id"}, {Name: "channel"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "scope", "expires_at", "account_id", "updated_at",
		}),
	}).Create(model).Error
}

// Delete removes the credential, disconnecting the marketplace
func (r *GormCredentialRepository) Delete(ctx context.Context, companyID uuid.UUID, ch channel.Code) error {
	result := r.db.WithContext(ctx).
		Where("company_id = ? AND channel = ?", companyID, string(ch)).
		Delete(&models.CredentialModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GormIntegrationLogRepository implements IntegrationLogRepository using GORM
type GormIntegrationLogRepository struct {
	db *gorm.DB
}

// NewGormIntegrationLogRepository creates a new GormIntegrationLogRepository
func NewGormIntegrationLogRepository(db *gorm.DB) *GormIntegrationLogRepository {
	return &GormIntegrationLogRepository{db: db}
}

// Save inserts a log entry
func (r *GormIntegrationLogRepository) Save(ctx context.Context, entry *integration.IntegrationLog) error {
	model := models.IntegrationLogModelFromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindRecent lists the most recent log entries for a company
func (r *GormIntegrationLogRepository) FindRecent(ctx context.Context, companyID uuid.UUID, limit int) ([]integration.IntegrationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.IntegrationLogModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]integration.IntegrationLog, 0, len(rows))
	for i := range rows {
		entries = append(entries, *rows[i].ToDomain())
	}
	return entries, nil
}
