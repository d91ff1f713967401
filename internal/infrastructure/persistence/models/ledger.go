package models

import (
	"time"

	"github.com/ecomfin/backend/internal/domain/ledger"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FinancialMovementModel is the persistence model for ledger movements.
// The (company, origin, external ref) unique index backs the upsert that
// keeps writes from origin modules idempotent; movements without an
// external ref carry NULL and always insert.
type FinancialMovementModel struct {
	AggregateModel
	CompanyID       uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_movements_origin_ref,priority:1"`
	Date            time.Time       `gorm:"not null;index"`
	Direction       string          `gorm:"type:varchar(8);not null"`
	Origin          string          `gorm:"type:varchar(16);not null;uniqueIndex:idx_movements_origin_ref,priority:2"`
	Regime          string          `gorm:"type:varchar(16);not null;index"`
	Description     string          `gorm:"type:varchar(512)"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ExternalRefID   *string         `gorm:"type:varchar(128);uniqueIndex:idx_movements_origin_ref,priority:3"`
	CategoryID      *uuid.UUID      `gorm:"type:uuid;index"`
	CategoryName    string          `gorm:"type:varchar(255)"`
	CostCenterID    *uuid.UUID      `gorm:"type:uuid"`
	CostCenterName  string          `gorm:"type:varchar(255)"`
	ResponsibleID   *uuid.UUID      `gorm:"type:uuid"`
	TransactionType string          `gorm:"type:varchar(64)"`
}

// TableName returns the table name for FinancialMovementModel
func (FinancialMovementModel) TableName() string {
	return "financial_movements"
}

// ToDomain converts the persistence model to a domain Movement
func (m *FinancialMovementModel) ToDomain() *ledger.Movement {
	mv := &ledger.Movement{
		Date:            m.Date,
		Direction:       ledger.Direction(m.Direction),
		Origin:          ledger.Origin(m.Origin),
		Regime:          ledger.Regime(m.Regime),
		Description:     m.Description,
		Amount:          m.Amount,
		ExternalRefID:   m.ExternalRefID,
		CategoryID:      m.CategoryID,
		CategoryName:    m.CategoryName,
		CostCenterID:    m.CostCenterID,
		CostCenterName:  m.CostCenterName,
		ResponsibleID:   m.ResponsibleID,
		TransactionType: m.TransactionType,
	}
	m.populateCompanyAggregateRoot(&mv.CompanyAggregateRoot)
	return mv
}

func (m *FinancialMovementModel) populateCompanyAggregateRoot(c *shared.CompanyAggregateRoot) {
	c.BaseAggregateRoot.BaseEntity.ID = m.ID
	c.BaseAggregateRoot.BaseEntity.CreatedAt = m.CreatedAt
	c.BaseAggregateRoot.BaseEntity.UpdatedAt = m.UpdatedAt
	c.BaseAggregateRoot.Version = m.Version
	c.CompanyID = m.CompanyID
}

// FinancialMovementModelFromDomain creates a persistence model from a domain Movement
func FinancialMovementModelFromDomain(mv *ledger.Movement) *FinancialMovementModel {
	m := &FinancialMovementModel{
		CompanyID:       mv.CompanyID,
		Date:            mv.Date,
		Direction:       string(mv.Direction),
		Origin:          string(mv.Origin),
		Regime:          string(mv.Regime),
		Description:     mv.Description,
		Amount:          mv.Amount,
		ExternalRefID:   mv.ExternalRefID,
		CategoryID:      mv.CategoryID,
		CategoryName:    mv.CategoryName,
		CostCenterID:    mv.CostCenterID,
		CostCenterName:  mv.CostCenterName,
		ResponsibleID:   mv.ResponsibleID,
		TransactionType: mv.TransactionType,
	}
	m.FromDomainAggregateRoot(mv.BaseAggregateRoot)
	return m
}
