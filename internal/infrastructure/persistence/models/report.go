package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecomfin/backend/internal/domain/report"
)

// TitleModel is the persistence model for receivable/payable titles
type TitleModel struct {
	CompanyAggregateModel
	Kind        string          `gorm:"type:varchar(16);not null;index"`
	ClientName  string          `gorm:"type:varchar(255);not null"`
	Description string          `gorm:"type:varchar(512)"`
	DueDate     time.Time       `gorm:"not null;index"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status      string          `gorm:"type:varchar(16);not null;index"`
	SettledAt   *time.Time
}

// TableName returns the table name for TitleModel
func (TitleModel) TableName() string {
	return "titles"
}

// ToDomain converts the persistence model to a domain Title
func (m *TitleModel) ToDomain() *report.Title {
	t := &report.Title{
		Kind:        report.TitleKind(m.Kind),
		ClientName:  m.ClientName,
		Description: m.Description,
		DueDate:     m.DueDate,
		Amount:      m.Amount,
		Status:      report.OpenItemStatus(m.Status),
		SettledAt:   m.SettledAt,
	}
	m.PopulateCompanyAggregateRoot(&t.CompanyAggregateRoot)
	return t
}

// TitleModelFromDomain creates a persistence model from a domain Title
func TitleModelFromDomain(t *report.Title) *TitleModel {
	m := &TitleModel{
		Kind:        string(t.Kind),
		ClientName:  t.ClientName,
		Description: t.Description,
		DueDate:     t.DueDate,
		Amount:      t.Amount,
		Status:      string(t.Status),
		SettledAt:   t.SettledAt,
	}
	m.FromDomainCompanyAggregateRoot(t.CompanyAggregateRoot)
	return m
}
