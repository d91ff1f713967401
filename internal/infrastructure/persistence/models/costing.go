package models

import (
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/costing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CMVRecordModel is the persistence model for cost-of-goods attributions.
// The unique item id is the idempotence guard: a second insert for the same
// sold line violates the constraint instead of double-counting cost.
type CMVRecordModel struct {
	BaseModel
	CompanyID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	ProductID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	ItemID        uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_cmv_records_item"`
	TransactionID uuid.UUID        `gorm:"type:uuid;not null;index"`
	Channel       string           `gorm:"type:varchar(32);not null"`
	Date          time.Time        `gorm:"not null;index"`
	Quantity      int              `gorm:"not null"`
	UnitCost      decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	TotalCost     decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	UnitPrice     decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Revenue       *decimal.Decimal `gorm:"type:decimal(18,4)"`
	GrossMargin   *decimal.Decimal `gorm:"type:decimal(18,4)"`
	MarginPercent *decimal.Decimal `gorm:"type:decimal(8,2)"`
}

// TableName returns the table name for CMVRecordModel
func (CMVRecordModel) TableName() string {
	return "cmv_records"
}

// ToDomain converts the persistence model to a domain CMVRecord
func (m *CMVRecordModel) ToDomain() *costing.CMVRecord {
	return &costing.CMVRecord{
		BaseEntity:    m.BaseModel.ToDomain(),
		CompanyID:     m.CompanyID,
		ProductID:     m.ProductID,
		ItemID:        m.ItemID,
		TransactionID: m.TransactionID,
		Channel:       channel.Code(m.Channel),
		Date:          m.Date,
		Quantity:      m.Quantity,
		UnitCost:      m.UnitCost,
		TotalCost:     m.TotalCost,
		UnitPrice:     m.UnitPrice,
		Revenue:       m.Revenue,
		GrossMargin:   m.GrossMargin,
		MarginPercent: m.MarginPercent,
	}
}

// CMVRecordModelFromDomain creates a persistence model from a domain CMVRecord
func CMVRecordModelFromDomain(rec *costing.CMVRecord) *CMVRecordModel {
	m := &CMVRecordModel{
		CompanyID:     rec.CompanyID,
		ProductID:     rec.ProductID,
		ItemID:        rec.ItemID,
		TransactionID: rec.TransactionID,
		Channel:       string(rec.Channel),
		Date:          rec.Date,
		Quantity:      rec.Quantity,
		UnitCost:      rec.UnitCost,
		TotalCost:     rec.TotalCost,
		UnitPrice:     rec.UnitPrice,
		Revenue:       rec.Revenue,
		GrossMargin:   rec.GrossMargin,
		MarginPercent: rec.MarginPercent,
	}
	m.FromDomainBaseEntity(rec.BaseEntity)
	return m
}
