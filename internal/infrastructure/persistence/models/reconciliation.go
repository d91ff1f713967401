package models

import (
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/reconciliation"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionModel is the persistence model for sales-channel transactions.
// The natural-key unique index is what turns a re-imported row into a
// constraint violation the repository translates to shared.ErrDuplicateKey.
// NULL external references fall outside the index, so manual entries never
// collide.
type TransactionModel struct {
	AggregateModel
	CompanyID         uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_transactions_natural_key,priority:1"`
	Channel           string           `gorm:"type:varchar(32);not null;uniqueIndex:idx_transactions_natural_key,priority:2"`
	ExternalReference *string          `gorm:"type:varchar(128);uniqueIndex:idx_transactions_natural_key,priority:3"`
	OrderID           *string          `gorm:"type:varchar(128);index"`
	Type              string           `gorm:"type:varchar(16);not null;uniqueIndex:idx_transactions_natural_key,priority:4"`
	Direction         string           `gorm:"type:varchar(8);not null;uniqueIndex:idx_transactions_natural_key,priority:5"`
	TransactionDate   time.Time        `gorm:"not null;index"`
	PostingDate       *time.Time       `gorm:"index"`
	GrossAmount       decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	NetAmount         decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Commission        *decimal.Decimal `gorm:"type:decimal(18,4)"`
	FixedFee          *decimal.Decimal `gorm:"type:decimal(18,4)"`
	ShippingCost      *decimal.Decimal `gorm:"type:decimal(18,4)"`
	AdsCost           *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Tax               *decimal.Decimal `gorm:"type:decimal(18,4)"`
	OtherDeductions   *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Status            string           `gorm:"type:varchar(16);not null;index"`
	CategoryID        *uuid.UUID       `gorm:"type:uuid;index"`
	CostCenterID      *uuid.UUID       `gorm:"type:uuid"`
	AccountLabel      *string          `gorm:"type:varchar(255)"`
	ShipmentType      *string          `gorm:"type:varchar(64)"`
	SourceRow         int              `gorm:"not null;default:0"`
	ReconciledAt      *time.Time
	Items             []TransactionItemModel `gorm:"foreignKey:TransactionID"`
}

// TableName returns the table name for TransactionModel
func (TransactionModel) TableName() string {
	return "transactions"
}

// ToDomain converts the persistence model to a domain Transaction
func (m *TransactionModel) ToDomain() *reconciliation.Transaction {
	tx := &reconciliation.Transaction{
		Channel:           channel.Code(m.Channel),
		ExternalReference: m.ExternalReference,
		OrderID:           m.OrderID,
		Type:              reconciliation.TransactionType(m.Type),
		Direction:         reconciliation.Direction(m.Direction),
		TransactionDate:   m.TransactionDate,
		PostingDate:       m.PostingDate,
		GrossAmount:       m.GrossAmount,
		NetAmount:         m.NetAmount,
		Fees: reconciliation.FeeBreakdown{
			Commission:      m.Commission,
			FixedFee:        m.FixedFee,
			ShippingCost:    m.ShippingCost,
			AdsCost:         m.AdsCost,
			Tax:             m.Tax,
			OtherDeductions: m.OtherDeductions,
		},
		Status:       reconciliation.Status(m.Status),
		CategoryID:   m.CategoryID,
		CostCenterID: m.CostCenterID,
		AccountLabel: m.AccountLabel,
		ShipmentType: m.ShipmentType,
		SourceRow:    m.SourceRow,
		ReconciledAt: m.ReconciledAt,
	}
	m.PopulateCompanyAggregateRoot(&tx.CompanyAggregateRoot)
	tx.Items = make([]reconciliation.TransactionItem, 0, len(m.Items))
	for i := range m.Items {
		tx.Items = append(tx.Items, *m.Items[i].ToDomain())
	}
	return tx
}

// PopulateCompanyAggregateRoot mirrors CompanyAggregateModel for the locally
// declared company column
func (m *TransactionModel) PopulateCompanyAggregateRoot(c *shared.CompanyAggregateRoot) {
	c.BaseAggregateRoot.BaseEntity.ID = m.ID
	c.BaseAggregateRoot.BaseEntity.CreatedAt = m.CreatedAt
	c.BaseAggregateRoot.BaseEntity.UpdatedAt = m.UpdatedAt
	c.BaseAggregateRoot.Version = m.Version
	c.CompanyID = m.CompanyID
}

// TransactionModelFromDomain creates a persistence model from a domain Transaction
func TransactionModelFromDomain(tx *reconciliation.Transaction) *TransactionModel {
	m := &TransactionModel{
		CompanyID:         tx.CompanyID,
		Channel:           string(tx.Channel),
		ExternalReference: tx.ExternalReference,
		OrderID:           tx.OrderID,
		Type:              string(tx.Type),
		Direction:         string(tx.Direction),
		TransactionDate:   tx.TransactionDate,
		PostingDate:       tx.PostingDate,
		GrossAmount:       tx.GrossAmount,
		NetAmount:         tx.NetAmount,
		Commission:        tx.Fees.Commission,
		FixedFee:          tx.Fees.FixedFee,
		ShippingCost:      tx.Fees.ShippingCost,
		AdsCost:           tx.Fees.AdsCost,
		Tax:               tx.Fees.Tax,
		OtherDeductions:   tx.Fees.OtherDeductions,
		Status:            string(tx.Status),
		CategoryID:        tx.CategoryID,
		CostCenterID:      tx.CostCenterID,
		AccountLabel:      tx.AccountLabel,
		ShipmentType:      tx.ShipmentType,
		SourceRow:         tx.SourceRow,
		ReconciledAt:      tx.ReconciledAt,
	}
	m.FromDomainAggregateRoot(tx.BaseAggregateRoot)
	m.Items = make([]TransactionItemModel, 0, len(tx.Items))
	for i := range tx.Items {
		m.Items = append(m.Items, *TransactionItemModelFromDomain(&tx.Items[i]))
	}
	return m
}

// TransactionItemModel is the persistence model for transaction item lines
type TransactionItemModel struct {
	BaseModel
	TransactionID uuid.UUID        `gorm:"type:uuid;not null;index"`
	ChannelSKU    *string          `gorm:"type:varchar(128);index"`
	Description   string           `gorm:"type:varchar(512);not null"`
	Quantity      int              `gorm:"not null;default:1"`
	UnitPrice     decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	LineTotal     *decimal.Decimal `gorm:"type:decimal(18,4)"`
	ProductID     *uuid.UUID       `gorm:"type:uuid;index"`
	SKUID         *uuid.UUID       `gorm:"column:sku_id;type:uuid"`
	SourceRow     int              `gorm:"not null;default:0"`
}

// TableName returns the table name for TransactionItemModel
func (TransactionItemModel) TableName() string {
	return "transaction_items"
}

// ToDomain converts the persistence model to a domain TransactionItem
func (m *TransactionItemModel) ToDomain() *reconciliation.TransactionItem {
	return &reconciliation.TransactionItem{
		BaseEntity:    m.BaseModel.ToDomain(),
		TransactionID: m.TransactionID,
		ChannelSKU:    m.ChannelSKU,
		Description:   m.Description,
		Quantity:      m.Quantity,
		UnitPrice:     m.UnitPrice,
		LineTotal:     m.LineTotal,
		ProductID:     m.ProductID,
		SKUID:         m.SKUID,
		SourceRow:     m.SourceRow,
	}
}

// TransactionItemModelFromDomain creates a persistence model from a domain TransactionItem
func TransactionItemModelFromDomain(item *reconciliation.TransactionItem) *TransactionItemModel {
	m := &TransactionItemModel{
		TransactionID: item.TransactionID,
		ChannelSKU:    item.ChannelSKU,
		Description:   item.Description,
		Quantity:      item.Quantity,
		UnitPrice:     item.UnitPrice,
		LineTotal:     item.LineTotal,
		ProductID:     item.ProductID,
		SKUID:         item.SKUID,
		SourceRow:     item.SourceRow,
	}
	m.FromDomainBaseEntity(item.BaseEntity)
	return m
}
