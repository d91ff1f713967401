package models

import (
	"github.com/ecomfin/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for internal products
type ProductModel struct {
	CompanyAggregateModel
	Name        string          `gorm:"type:varchar(255);not null"`
	InternalSKU string          `gorm:"type:varchar(128);index"`
	AverageCost decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Stock       int             `gorm:"not null;default:0"`
	Active      bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for ProductModel
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *catalog.Product {
	p := &catalog.Product{
		Name:        m.Name,
		InternalSKU: m.InternalSKU,
		AverageCost: m.AverageCost,
		Stock:       m.Stock,
		Active:      m.Active,
	}
	m.PopulateCompanyAggregateRoot(&p.CompanyAggregateRoot)
	return p
}

// ProductModelFromDomain creates a persistence model from a domain Product
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{
		Name:        p.Name,
		InternalSKU: p.InternalSKU,
		AverageCost: p.AverageCost,
		Stock:       p.Stock,
		Active:      p.Active,
	}
	m.FromDomainCompanyAggregateRoot(p.CompanyAggregateRoot)
	return m
}
