package catalog

import (
	"context"

	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the minimal internal product needed for CMV attribution and
// stock validation. Full catalog management lives outside this service.
type Product struct {
	shared.CompanyAggregateRoot
	Name        string
	InternalSKU string
	AverageCost decimal.Decimal
	Stock       int
	Active      bool
}

// NewProduct creates a product
func NewProduct(companyID uuid.UUID, name, internalSKU string, averageCost decimal.Decimal, stock int) (*Product, error) {
	if companyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COMPANY", "Company ID cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if averageCost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "Average cost cannot be negative")
	}
	return &Product{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Name:                 name,
		InternalSKU:          internalSKU,
		AverageCost:          averageCost,
		Stock:                stock,
		Active:               true,
	}, nil
}

// HasStock returns true if the product can cover the requested quantity
func (p *Product) HasStock(quantity int) bool {
	return p.Stock >= quantity
}

// ConsumeStock decrements stock by the given quantity
func (p *Product) ConsumeStock(quantity int) error {
	if !p.HasStock(quantity) {
		return shared.ErrInsufficientStock
	}
	p.Stock -= quantity
	p.Touch()
	return nil
}

// RestoreStock returns stock previously consumed (e.g. on reopen)
func (p *Product) RestoreStock(quantity int) {
	p.Stock += quantity
	p.Touch()
}

// ProductRepository defines persistence for products
type ProductRepository interface {
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Product, error)
	FindByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*Product, error)
	FindAll(ctx context.Context, companyID uuid.UUID) ([]Product, error)
	Save(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
}
