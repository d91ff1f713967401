package reconciliation

import (
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionItem is a product line within a Transaction. Items with neither
// a resolved product nor SKU are "unlinked": still displayed, but excluded
// from CMV and stock effects until a mapping resolves them.
type TransactionItem struct {
	shared.BaseEntity
	TransactionID uuid.UUID
	ChannelSKU    *string
	Description   string
	Quantity      int
	UnitPrice     decimal.Decimal
	LineTotal     *decimal.Decimal // Nil when the report only carries unit price
	ProductID     *uuid.UUID
	SKUID         *uuid.UUID
	SourceRow     int // Original row number in the imported file
}

// NewTransactionItem creates a new item line
func NewTransactionItem(description string, quantity int, unitPrice decimal.Decimal) (*TransactionItem, error) {
	item := &TransactionItem{
		BaseEntity:  shared.NewBaseEntity(),
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// Validate checks the item invariants
func (i *TransactionItem) Validate() error {
	if i.Quantity < 1 {
		return shared.NewDomainError("INVALID_QUANTITY", "Item quantity must be at least 1")
	}
	return nil
}

// IsLinked returns true when the item resolves to an internal product or SKU
func (i *TransactionItem) IsLinked() bool {
	return i.ProductID != nil || i.SKUID != nil
}

// LinkProduct resolves the item to an internal product/SKU
func (i *TransactionItem) LinkProduct(productID uuid.UUID, skuID *uuid.UUID) {
	i.ProductID = &productID
	i.SKUID = skuID
	i.Touch()
}

// Revenue returns the item revenue: line total when present, otherwise
// unit price times quantity. The boolean reports whether revenue is known.
func (i *TransactionItem) Revenue() (decimal.Decimal, bool) {
	if i.LineTotal != nil {
		return *i.LineTotal, true
	}
	if i.UnitPrice.IsZero() {
		return decimal.Zero, false
	}
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))), true
}
