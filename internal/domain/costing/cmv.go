package costing

import (
	"context"
	"time"

	"github.com/ecomfin/backend/internal/domain/catalog"
	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/reconciliation"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CMVRecord is the cost-of-goods-sold attribution for a single sold line.
// At most one record exists per TransactionItem; the item id is the
// idempotence key checked before every insert.
type CMVRecord struct {
	shared.BaseEntity
	CompanyID     uuid.UUID
	ProductID     uuid.UUID
	ItemID        uuid.UUID // Originating TransactionItem
	TransactionID uuid.UUID
	Channel       channel.Code
	Date          time.Time
	Quantity      int
	UnitCost      decimal.Decimal
	TotalCost     decimal.Decimal
	UnitPrice     decimal.Decimal
	Revenue       *decimal.Decimal // Nil when the report carried no price
	GrossMargin   *decimal.Decimal // Nil when revenue is unknown
	MarginPercent *decimal.Decimal // Nil when revenue is unknown or zero
}

// Compute builds the CMV record for a linked item against its product.
// unit_cost = product.average_cost; total_cost = quantity * unit_cost;
// margin fields stay nil (not zero) when revenue is unknown.
func Compute(tx *reconciliation.Transaction, item *reconciliation.TransactionItem, product *catalog.Product) (*CMVRecord, error) {
	if item.ProductID == nil || *item.ProductID != product.ID {
		return nil, shared.NewDomainError("ITEM_NOT_LINKED", "Item is not linked to the given product")
	}

	qty := decimal.NewFromInt(int64(item.Quantity))
	unitCost := product.AverageCost
	totalCost := qty.Mul(unitCost)

	rec := &CMVRecord{
		BaseEntity:    shared.NewBaseEntity(),
		CompanyID:     tx.CompanyID,
		ProductID:     product.ID,
		ItemID:        item.ID,
		TransactionID: tx.ID,
		Channel:       tx.Channel,
		Date:          tx.TransactionDate,
		Quantity:      item.Quantity,
		UnitCost:      unitCost,
		TotalCost:     totalCost,
		UnitPrice:     item.UnitPrice,
	}

	if revenue, ok := item.Revenue(); ok {
		rec.Revenue = &revenue
		margin := revenue.Sub(totalCost)
		rec.GrossMargin = &margin
		if revenue.IsPositive() {
			pct := margin.Div(revenue).Mul(decimal.NewFromInt(100)).Round(2)
			rec.MarginPercent = &pct
		}
	}

	return rec, nil
}

// BatchOutcome accumulates the per-category counts of a bulk recompute run.
// Per-item failures are counted, never raised: the batch always completes.
type BatchOutcome struct {
	Processed int // Transactions visited
	Costed    int // Items that received a CMV record
	Unmapped  int // Items skipped for lack of a product link
	Skipped   int // Items already costed (idempotence guard hit)
	Errored   int // Items that failed with an unexpected error
}

// Add merges another outcome into this one
func (o *BatchOutcome) Add(other BatchOutcome) {
	o.Processed += other.Processed
	o.Costed += other.Costed
	o.Unmapped += other.Unmapped
	o.Skipped += other.Skipped
	o.Errored += other.Errored
}

// CMVRepository defines persistence for CMV records
type CMVRepository interface {
	// ExistsForItem reports whether the item already has a CMV record
	ExistsForItem(ctx context.Context, itemID uuid.UUID) (bool, error)

	// Save inserts a record; a duplicate item reference surfaces
	// shared.ErrDuplicateKey
	Save(ctx context.Context, rec *CMVRecord) error

	// DeleteByTransaction removes every record referencing any item of the
	// transaction (reopen/undo reversal)
	DeleteByTransaction(ctx context.Context, companyID, transactionID uuid.UUID) (int64, error)

	// SumByPeriod returns total CMV for a company within a date range
	SumByPeriod(ctx context.Context, companyID uuid.UUID, from, to time.Time) (decimal.Decimal, error)

	// FindByPeriod lists records for a company within a date range
	FindByPeriod(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]CMVRecord, error)
}
