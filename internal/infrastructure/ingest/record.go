package ingest

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordKind classifies what a report row represents. Sales reports carry
// only sales; settlement style reports mix sales with payouts, standalone
// fees and refunds, told apart by their operation-type column.
type RecordKind string

const (
	KindSale   RecordKind = "sale"
	KindPayout RecordKind = "payout"
	KindFee    RecordKind = "fee"
	KindRefund RecordKind = "refund"
)

// Record is the normalized output of parsing one report row: enough to build
// a transaction with its fee breakdown and, when the report carries SKU
// columns, one item line. Pointer fields stay nil when the report does not
// carry them so merge-fill downstream never overwrites data with blanks.
type Record struct {
	SourceRow   int
	Kind        RecordKind
	ExternalRef string
	OrderID     *string
	Date        *time.Time
	Description string
	StoreName   string
	Amount      decimal.Decimal

	Commission      *decimal.Decimal
	FixedFee        *decimal.Decimal
	ShippingCost    *decimal.Decimal
	AdsCost         *decimal.Decimal
	Tax             *decimal.Decimal
	OtherDeductions *decimal.Decimal

	// Item-level fields, only set when the file resolved a SKU column
	ChannelSKU *string
	Quantity   int
	UnitPrice  *decimal.Decimal
	LineTotal  *decimal.Decimal
}

// HasItem reports whether the row carried item-level granularity
func (r *Record) HasItem() bool {
	return r.ChannelSKU != nil && *r.ChannelSKU != ""
}

// ParseResult is the outcome of parsing a whole file: the normalized rows
// plus the accumulated row errors. Row errors never abort the parse.
type ParseResult struct {
	Records   []*Record
	Errors    *ErrorCollection
	TotalRows int
	// ItemLevel is true when a SKU column was found, meaning records carry
	// per-item granularity instead of transaction-level only.
	ItemLevel bool
}
