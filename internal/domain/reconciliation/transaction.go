package reconciliation

import (
	"fmt"
	"strings"
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of sales-channel event
type TransactionType string

const (
	TypeSale   TransactionType = "SALE"   // A sale recognized at order time
	TypePayout TransactionType = "PAYOUT" // A settlement/transfer from the marketplace
	TypeFee    TransactionType = "FEE"    // A standalone fee charged by the channel
	TypeRefund TransactionType = "REFUND" // A refund issued to the buyer
)

// IsValid checks if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TypeSale, TypePayout, TypeFee, TypeRefund:
		return true
	}
	return false
}

// Direction represents the monetary direction of a transaction
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Status represents the reconciliation status of a transaction
type Status string

const (
	StatusImported   Status = "IMPORTED"   // Freshly ingested, untouched
	StatusPending    Status = "PENDING"    // Awaiting categorization
	StatusReconciled Status = "RECONCILED" // Category/cost-center confirmed
	StatusIgnored    Status = "IGNORED"    // Excluded from reporting
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusImported, StatusPending, StatusReconciled, StatusIgnored:
		return true
	}
	return false
}

// CanReconcile returns true if the transaction can be reconciled in this status
func (s Status) CanReconcile() bool {
	return s == StatusImported || s == StatusPending
}

// NaturalKey is the business key that detects duplicate transactions across
// imports. Re-importing a report must never create a second row with the
// same key.
type NaturalKey struct {
	CompanyID         uuid.UUID
	Channel           channel.Code
	ExternalReference string
	Type              TransactionType
	Direction         Direction
}

// String returns the canonical string form of the natural key
func (k NaturalKey) String() string {
	return strings.Join([]string{
		k.CompanyID.String(),
		string(k.Channel),
		k.ExternalReference,
		string(k.Type),
		string(k.Direction),
	}, "|")
}

// IsZero returns true if the key has no external reference to match on
func (k NaturalKey) IsZero() bool {
	return k.ExternalReference == ""
}

// FeeBreakdown holds the channel deductions attached to a transaction.
// All fields are nullable: a report that does not carry a column leaves the
// field nil, and a later report may fill it in via MergeFill.
type FeeBreakdown struct {
	Commission      *decimal.Decimal `json:"commission"`
	FixedFee        *decimal.Decimal `json:"fixed_fee"`
	ShippingCost    *decimal.Decimal `json:"shipping_cost"` // Borne by the seller
	AdsCost         *decimal.Decimal `json:"ads_cost"`
	Tax             *decimal.Decimal `json:"tax"`
	OtherDeductions *decimal.Decimal `json:"other_deductions"`
}

// Total sums the known deductions, treating nil as zero
func (f FeeBreakdown) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range []*decimal.Decimal{f.Commission, f.FixedFee, f.ShippingCost, f.AdsCost, f.Tax, f.OtherDeductions} {
		if v != nil {
			total = total.Add(*v)
		}
	}
	return total
}

// Transaction is the aggregate root for a sales-channel event: a sale, a
// payout or a fee. It owns its items and the merge-fill semantics that keep
// overlapping report imports idempotent.
type Transaction struct {
	shared.CompanyAggregateRoot
	Channel           channel.Code
	ExternalReference *string
	OrderID           *string
	Type              TransactionType
	Direction         Direction
	TransactionDate   time.Time
	PostingDate       *time.Time // Payout/settlement date when known
	GrossAmount       decimal.Decimal
	NetAmount         decimal.Decimal
	Fees              FeeBreakdown
	Status            Status
	CategoryID        *uuid.UUID
	CostCenterID      *uuid.UUID
	AccountLabel      *string // Store/account name as reported by the channel
	ShipmentType      *string
	SourceRow         int // Original row number in the imported file, 0 for API sources
	Items             []TransactionItem
	ReconciledAt      *time.Time
}

// NewTransaction creates a new transaction in IMPORTED status
func NewTransaction(
	companyID uuid.UUID,
	ch channel.Code,
	txType TransactionType,
	direction Direction,
	date time.Time,
	gross, net decimal.Decimal,
) (*Transaction, error) {
	if companyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COMPANY", "Company ID cannot be empty")
	}
	if !ch.IsValid() {
		return nil, shared.NewDomainError("INVALID_CHANNEL", fmt.Sprintf("Unknown channel %q", ch))
	}
	if !txType.IsValid() {
		return nil, shared.NewDomainError("INVALID_TYPE", fmt.Sprintf("Unknown transaction type %q", txType))
	}
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIRECTION", fmt.Sprintf("Unknown direction %q", direction))
	}
	if date.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Transaction date is required")
	}

	return &Transaction{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Channel:              ch,
		Type:                 txType,
		Direction:            direction,
		TransactionDate:      date,
		GrossAmount:          gross,
		NetAmount:            net,
		Status:               StatusImported,
		Items:                make([]TransactionItem, 0),
	}, nil
}

// NaturalKey returns the dedupe key, or a zero key when the transaction has
// no channel-native reference (manual entries cannot be deduplicated).
func (t *Transaction) NaturalKey() NaturalKey {
	key := NaturalKey{
		CompanyID: t.CompanyID,
		Channel:   t.Channel,
		Type:      t.Type,
		Direction: t.Direction,
	}
	if t.ExternalReference != nil {
		key.ExternalReference = *t.ExternalReference
	}
	return key
}

// AddItem appends an item line to the transaction
func (t *Transaction) AddItem(item TransactionItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	item.TransactionID = t.ID
	t.Items = append(t.Items, item)
	return nil
}

// MergeFill applies the merge-fill policy: every complementary field from
// incoming overwrites the receiver only when the incoming value is non-nil.
// Fields already populated are never nulled out by a later partial report;
// conflicting non-nil values resolve to the most recent import (incoming).
// It returns the number of fields that changed.
func (t *Transaction) MergeFill(incoming *Transaction) int {
	changed := 0

	fillDec := func(dst **decimal.Decimal, src *decimal.Decimal) {
		if src != nil {
			if *dst == nil || !(*dst).Equal(*src) {
				changed++
			}
			v := *src
			*dst = &v
		}
	}
	fillStr := func(dst **string, src *string) {
		if src != nil && *src != "" {
			if *dst == nil || **dst != *src {
				changed++
			}
			v := *src
			*dst = &v
		}
	}

	fillDec(&t.Fees.Commission, incoming.Fees.Commission)
	fillDec(&t.Fees.FixedFee, incoming.Fees.FixedFee)
	fillDec(&t.Fees.ShippingCost, incoming.Fees.ShippingCost)
	fillDec(&t.Fees.AdsCost, incoming.Fees.AdsCost)
	fillDec(&t.Fees.Tax, incoming.Fees.Tax)
	fillDec(&t.Fees.OtherDeductions, incoming.Fees.OtherDeductions)
	fillStr(&t.AccountLabel, incoming.AccountLabel)
	fillStr(&t.ShipmentType, incoming.ShipmentType)
	fillStr(&t.OrderID, incoming.OrderID)

	if incoming.PostingDate != nil {
		if t.PostingDate == nil || !t.PostingDate.Equal(*incoming.PostingDate) {
			changed++
		}
		v := *incoming.PostingDate
		t.PostingDate = &v
	}

	// Amounts are complementary too: a zero amount from a partial report
	// never clobbers a known amount.
	if !incoming.GrossAmount.IsZero() && !t.GrossAmount.Equal(incoming.GrossAmount) {
		t.GrossAmount = incoming.GrossAmount
		changed++
	}
	if !incoming.NetAmount.IsZero() && !t.NetAmount.Equal(incoming.NetAmount) {
		t.NetAmount = incoming.NetAmount
		changed++
	}

	if changed > 0 {
		t.UpdatedAt = time.Now()
		t.IncrementVersion()
	}
	return changed
}

// Reconcile assigns a category and cost center and marks the transaction as
// reconciled, making it eligible for regime routing and CMV attribution.
func (t *Transaction) Reconcile(categoryID uuid.UUID, costCenterID *uuid.UUID) error {
	if !t.Status.CanReconcile() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot reconcile transaction in %s status", t.Status))
	}
	if categoryID == uuid.Nil {
		return shared.NewDomainError("INVALID_CATEGORY", "Category ID is required to reconcile")
	}

	now := time.Now()
	t.CategoryID = &categoryID
	t.CostCenterID = costCenterID
	t.Status = StatusReconciled
	t.ReconciledAt = &now
	t.UpdatedAt = now
	t.IncrementVersion()
	return nil
}

// Reopen reverts a reconciled or ignored transaction back to PENDING.
// The caller is responsible for reversing derived CMV rows and ledger
// movements (see costing and ledger services).
func (t *Transaction) Reopen() error {
	if t.Status != StatusReconciled && t.Status != StatusIgnored {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot reopen transaction in %s status", t.Status))
	}
	t.Status = StatusPending
	t.ReconciledAt = nil
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
	return nil
}

// Ignore marks the transaction as excluded from reporting. Terminal unless
// explicitly reopened.
func (t *Transaction) Ignore() error {
	if t.Status == StatusIgnored {
		return nil
	}
	if t.Status != StatusImported && t.Status != StatusPending && t.Status != StatusReconciled {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot ignore transaction in %s status", t.Status))
	}
	t.Status = StatusIgnored
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
	return nil
}

// IsReconciled returns true if the transaction has been reconciled
func (t *Transaction) IsReconciled() bool {
	return t.Status == StatusReconciled
}

// LinkedItems returns the items resolved to an internal product or SKU
func (t *Transaction) LinkedItems() []TransactionItem {
	linked := make([]TransactionItem, 0, len(t.Items))
	for _, item := range t.Items {
		if item.IsLinked() {
			linked = append(linked, item)
		}
	}
	return linked
}
