package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ecomfin/backend/internal/domain/shared"
)

// TitleKind separates receivable from payable titles
type TitleKind string

const (
	TitleReceivable TitleKind = "RECEIVABLE"
	TitlePayable    TitleKind = "PAYABLE"
)

// IsValid checks if the kind is valid
func (k TitleKind) IsValid() bool {
	return k == TitleReceivable || k == TitlePayable
}

// Title is an accounts receivable or payable installment. Open titles feed
// the aging report; settling one is the cash event that reaches the ledger.
type Title struct {
	shared.CompanyAggregateRoot
	Kind        TitleKind
	ClientName  string // Customer or supplier
	Description string
	DueDate     time.Time
	Amount      decimal.Decimal
	Status      OpenItemStatus
	SettledAt   *time.Time
}

// NewTitle creates an open title
func NewTitle(companyID uuid.UUID, kind TitleKind, clientName string, dueDate time.Time, amount decimal.Decimal) (*Title, error) {
	if companyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COMPANY", "Company ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Title kind is not valid")
	}
	if clientName == "" {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client name is required")
	}
	if dueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_DUE_DATE", "Due date is required")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Title amount must be positive")
	}
	return &Title{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Kind:                 kind,
		ClientName:           clientName,
		DueDate:              dueDate,
		Amount:               amount,
		Status:               OpenItemOpen,
	}, nil
}

// Settle marks the title as paid on the given date
func (t *Title) Settle(at time.Time) error {
	if t.Status != OpenItemOpen {
		return shared.NewDomainError("INVALID_STATE", "Only open titles can be settled")
	}
	t.Status = OpenItemPaid
	t.SettledAt = &at
	t.Touch()
	t.IncrementVersion()
	return nil
}

// Cancel voids an open title
func (t *Title) Cancel() error {
	if t.Status != OpenItemOpen {
		return shared.NewDomainError("INVALID_STATE", "Only open titles can be cancelled")
	}
	t.Status = OpenItemCancelled
	t.Touch()
	t.IncrementVersion()
	return nil
}

// Reopen reverts a settled title to open, for undoing a wrong settlement
func (t *Title) Reopen() error {
	if t.Status != OpenItemPaid {
		return shared.NewDomainError("INVALID_STATE", "Only settled titles can be reopened")
	}
	t.Status = OpenItemOpen
	t.SettledAt = nil
	t.Touch()
	t.IncrementVersion()
	return nil
}

// OpenItem projects the title into the aging report input
func (t *Title) OpenItem() OpenItem {
	return OpenItem{
		ClientName: t.ClientName,
		DueDate:    t.DueDate,
		Amount:     t.Amount,
		Status:     t.Status,
	}
}

// TitleRepository defines persistence for titles
type TitleRepository interface {
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Title, error)
	FindByKind(ctx context.Context, companyID uuid.UUID, kind TitleKind) ([]Title, error)
	Save(ctx context.Context, t *Title) error
	Update(ctx context.Context, t *Title) error
}
