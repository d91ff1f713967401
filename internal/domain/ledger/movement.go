package ledger

import (
	"context"
	"time"

	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Origin identifies the module that produced a financial movement
type Origin string

const (
	OriginManual      Origin = "MANUAL"
	OriginBank        Origin = "BANK"
	OriginCard        Origin = "CARD"
	OriginPayable     Origin = "PAYABLE"
	OriginReceivable  Origin = "RECEIVABLE"
	OriginMarketplace Origin = "MARKETPLACE"
)

// IsValid checks if the origin is valid
func (o Origin) IsValid() bool {
	switch o {
	case OriginManual, OriginBank, OriginCard, OriginPayable, OriginReceivable, OriginMarketplace:
		return true
	}
	return false
}

// Direction represents the monetary direction of a movement
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Movement is the uniform ledger row every cash- or accrual-relevant event
// becomes: manual entries, bank lines, card expenses, settled payables and
// receivables, marketplace sales and payouts. The (origin, external
// reference) pair is the upsert key that keeps writes from any origin
// module idempotent.
type Movement struct {
	shared.CompanyAggregateRoot
	Date            time.Time
	Direction       Direction
	Origin          Origin
	Regime          Regime
	Description     string
	Amount          decimal.Decimal
	ExternalRefID   *string // Links back to the origin record
	CategoryID      *uuid.UUID
	CategoryName    string
	CostCenterID    *uuid.UUID
	CostCenterName  string
	ResponsibleID   *uuid.UUID
	TransactionType string // Origin-specific type used by the regime classifier
}

// NewMovement creates a movement; the regime is always derived by the
// classifier, never supplied by the caller. This is what guarantees the
// cash/accrual partition by construction.
func NewMovement(
	companyID uuid.UUID,
	origin Origin,
	txType string,
	direction Direction,
	date time.Time,
	amount decimal.Decimal,
	description string,
) (*Movement, error) {
	if companyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COMPANY", "Company ID cannot be empty")
	}
	if !origin.IsValid() {
		return nil, shared.NewDomainError("INVALID_ORIGIN", "Movement origin is not valid")
	}
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIRECTION", "Movement direction is not valid")
	}
	if date.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Movement date is required")
	}

	return &Movement{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Date:                 date,
		Direction:            direction,
		Origin:               origin,
		Regime:               ClassifyRegime(origin, txType),
		Description:          description,
		Amount:               amount,
		TransactionType:      txType,
	}, nil
}

// AppearsInCashFlow reports whether the movement belongs to the cash view
func (m *Movement) AppearsInCashFlow() bool {
	return m.Regime == RegimeCash
}

// AppearsInDRE reports whether the movement belongs to the accrual/DRE view
func (m *Movement) AppearsInDRE() bool {
	return m.Regime == RegimeAccrual
}

// MovementFilter defines filter criteria for ledger queries
type MovementFilter struct {
	Regime   *Regime
	Origin   *Origin
	DateFrom *time.Time
	DateTo   *time.Time
}

// MovementRepository defines persistence for the ledger
type MovementRepository interface {
	// FindByOriginRef finds the movement upserted for an origin record
	FindByOriginRef(ctx context.Context, companyID uuid.UUID, origin Origin, externalRefID string) (*Movement, error)

	// FindAll lists movements for a company with filtering
	FindAll(ctx context.Context, companyID uuid.UUID, filter MovementFilter) ([]Movement, error)

	// Upsert writes the movement keyed on (company, origin, external ref);
	// movements without an external ref always insert
	Upsert(ctx context.Context, m *Movement) error

	// DeleteByOriginRef removes the movement for an origin record (reopen)
	DeleteByOriginRef(ctx context.Context, companyID uuid.UUID, origin Origin, externalRefID string) error
}
