package reconciliation

import (
	"context"
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/google/uuid"
)

// TransactionFilter defines filter criteria for transaction queries
type TransactionFilter struct {
	Channel  *channel.Code
	Type     *TransactionType
	Status   *Status
	DateFrom *time.Time
	DateTo   *time.Time
	OrderID  *string
	Page     int
	PageSize int
}

// TransactionRepository defines persistence for the Transaction aggregate.
// Save must surface shared.ErrDuplicateKey on a natural-key collision so the
// caller can convert the insert into a merge.
type TransactionRepository interface {
	// FindByID finds a transaction (with items) by ID, scoped to a company
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Transaction, error)

	// FindByNaturalKey finds a transaction by its dedupe key
	FindByNaturalKey(ctx context.Context, key NaturalKey) (*Transaction, error)

	// FindAll finds transactions for a company with filtering
	FindAll(ctx context.Context, companyID uuid.UUID, filter TransactionFilter) ([]Transaction, error)

	// FindReconciledWithoutCMV returns reconciled transactions that have at
	// least one linked item without a CMV record, in reconciliation order
	FindReconciledWithoutCMV(ctx context.Context, companyID uuid.UUID, limit int) ([]Transaction, error)

	// CountReconciledWithoutCMV counts the attribution backlog so bulk
	// recompute can report progress against a known total
	CountReconciledWithoutCMV(ctx context.Context, companyID uuid.UUID) (int64, error)

	// CountByExternalReferences counts how many of the given external
	// references already exist for a company+channel (overlap detection)
	CountByExternalReferences(ctx context.Context, companyID uuid.UUID, ch channel.Code, refs []string) (int64, error)

	// RelinkItems resolves every historical unlinked item matching
	// (company, channel, channelSKU) to the given product/SKU.
	// Returns the number of items updated. Idempotent.
	RelinkItems(ctx context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string, productID uuid.UUID, skuID *uuid.UUID) (int64, error)

	// Save inserts a new transaction with its items
	Save(ctx context.Context, tx *Transaction) error

	// Update persists changes to an existing transaction and its items
	Update(ctx context.Context, tx *Transaction) error

	// ItemsWithoutCMV returns the linked items of a transaction that have no
	// CMV record yet
	ItemsWithoutCMV(ctx context.Context, transactionID uuid.UUID) ([]TransactionItem, error)
}
