package reconciliation

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecomfin/backend/internal/domain/catalog"
	"github.com/ecomfin/backend/internal/domain/costing"
	"github.com/ecomfin/backend/internal/domain/ledger"
	"github.com/ecomfin/backend/internal/domain/reconciliation"
)

// CMVAttributor computes cost of goods sold for a reconciled transaction.
// Implemented by the costing service.
type CMVAttributor interface {
	AttributeTransaction(ctx context.Context, tx *reconciliation.Transaction) (costing.BatchOutcome, error)
}

// StockIssue reports one product that cannot cover the quantity a
// reconciliation would consume
type StockIssue struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Available   int       `json:"estoque_disponivel"`
	Requested   int       `json:"quantidade_solicitada"`
}

// ReconcileResult is the outcome of a reconcile attempt. When stock cannot
// cover the sold quantities the attempt is rejected with Valid=false and
// the per-product shortfalls; nothing is persisted in that case.
type ReconcileResult struct {
	Valid       bool                        `json:"valido"`
	Issues      []StockIssue                `json:"issues,omitempty"`
	Transaction *reconciliation.Transaction `json:"transaction,omitempty"`
	CMV         costing.BatchOutcome        `json:"cmv"`
}

// ReconciliationService drives the transaction status state machine and the
// side effects hanging off it: stock consumption, the ledger movement and
// CMV attribution on reconcile, and their full reversal on reopen.
type ReconciliationService struct {
	txRepo       reconciliation.TransactionRepository
	productRepo  catalog.ProductRepository
	cmvRepo      costing.CMVRepository
	movementRepo ledger.MovementRepository
	attributor   CMVAttributor
	logger       *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	txRepo reconciliation.TransactionRepository,
	productRepo catalog.ProductRepository,
	cmvRepo costing.CMVRepository,
	movementRepo ledger.MovementRepository,
	attributor CMVAttributor,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		txRepo:       txRepo,
		productRepo:  productRepo,
		cmvRepo:      cmvRepo,
		movementRepo: movementRepo,
		attributor:   attributor,
		logger:       logger,
	}
}

// List returns transactions for a company with filtering
func (s *ReconciliationService) List(ctx context.Context, companyID uuid.UUID, filter reconciliation.TransactionFilter) ([]reconciliation.Transaction, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	return s.txRepo.FindAll(ctx, companyID, filter)
}

// Get returns one transaction with its items
func (s *ReconciliationService) Get(ctx context.Context, companyID, txID uuid.UUID) (*reconciliation.Transaction, error) {
	return s.txRepo.FindByID(ctx, companyID, txID)
}

// Reconcile assigns a category and cost center, validates stock for every
// linked item, consumes it, routes the ledger movement and attributes CMV.
// Insufficient stock rejects the whole attempt without persisting anything.
func (s *ReconciliationService) Reconcile(
	ctx context.Context,
	companyID, txID, categoryID uuid.UUID,
	categoryName string,
	costCenterID *uuid.UUID,
) (*ReconcileResult, error) {
	tx, err := s.txRepo.FindByID(ctx, companyID, txID)
	if err != nil {
		return nil, err
	}

	products, issues, err := s.validateStock(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		return &ReconcileResult{Valid: false, Issues: issues}, nil
	}

	if err := tx.Reconcile(categoryID, costCenterID); err != nil {
		return nil, err
	}

	for _, item := range tx.LinkedItems() {
		product := products[*item.ProductID]
		if err := product.ConsumeStock(item.Quantity); err != nil {
			return nil, err
		}
		if err := s.productRepo.Update(ctx, product); err != nil {
			return nil, err
		}
	}

	if err := s.upsertMovement(ctx, tx, categoryID, categoryName, costCenterID); err != nil {
		return nil, err
	}
	if err := s.txRepo.Update(ctx, tx); err != nil {
		return nil, err
	}

	outcome, err := s.attributor.AttributeTransaction(ctx, tx)
	if err != nil {
		s.logger.Error("CMV attribution failed after reconcile",
			zap.String("transaction_id", tx.ID.String()), zap.Error(err))
	}

	s.logger.Info("transaction reconciled",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("category_id", categoryID.String()),
		zap.Int("items_costed", outcome.Costed))

	return &ReconcileResult{Valid: true, Transaction: tx, CMV: outcome}, nil
}

// Reopen reverts a reconciled or ignored transaction to pending, removing
// the derived CMV rows and ledger movement and restoring consumed stock.
func (s *ReconciliationService) Reopen(ctx context.Context, companyID, txID uuid.UUID) (*reconciliation.Transaction, error) {
	tx, err := s.txRepo.FindByID(ctx, companyID, txID)
	if err != nil {
		return nil, err
	}

	wasReconciled := tx.Status == reconciliation.StatusReconciled
	if err := tx.Reopen(); err != nil {
		return nil, err
	}
	if wasReconciled {
		if err := s.reverseSideEffects(ctx, tx); err != nil {
			return nil, err
		}
	}
	if err := s.txRepo.Update(ctx, tx); err != nil {
		return nil, err
	}

	s.logger.Info("transaction reopened", zap.String("transaction_id", tx.ID.String()))
	return tx, nil
}

// Ignore excludes a transaction from reporting. Ignoring a reconciled
// transaction also reverses its side effects, since an ignored event must
// not leave ledger rows or CMV behind.
func (s *ReconciliationService) Ignore(ctx context.Context, companyID, txID uuid.UUID) (*reconciliation.Transaction, error) {
	tx, err := s.txRepo.FindByID(ctx, companyID, txID)
	if err != nil {
		return nil, err
	}

	wasReconciled := tx.Status == reconciliation.StatusReconciled
	if err := tx.Ignore(); err != nil {
		return nil, err
	}
	if wasReconciled {
		if err := s.reverseSideEffects(ctx, tx); err != nil {
			return nil, err
		}
	}
	if err := s.txRepo.Update(ctx, tx); err != nil {
		return nil, err
	}

	s.logger.Info("transaction ignored", zap.String("transaction_id", tx.ID.String()))
	return tx, nil
}

// validateStock checks that every linked item's product covers its quantity,
// returning the loaded products for stock consumption on success
func (s *ReconciliationService) validateStock(ctx context.Context, tx *reconciliation.Transaction) (map[uuid.UUID]*catalog.Product, []StockIssue, error) {
	linked := tx.LinkedItems()
	if len(linked) == 0 {
		return nil, nil, nil
	}

	ids := make([]uuid.UUID, 0, len(linked))
	requested := make(map[uuid.UUID]int)
	for _, item := range linked {
		if requested[*item.ProductID] == 0 {
			ids = append(ids, *item.ProductID)
		}
		requested[*item.ProductID] += item.Quantity
	}

	products, err := s.productRepo.FindByIDs(ctx, tx.CompanyID, ids)
	if err != nil {
		return nil, nil, err
	}

	var issues []StockIssue
	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			issues = append(issues, StockIssue{ProductID: id, Requested: requested[id]})
			continue
		}
		if !product.HasStock(requested[id]) {
			issues = append(issues, StockIssue{
				ProductID:   id,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   requested[id],
			})
		}
	}
	return products, issues, nil
}

// upsertMovement routes the reconciled transaction into the ledger. The
// regime falls out of the classifier: sales land on accrual, payouts and
// fees on cash. Keyed on the transaction id so re-reconciling updates the
// same row.
func (s *ReconciliationService) upsertMovement(
	ctx context.Context,
	tx *reconciliation.Transaction,
	categoryID uuid.UUID,
	categoryName string,
	costCenterID *uuid.UUID,
) error {
	direction := ledger.DirectionIn
	if tx.Direction == reconciliation.DirectionDebit {
		direction = ledger.DirectionOut
	}

	description := string(tx.Channel)
	if tx.OrderID != nil {
		description = description + " " + *tx.OrderID
	}

	movement, err := ledger.NewMovement(tx.CompanyID, ledger.OriginMarketplace,
		movementTxType(tx.Type), direction, tx.TransactionDate, tx.NetAmount, description)
	if err != nil {
		return err
	}

	refID := tx.ID.String()
	movement.ExternalRefID = &refID
	movement.CategoryID = &categoryID
	movement.CategoryName = categoryName
	movement.CostCenterID = costCenterID

	return s.movementRepo.Upsert(ctx, movement)
}

// reverseSideEffects removes the CMV rows and ledger movement derived from
// a reconciliation and restores the stock it consumed. All three steps are
// idempotent deletes or additive restores scoped to this transaction.
func (s *ReconciliationService) reverseSideEffects(ctx context.Context, tx *reconciliation.Transaction) error {
	removed, err := s.cmvRepo.DeleteByTransaction(ctx, tx.CompanyID, tx.ID)
	if err != nil {
		return err
	}

	if err := s.movementRepo.DeleteByOriginRef(ctx, tx.CompanyID, ledger.OriginMarketplace, tx.ID.String()); err != nil {
		return err
	}

	for _, item := range tx.LinkedItems() {
		product, err := s.productRepo.FindByID(ctx, tx.CompanyID, *item.ProductID)
		if err != nil {
			return err
		}
		product.RestoreStock(item.Quantity)
		if err := s.productRepo.Update(ctx, product); err != nil {
			return err
		}
	}

	s.logger.Info("reconciliation side effects reversed",
		zap.String("transaction_id", tx.ID.String()),
		zap.Int64("cmv_rows_removed", removed))
	return nil
}

// movementTxType maps the transaction type onto the regime classifier's
// vocabulary
func movementTxType(t reconciliation.TransactionType) string {
	switch t {
	case reconciliation.TypeSale:
		return ledger.TxTypeSale
	case reconciliation.TypePayout:
		return ledger.TxTypePayout
	case reconciliation.TypeFee:
		return "fee"
	case reconciliation.TypeRefund:
		return "refund"
	default:
		return string(t)
	}
}
