package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecomfin/backend/internal/domain/catalog"
	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/costing"
	"github.com/ecomfin/backend/internal/domain/ledger"
	"github.com/ecomfin/backend/internal/domain/reconciliation"
	"github.com/ecomfin/backend/internal/domain/shared"
)

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*reconciliation.Transaction, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByNaturalKey(ctx context.Context, key reconciliation.NaturalKey) (*reconciliation.Transaction, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindAll(ctx context.Context, companyID uuid.UUID, filter reconciliation.TransactionFilter) ([]reconciliation.Transaction, error) {
	args := m.Called(ctx, companyID, filter)
	return args.Get(0).([]reconciliation.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindReconciledWithoutCMV(ctx context.Context, companyID uuid.UUID, limit int) ([]reconciliation.Transaction, error) {
	args := m.Called(ctx, companyID, limit)
	return args.Get(0).([]reconciliation.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) CountReconciledWithoutCMV(ctx context.Context, companyID uuid.UUID) (int64, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) CountByExternalReferences(ctx context.Context, companyID uuid.UUID, ch channel.Code, refs []string) (int64, error) {
	args := m.Called(ctx, companyID, ch, refs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) RelinkItems(ctx context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string, productID uuid.UUID, skuID *uuid.UUID) (int64, error) {
	args := m.Called(ctx, companyID, ch, channelSKU, productID, skuID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) Save(ctx context.Context, tx *reconciliation.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx *reconciliation.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) ItemsWithoutCMV(ctx context.Context, transactionID uuid.UUID) ([]reconciliation.TransactionItem, error) {
	args := m.Called(ctx, transactionID)
	return args.Get(0).([]reconciliation.TransactionItem), args.Error(1)
}

// MockProductRepository is a mock implementation of ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*catalog.Product, error) {
	args := m.Called(ctx, companyID, ids)
	return args.Get(0).(map[uuid.UUID]*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindAll(ctx context.Context, companyID uuid.UUID) ([]catalog.Product, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) Save(ctx context.Context, p *catalog.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, p *catalog.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// MockCMVRepository is a mock implementation of CMVRepository
type MockCMVRepository struct {
	mock.Mock
}

func (m *MockCMVRepository) ExistsForItem(ctx context.Context, itemID uuid.UUID) (bool, error) {
	args := m.Called(ctx, itemID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCMVRepository) Save(ctx context.Context, rec *costing.CMVRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockCMVRepository) DeleteByTransaction(ctx context.Context, companyID, transactionID uuid.UUID) (int64, error) {
	args := m.Called(ctx, companyID, transactionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCMVRepository) SumByPeriod(ctx context.Context, companyID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, companyID, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockCMVRepository) FindByPeriod(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]costing.CMVRecord, error) {
	args := m.Called(ctx, companyID, from, to)
	return args.Get(0).([]costing.CMVRecord), args.Error(1)
}

// MockMovementRepository is a mock implementation of MovementRepository
type MockMovementRepository struct {
	mock.Mock
}

func (m *MockMovementRepository) FindByOriginRef(ctx context.Context, companyID uuid.UUID, origin ledger.Origin, externalRefID string) (*ledger.Movement, error) {
	args := m.Called(ctx, companyID, origin, externalRefID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Movement), args.Error(1)
}

func (m *MockMovementRepository) FindAll(ctx context.Context, companyID uuid.UUID, filter ledger.MovementFilter) ([]ledger.Movement, error) {
	args := m.Called(ctx, companyID, filter)
	return args.Get(0).([]ledger.Movement), args.Error(1)
}

func (m *MockMovementRepository) Upsert(ctx context.Context, movement *ledger.Movement) error {
	args := m.Called(ctx, movement)
	return args.Error(0)
}

func (m *MockMovementRepository) DeleteByOriginRef(ctx context.Context, companyID uuid.UUID, origin ledger.Origin, externalRefID string) error {
	args := m.Called(ctx, companyID, origin, externalRefID)
	return args.Error(0)
}

// MockCMVAttributor is a mock implementation of CMVAttributor
type MockCMVAttributor struct {
	mock.Mock
}

func (m *MockCMVAttributor) AttributeTransaction(ctx context.Context, tx *reconciliation.Transaction) (costing.BatchOutcome, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(costing.BatchOutcome), args.Error(1)
}

type reconcileFixture struct {
	txRepo       *MockTransactionRepository
	productRepo  *MockProductRepository
	cmvRepo      *MockCMVRepository
	movementRepo *MockMovementRepository
	attributor   *MockCMVAttributor
	service      *ReconciliationService
}

func newReconcileFixture() *reconcileFixture {
	f := &reconcileFixture{
		txRepo:       new(MockTransactionRepository),
		productRepo:  new(MockProductRepository),
		cmvRepo:      new(MockCMVRepository),
		movementRepo: new(MockMovementRepository),
		attributor:   new(MockCMVAttributor),
	}
	f.service = NewReconciliationService(f.txRepo, f.productRepo, f.cmvRepo, f.movementRepo, f.attributor, zap.NewNop())
	return f
}

func importedSale(t *testing.T, companyID uuid.UUID) *reconciliation.Transaction {
	t.Helper()
	tx, err := reconciliation.NewTransaction(companyID, channel.CodeMercadoLivre,
		reconciliation.TypeSale, reconciliation.DirectionCredit,
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		decimal.RequireFromString("100.00"), decimal.RequireFromString("85.00"))
	require.NoError(t, err)
	ref := "1001"
	tx.ExternalReference = &ref
	orderID := "ORD-1001"
	tx.OrderID = &orderID
	return tx
}

func linkedItem(t *testing.T, productID uuid.UUID, qty int) reconciliation.TransactionItem {
	t.Helper()
	item, err := reconciliation.NewTransactionItem("Fone Bluetooth", qty, decimal.RequireFromString("50.00"))
	require.NoError(t, err)
	item.LinkProduct(productID, nil)
	return *item
}

func TestReconcile_ConsumesStockAndRoutesLedger(t *testing.T) {
	f := newReconcileFixture()
	companyID := uuid.New()
	categoryID := uuid.New()

	product, err := catalog.NewProduct(companyID, "Fone Bluetooth", "FONE-01", decimal.RequireFromString("20.00"), 10)
	require.NoError(t, err)

	tx := importedSale(t, companyID)
	require.NoError(t, tx.AddItem(linkedItem(t, product.ID, 2)))

	f.txRepo.On("FindByID", mock.Anything, companyID, tx.ID).Return(tx, nil)
	f.productRepo.On("FindByIDs", mock.Anything, companyID, []uuid.UUID{product.ID}).
		Return(map[uuid.UUID]*catalog.Product{product.ID: product}, nil)
	f.productRepo.On("Update", mock.Anything, product).Return(nil)
	f.movementRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(m *ledger.Movement) bool {
		return m.Origin == ledger.OriginMarketplace &&
			m.Regime == ledger.RegimeAccrual &&
			m.Amount.Equal(decimal.RequireFromString("85.00")) &&
			m.ExternalRefID != nil && *m.ExternalRefID == tx.ID.String() &&
			m.CategoryName == "Vendas"
	})).Return(nil)
	f.txRepo.On("Update", mock.Anything, tx).Return(nil)
	f.attributor.On("AttributeTransaction", mock.Anything, tx).
		Return(costing.BatchOutcome{Processed: 1, Costed: 1}, nil)

	result, err := f.service.Reconcile(context.Background(), companyID, tx.ID, categoryID, "Vendas", nil)

	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, reconciliation.StatusReconciled, tx.Status)
	assert.Equal(t, 8, product.Stock)
	assert.Equal(t, 1, result.CMV.Costed)
	f.movementRepo.AssertExpectations(t)
}

func TestReconcile_InsufficientStockRejectsWithoutPersisting(t *testing.T) {
	f := newReconcileFixture()
	companyID := uuid.New()

	product, err := catalog.NewProduct(companyID, "Fone Bluetooth", "FONE-01", decimal.RequireFromString("20.00"), 1)
	require.NoError(t, err)

	tx := importedSale(t, companyID)
	require.NoError(t, tx.AddItem(linkedItem(t, product.ID, 3)))

	f.txRepo.On("FindByID", mock.Anything, companyID, tx.ID).Return(tx, nil)
	f.productRepo.On("FindByIDs", mock.Anything, companyID, []uuid.UUID{product.ID}).
		Return(map[uuid.UUID]*catalog.Product{product.ID: product}, nil)

	result, err := f.service.Reconcile(context.Background(), companyID, tx.ID, uuid.New(), "Vendas", nil)

	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, 1, result.Issues[0].Available)
	assert.Equal(t, 3, result.Issues[0].Requested)
	assert.Equal(t, reconciliation.StatusImported, tx.Status)
	assert.Equal(t, 1, product.Stock)
	f.txRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.movementRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestReconcile_AggregatesQuantityAcrossItems(t *testing.T) {
	f := newReconcileFixture()
	companyID := uuid.New()

	// Two item lines of the same product: 2 + 2 sold against 3 in stock.
	product, err := catalog.NewProduct(companyID, "Fone Bluetooth", "FONE-01", decimal.RequireFromString("20.00"), 3)
	require.NoError(t, err)

	tx := importedSale(t, companyID)
	require.NoError(t, tx.AddItem(linkedItem(t, product.ID, 2)))
	require.NoError(t, tx.AddItem(linkedItem(t, product.ID, 2)))

	f.txRepo.On("FindByID", mock.Anything, companyID, tx.ID).Return(tx, nil)
	f.productRepo.On("FindByIDs", mock.Anything, companyID, []uuid.UUID{product.ID}).
		Return(map[uuid.UUID]*catalog.Product{product.ID: product}, nil)

	result, err := f.service.Reconcile(context.Background(), companyID, tx.ID, uuid.New(), "Vendas", nil)

	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, 4, result.Issues[0].Requested)
}

func TestReconcile_PayoutLandsOnCashRegime(t *testing.T) {
	f := newReconcileFixture()
	companyID := uuid.New()

	tx, err := reconciliation.NewTransaction(companyID, channel.CodeMercadoLivre,
		reconciliation.TypePayout, reconciliation.DirectionCredit,
		time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		decimal.RequireFromString("500.00"), decimal.RequireFromString("500.00"))
	require.NoError(t, err)

	f.txRepo.On("FindByID", mock.Anything, companyID, tx.ID).Return(tx, nil)
	f.movementRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(m *ledger.Movement) bool {
		return m.Regime == ledger.RegimeCash
	})).Return(nil)
	f.txRepo.On("Update", mock.Anything, tx).Return(nil)
	f.attributor.On("AttributeTransaction", mock.Anything, tx).
		Return(costing.BatchOutcome{Processed: 1}, nil)

	result, err := f.service.Reconcile(context.Background(), companyID, tx.ID, uuid.New(), "Repasses", nil)

	require.NoError(t, err)
	assert.True(t, result.Valid)
	f.movementRepo.AssertExpectations(t)
}

func TestReopen_ReversesReconciledSideEffects(t *testing.T) {
	f := newReconcileFixture()
	companyID := uuid.New()

	product, err := catalog.NewProduct(companyID, "Fone Bluetooth", "FONE-01", decimal.RequireFromString("20.00"), 8)
	require.NoError(t, err)

	tx := importedSale(t, companyID)
	require.NoError(t, tx.AddItem(linkedItem(t, product.ID, 2)))
	require.NoError(t, tx.Reconcile(uuid.New(), nil))

	f.txRepo.On("FindByID", mock.Anything, companyID, tx.ID).Return(tx, nil)
	f.cmvRepo.On("DeleteByTransaction", mock.Anything, companyID, tx.ID).Return(int64(1), nil)
	f.movementRepo.On("DeleteByOriginRef", mock.Anything, companyID, ledger.OriginMarketplace, tx.ID.String()).Return(nil)
	f.productRepo.On("FindByID", mock.Anything, companyID, product.ID).Return(product, nil)
	f.productRepo.On("Update", mock.Anything, product).Return(nil)
	f.txRepo.On("Update", mock.Anything, tx).Return(nil)

	reopened, err := f.service.Reopen(context.Background(), companyID, tx.ID)

	require.NoError(t, err)
	assert.Equal(t, reconciliation.StatusPending, reopened.Status)
	assert.Equal(t, 10, product.Stock)
	f.cmvRepo.AssertExpectations(t)
	f.movementRepo.AssertExpectations(t)
}

func TestReopen_FromIgnoredReversesNothing(t *testing.T) {
	f := newReconcileFixture()
	companyID := uuid.New()

	// Ignoring a reconciled transaction already reversed its side effects;
	// reopening it afterwards must not restore stock a second time.
	tx := importedSale(t, companyID)
	require.NoError(t, tx.Ignore())

	f.txRepo.On("FindByID", mock.Anything, companyID, tx.ID).Return(tx, nil)
	f.txRepo.On("Update", mock.Anything, tx).Return(nil)

	reopened, err := f.service.Reopen(context.Background(), companyID, tx.ID)

	require.NoError(t, err)
	assert.Equal(t, reconciliation.StatusPending, reopened.Status)
	f.cmvRepo.AssertNotCalled(t, "DeleteByTransaction", mock.Anything, mock.Anything, mock.Anything)
	f.movementRepo.AssertNotCalled(t, "DeleteByOriginRef", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIgnore_ReconciledTransactionReversesSideEffects(t *testing.T) {
	f := newReconcileFixture()
	companyID := uuid.New()

	tx := importedSale(t, companyID)
	require.NoError(t, tx.Reconcile(uuid.New(), nil))

	f.txRepo.On("FindByID", mock.Anything, companyID, tx.ID).Return(tx, nil)
	f.cmvRepo.On("DeleteByTransaction", mock.Anything, companyID, tx.ID).Return(int64(0), nil)
	f.movementRepo.On("DeleteByOriginRef", mock.Anything, companyID, ledger.OriginMarketplace, tx.ID.String()).Return(nil)
	f.txRepo.On("Update", mock.Anything, tx).Return(nil)

	ignored, err := f.service.Ignore(context.Background(), companyID, tx.ID)

	require.NoError(t, err)
	assert.Equal(t, reconciliation.StatusIgnored, ignored.Status)
	f.movementRepo.AssertExpectations(t)
}

func TestIgnore_ImportedTransactionHasNothingToReverse(t *testing.T) {
	f := newReconcileFixture()
	companyID := uuid.New()

	tx := importedSale(t, companyID)

	f.txRepo.On("FindByID", mock.Anything, companyID, tx.ID).Return(tx, nil)
	f.txRepo.On("Update", mock.Anything, tx).Return(nil)

	_, err := f.service.Ignore(context.Background(), companyID, tx.ID)

	require.NoError(t, err)
	f.cmvRepo.AssertNotCalled(t, "DeleteByTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_UnknownTransaction(t *testing.T) {
	f := newReconcileFixture()
	companyID := uuid.New()
	txID := uuid.New()

	f.txRepo.On("FindByID", mock.Anything, companyID, txID).Return(nil, shared.ErrNotFound)

	_, err := f.service.Reconcile(context.Background(), companyID, txID, uuid.New(), "Vendas", nil)

	assert.ErrorIs(t, err, shared.ErrNotFound)
}
