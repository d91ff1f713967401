package costing

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
	"github.com/ecomfin/backend/internal/domain/integration"
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

// MockSkuMappingRepository is a mock implementation of SkuMappingRepository
type MockSkuMappingRepository struct {
	mock.Mock
}

func (m *MockSkuMappingRepository) FindByKey(ctx context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string) (*integration.SkuMapping, error) {
	args := m.Called(ctx, companyID, ch, channelSKU)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SkuMapping), args.Error(1)
}

func (m *MockSkuMappingRepository) FindAll(ctx context.Context, companyID uuid.UUID, filter integration.MappingFilter) ([]integration.SkuMapping, error) {
	args := m.Called(ctx, companyID, filter)
	return args.Get(0).([]integration.SkuMapping), args.Error(1)
}

func (m *MockSkuMappingRepository) FindConfirmed(ctx context.Context, companyID uuid.UUID) ([]integration.SkuMapping, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).([]integration.SkuMapping), args.Error(1)
}

func (m *MockSkuMappingRepository) Upsert(ctx context.Context, mapping *integration.SkuMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockSkuMappingRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	args := m.Called(ctx, companyID, id)
	return args.Error(0)
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

// MockMappingCache is a mock implementation of MappingCache
type MockMappingCache struct {
	mock.Mock
}

func (m *MockMappingCache) Get(ctx context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string) (*integration.SkuMapping, error) {
	args := m.Called(ctx, companyID, ch, channelSKU)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SkuMapping), args.Error(1)
}

func (m *MockMappingCache) Set(ctx context.Context, mapping *integration.SkuMapping, ttl time.Duration) error {
	args := m.Called(ctx, mapping, ttl)
	return args.Error(0)
}

func (m *MockMappingCache) Delete(ctx context.Context, companyID uuid.UUID, ch channel.Code, channelSKU string) error {
	args := m.Called(ctx, companyID, ch, channelSKU)
	return args.Error(0)
}

func (m *MockMappingCache) InvalidateCompany(ctx context.Context, companyID uuid.UUID) error {
	args := m.Called(ctx, companyID)
	return args.Error(0)
}

func (m *MockMappingCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

type costingFixture struct {
	txRepo      *MockTransactionRepository
	mappingRepo *MockSkuMappingRepository
	productRepo *MockProductRepository
	cmvRepo     *MockCMVRepository
	cache       *MockMappingCache
	service     *CostingService
}

func newCostingFixture() *costingFixture {
	f := &costingFixture{
		txRepo:      new(MockTransactionRepository),
		mappingRepo: new(MockSkuMappingRepository),
		productRepo: new(MockProductRepository),
		cmvRepo:     new(MockCMVRepository),
		cache:       new(MockMappingCache),
	}
	f.service = NewCostingService(f.txRepo, f.mappingRepo, f.productRepo, f.cmvRepo, f.cache, zap.NewNop())
	return f
}

func confirmedMapping(t *testing.T, companyID uuid.UUID, sku string, productID uuid.UUID) *integration.SkuMapping {
	t.Helper()
	mapping, err := integration.NewPendingMapping(companyID, channel.CodeMercadoLivre, sku, "Fone Bluetooth")
	require.NoError(t, err)
	require.NoError(t, mapping.Confirm(productID, nil))
	return mapping
}

func itemWithSKU(t *testing.T, sku string) *reconciliation.TransactionItem {
	t.Helper()
	item, err := reconciliation.NewTransactionItem("Fone Bluetooth", 2, decimal.RequireFromString("49.90"))
	require.NoError(t, err)
	item.ChannelSKU = &sku
	return item
}

func TestResolveItem_CacheHit(t *testing.T) {
	f := newCostingFixture()
	companyID := uuid.New()
	productID := uuid.New()
	item := itemWithSKU(t, "MLB-123")

	f.cache.On("Get", mock.Anything, companyID, channel.CodeMercadoLivre, "MLB-123").
		Return(confirmedMapping(t, companyID, "MLB-123", productID), nil)

	linked, err := f.service.ResolveItem(context.Background(), companyID, channel.CodeMercadoLivre, item)

	require.NoError(t, err)
	assert.True(t, linked)
	require.NotNil(t, item.ProductID)
	assert.Equal(t, productID, *item.ProductID)
	f.mappingRepo.AssertNotCalled(t, "FindByKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveItem_UnmappedSKUEnqueuesPending(t *testing.T) {
	f := newCostingFixture()
	companyID := uuid.New()
	item := itemWithSKU(t, "MLB-999")

	f.cache.On("Get", mock.Anything, companyID, channel.CodeMercadoLivre, "MLB-999").Return(nil, nil)
	f.mappingRepo.On("FindByKey", mock.Anything, companyID, channel.CodeMercadoLivre, "MLB-999").
		Return(nil, shared.ErrNotFound)
	f.mappingRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(m *integration.SkuMapping) bool {
		return m.ChannelSKU == "MLB-999" && !m.IsConfirmed() && m.Label == "Fone Bluetooth"
	})).Return(nil)

	linked, err := f.service.ResolveItem(context.Background(), companyID, channel.CodeMercadoLivre, item)

	require.NoError(t, err)
	assert.False(t, linked)
	assert.Nil(t, item.ProductID)
	f.mappingRepo.AssertExpectations(t)
}

func TestResolveItem_PendingMappingLeavesItemUnlinked(t *testing.T) {
	f := newCostingFixture()
	companyID := uuid.New()
	item := itemWithSKU(t, "MLB-555")

	pending, err := integration.NewPendingMapping(companyID, channel.CodeMercadoLivre, "MLB-555", "")
	require.NoError(t, err)

	f.cache.On("Get", mock.Anything, companyID, channel.CodeMercadoLivre, "MLB-555").Return(nil, nil)
	f.mappingRepo.On("FindByKey", mock.Anything, companyID, channel.CodeMercadoLivre, "MLB-555").Return(pending, nil)
	f.cache.On("Set", mock.Anything, pending, mappingCacheTTL).Return(nil)

	linked, err := f.service.ResolveItem(context.Background(), companyID, channel.CodeMercadoLivre, item)

	require.NoError(t, err)
	assert.False(t, linked)
	assert.Nil(t, item.ProductID)
}

func TestResolveItem_NoSKU(t *testing.T) {
	f := newCostingFixture()
	item, err := reconciliation.NewTransactionItem("Linha sem SKU", 1, decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	linked, err := f.service.ResolveItem(context.Background(), uuid.New(), channel.CodeShopee, item)

	require.NoError(t, err)
	assert.False(t, linked)
	f.cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func reconciledSale(t *testing.T, companyID uuid.UUID) *reconciliation.Transaction {
	t.Helper()
	tx, err := reconciliation.NewTransaction(companyID, channel.CodeMercadoLivre,
		reconciliation.TypeSale, reconciliation.DirectionCredit,
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		decimal.RequireFromString("99.80"), decimal.RequireFromString("84.83"))
	require.NoError(t, err)
	require.NoError(t, tx.Reconcile(uuid.New(), nil))
	return tx
}

func TestAttributeTransaction_CostsLinkedItems(t *testing.T) {
	f := newCostingFixture()
	companyID := uuid.New()
	tx := reconciledSale(t, companyID)

	product, err := catalog.NewProduct(companyID, "Fone Bluetooth", "FONE-01", decimal.RequireFromString("20.00"), 100)
	require.NoError(t, err)

	item := itemWithSKU(t, "MLB-123")
	item.LinkProduct(product.ID, nil)

	f.txRepo.On("ItemsWithoutCMV", mock.Anything, tx.ID).
		Return([]reconciliation.TransactionItem{*item}, nil)
	f.productRepo.On("FindByIDs", mock.Anything, companyID, []uuid.UUID{product.ID}).
		Return(map[uuid.UUID]*catalog.Product{product.ID: product}, nil)
	f.cmvRepo.On("Save", mock.Anything, mock.MatchedBy(func(rec *costing.CMVRecord) bool {
		return rec.TotalCost.Equal(decimal.RequireFromString("40.00"))
	})).Return(nil)

	outcome, err := f.service.AttributeTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Costed)
	assert.Equal(t, 0, outcome.Errored)
	f.cmvRepo.AssertExpectations(t)
}

func TestAttributeTransaction_DuplicateRecordIsSkipped(t *testing.T) {
	f := newCostingFixture()
	companyID := uuid.New()
	tx := reconciledSale(t, companyID)

	product, err := catalog.NewProduct(companyID, "Fone Bluetooth", "FONE-01", decimal.RequireFromString("20.00"), 100)
	require.NoError(t, err)
	item := itemWithSKU(t, "MLB-123")
	item.LinkProduct(product.ID, nil)

	f.txRepo.On("ItemsWithoutCMV", mock.Anything, tx.ID).
		Return([]reconciliation.TransactionItem{*item}, nil)
	f.productRepo.On("FindByIDs", mock.Anything, companyID, []uuid.UUID{product.ID}).
		Return(map[uuid.UUID]*catalog.Product{product.ID: product}, nil)
	f.cmvRepo.On("Save", mock.Anything, mock.Anything).Return(shared.ErrDuplicateKey)

	outcome, err := f.service.AttributeTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Costed)
	assert.Equal(t, 1, outcome.Skipped)
}

func TestAttributeTransaction_RequiresReconciledStatus(t *testing.T) {
	f := newCostingFixture()
	tx, err := reconciliation.NewTransaction(uuid.New(), channel.CodeShopee,
		reconciliation.TypeSale, reconciliation.DirectionCredit,
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		decimal.RequireFromString("50.00"), decimal.RequireFromString("42.50"))
	require.NoError(t, err)

	_, err = f.service.AttributeTransaction(context.Background(), tx)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_STATE", domainErr.Code)
}

func TestConfirmMapping_RelinksAndRecomputes(t *testing.T) {
	f := newCostingFixture()
	companyID := uuid.New()
	productID := uuid.New()

	product, err := catalog.NewProduct(companyID, "Fone Bluetooth", "FONE-01", decimal.RequireFromString("20.00"), 100)
	require.NoError(t, err)
	pending, err := integration.NewPendingMapping(companyID, channel.CodeMercadoLivre, "MLB-123", "Fone Bluetooth")
	require.NoError(t, err)

	f.productRepo.On("FindByID", mock.Anything, companyID, productID).Return(product, nil)
	f.mappingRepo.On("FindByKey", mock.Anything, companyID, channel.CodeMercadoLivre, "MLB-123").Return(pending, nil)
	f.mappingRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(m *integration.SkuMapping) bool {
		return m.IsConfirmed() && *m.ProductID == productID
	})).Return(nil)
	f.cache.On("Delete", mock.Anything, companyID, channel.CodeMercadoLivre, "MLB-123").Return(nil)
	f.txRepo.On("RelinkItems", mock.Anything, companyID, channel.CodeMercadoLivre, "MLB-123", productID, (*uuid.UUID)(nil)).
		Return(int64(7), nil)
	f.txRepo.On("FindReconciledWithoutCMV", mock.Anything, companyID, defaultRecomputeBatch).
		Return([]reconciliation.Transaction{}, nil)

	result, err := f.service.ConfirmMapping(context.Background(), companyID, channel.CodeMercadoLivre, "MLB-123", productID, nil)

	require.NoError(t, err)
	assert.Equal(t, int64(7), result.RelinkedItems)
	assert.True(t, result.Mapping.IsConfirmed())
	f.cache.AssertExpectations(t)
}

func TestConfirmMapping_UnknownProduct(t *testing.T) {
	f := newCostingFixture()
	companyID := uuid.New()
	productID := uuid.New()

	f.productRepo.On("FindByID", mock.Anything, companyID, productID).Return(nil, shared.ErrNotFound)

	_, err := f.service.ConfirmMapping(context.Background(), companyID, channel.CodeShopee, "SP-1", productID, nil)

	assert.ErrorIs(t, err, shared.ErrNotFound)
	f.mappingRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestRecomputeCompany_StopsWhenNothingCosts(t *testing.T) {
	f := newCostingFixture()
	companyID := uuid.New()

	// One backlog transaction whose only item is unlinked: the pass costs
	// zero items, so a second pass must not run.
	tx := reconciledSale(t, companyID)
	f.txRepo.On("FindReconciledWithoutCMV", mock.Anything, companyID, defaultRecomputeBatch).
		Return([]reconciliation.Transaction{*tx}, nil).Once()
	f.txRepo.On("ItemsWithoutCMV", mock.Anything, tx.ID).
		Return([]reconciliation.TransactionItem{}, nil)

	outcome, err := f.service.RecomputeCompany(context.Background(), companyID, 0, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Processed)
	assert.Equal(t, 0, outcome.Costed)
	f.txRepo.AssertExpectations(t)
}

func TestRecomputeCompany_ReportsProgress(t *testing.T) {
	f := newCostingFixture()
	companyID := uuid.New()

	tx1 := reconciledSale(t, companyID)
	tx2 := reconciledSale(t, companyID)
	f.txRepo.On("CountReconciledWithoutCMV", mock.Anything, companyID).
		Return(int64(2), nil)
	f.txRepo.On("FindReconciledWithoutCMV", mock.Anything, companyID, defaultRecomputeBatch).
		Return([]reconciliation.Transaction{*tx1, *tx2}, nil).Once()
	f.txRepo.On("ItemsWithoutCMV", mock.Anything, mock.Anything).
		Return([]reconciliation.TransactionItem{}, nil)

	var calls [][2]int
	_, err := f.service.RecomputeCompany(context.Background(), companyID, 0,
		func(processed, total int) {
			calls = append(calls, [2]int{processed, total})
		})

	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, calls)
	f.txRepo.AssertExpectations(t)
}
