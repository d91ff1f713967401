package importing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/importing"
	"github.com/ecomfin/backend/internal/domain/ledger"
	"github.com/ecomfin/backend/internal/domain/reconciliation"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/ecomfin/backend/internal/infrastructure/ingest"
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

// MockJobRepository is a mock implementation of JobRepository
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*importing.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importing.Job), args.Error(1)
}

func (m *MockJobRepository) FindByCompany(ctx context.Context, companyID uuid.UUID, limit int) ([]*importing.Job, error) {
	args := m.Called(ctx, companyID, limit)
	return args.Get(0).([]*importing.Job), args.Error(1)
}

func (m *MockJobRepository) Save(ctx context.Context, job *importing.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) Update(ctx context.Context, job *importing.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
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

// noopResolver leaves every item unlinked
type noopResolver struct{}

func (noopResolver) ResolveItem(ctx context.Context, companyID uuid.UUID, ch channel.Code, item *reconciliation.TransactionItem) (bool, error) {
	return false, nil
}

type importFixture struct {
	txRepo       *MockTransactionRepository
	jobRepo      *MockJobRepository
	movementRepo *MockMovementRepository
	service      *ImportService
}

func newImportFixture() *importFixture {
	f := &importFixture{
		txRepo:       new(MockTransactionRepository),
		jobRepo:      new(MockJobRepository),
		movementRepo: new(MockMovementRepository),
	}
	f.service = NewImportService(f.txRepo, f.jobRepo, f.movementRepo, noopResolver{}, zap.NewNop())
	return f
}

func saleRecord(row int, ref string) *ingest.Record {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	commission := decimal.RequireFromString("15.00")
	sku := "MLB-" + ref
	unitPrice := decimal.RequireFromString("50.00")
	return &ingest.Record{
		SourceRow:   row,
		ExternalRef: ref,
		Date:        &date,
		Description: "Fone Bluetooth",
		StoreName:   "Mercado Livre Loja",
		Amount:      decimal.RequireFromString("100.00"),
		Commission:  &commission,
		ChannelSKU:  &sku,
		Quantity:    2,
		UnitPrice:   &unitPrice,
	}
}

func parseResult(records ...*ingest.Record) *ingest.ParseResult {
	return &ingest.ParseResult{
		Records:   records,
		Errors:    ingest.NewErrorCollection(50),
		TotalRows: len(records),
		ItemLevel: true,
	}
}

func processingJob(t *testing.T, companyID uuid.UUID, total int) *importing.Job {
	t.Helper()
	job, err := importing.NewJob(companyID, channel.CodeMercadoLivre, "vendas-marco.xlsx", total)
	require.NoError(t, err)
	return job
}

func TestProcess_ImportsFreshRows(t *testing.T) {
	f := newImportFixture()
	companyID := uuid.New()
	job := processingJob(t, companyID, 2)

	f.txRepo.On("Save", mock.Anything, mock.MatchedBy(func(tx *reconciliation.Transaction) bool {
		return tx.Type == reconciliation.TypeSale &&
			tx.Channel == channel.CodeMercadoLivre &&
			tx.NetAmount.Equal(decimal.RequireFromString("85.00")) &&
			len(tx.Items) == 1
	})).Return(nil)
	f.jobRepo.On("Update", mock.Anything, job).Return(nil)

	result, err := f.service.Process(context.Background(), job, parseResult(saleRecord(2, "1001"), saleRecord(3, "1002")))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Counters.Imported)
	assert.Equal(t, 0, result.Counters.Duplicates)
	assert.Equal(t, 0, result.Counters.Errors)
	assert.False(t, result.Cancelled)
	assert.Equal(t, importing.JobStatusDone, job.Status)
}

func TestProcess_SettlementKindsSetTypeAndDirection(t *testing.T) {
	f := newImportFixture()
	companyID := uuid.New()
	job := processingJob(t, companyID, 2)

	date := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	payout := &ingest.Record{
		SourceRow:   2,
		Kind:        ingest.KindPayout,
		ExternalRef: "REP-77",
		Date:        &date,
		Amount:      decimal.RequireFromString("450.00"),
	}
	fee := &ingest.Record{
		SourceRow:   3,
		Kind:        ingest.KindFee,
		ExternalRef: "TAR-12",
		Date:        &date,
		Amount:      decimal.RequireFromString("-25.00"),
	}

	f.txRepo.On("Save", mock.Anything, mock.MatchedBy(func(tx *reconciliation.Transaction) bool {
		return tx.Type == reconciliation.TypePayout &&
			tx.Direction == reconciliation.DirectionCredit &&
			tx.GrossAmount.Equal(decimal.RequireFromString("450.00"))
	})).Return(nil).Once()
	f.txRepo.On("Save", mock.Anything, mock.MatchedBy(func(tx *reconciliation.Transaction) bool {
		return tx.Type == reconciliation.TypeFee &&
			tx.Direction == reconciliation.DirectionDebit &&
			tx.GrossAmount.Equal(decimal.RequireFromString("25.00"))
	})).Return(nil).Once()
	f.jobRepo.On("Update", mock.Anything, job).Return(nil)

	result, err := f.service.Process(context.Background(), job, parseResult(payout, fee))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Counters.Imported)
	f.txRepo.AssertExpectations(t)
}

func TestProcess_DuplicateRowMergesIntoExisting(t *testing.T) {
	f := newImportFixture()
	companyID := uuid.New()
	job := processingJob(t, companyID, 1)
	record := saleRecord(2, "1001")

	existing, err := reconciliation.NewTransaction(companyID, channel.CodeMercadoLivre,
		reconciliation.TypeSale, reconciliation.DirectionCredit,
		*record.Date, record.Amount, decimal.RequireFromString("85.00"))
	require.NoError(t, err)
	ref := record.ExternalRef
	existing.ExternalReference = &ref

	f.txRepo.On("Save", mock.Anything, mock.Anything).Return(shared.ErrDuplicateKey)
	f.txRepo.On("FindByNaturalKey", mock.Anything, mock.MatchedBy(func(key reconciliation.NaturalKey) bool {
		return key.ExternalReference == "1001" && key.Channel == channel.CodeMercadoLivre
	})).Return(existing, nil)
	f.txRepo.On("Update", mock.Anything, existing).Return(nil)
	f.jobRepo.On("Update", mock.Anything, job).Return(nil)

	result, err := f.service.Process(context.Background(), job, parseResult(record))

	require.NoError(t, err)
	assert.Equal(t, 0, result.Counters.Imported)
	assert.Equal(t, 1, result.Counters.Duplicates)
	// The item line the summary report lacked came in with the merge.
	assert.Len(t, existing.Items, 1)
}

func TestProcess_RowFailureCountsAndContinues(t *testing.T) {
	f := newImportFixture()
	companyID := uuid.New()
	job := processingJob(t, companyID, 2)

	bad := saleRecord(2, "1001")
	bad.Date = nil
	good := saleRecord(3, "1002")

	f.txRepo.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
	f.jobRepo.On("Update", mock.Anything, job).Return(nil)

	result, err := f.service.Process(context.Background(), job, parseResult(bad, good))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Counters.Imported)
	assert.Equal(t, 1, result.Counters.Errors)
	require.Len(t, result.RowErrors, 1)
	assert.Equal(t, 2, result.RowErrors[0].Row)
	assert.Equal(t, ingest.ErrCodePersistFailure, result.RowErrors[0].Code)
}

func TestProcess_StopsAtBatchBoundaryWhenCancelled(t *testing.T) {
	f := newImportFixture()
	companyID := uuid.New()

	records := make([]*ingest.Record, 0, progressBatchSize*2)
	for i := 0; i < progressBatchSize*2; i++ {
		records = append(records, saleRecord(i+2, uuid.NewString()))
	}
	job := processingJob(t, companyID, len(records))

	cancelled := processingJob(t, companyID, len(records))
	require.NoError(t, cancelled.Cancel())

	f.txRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.jobRepo.On("Update", mock.Anything, job).Return(nil)
	f.jobRepo.On("FindByID", mock.Anything, job.ID).Return(cancelled, nil)

	result, err := f.service.Process(context.Background(), job, parseResult(records...))

	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, progressBatchSize, result.Counters.Processed)
}

func TestProcess_ChannelDetectedFromStoreName(t *testing.T) {
	f := newImportFixture()
	companyID := uuid.New()
	job, err := importing.NewJob(companyID, channel.CodeOutro, "planilha.csv", 1)
	require.NoError(t, err)

	record := saleRecord(2, "1001")
	record.StoreName = "Shopee Centro"

	f.txRepo.On("Save", mock.Anything, mock.MatchedBy(func(tx *reconciliation.Transaction) bool {
		return tx.Channel == channel.CodeShopee
	})).Return(nil)
	f.jobRepo.On("Update", mock.Anything, job).Return(nil)

	_, err = f.service.Process(context.Background(), job, parseResult(record))

	require.NoError(t, err)
	f.txRepo.AssertExpectations(t)
}

func TestCancel_ScopedToCompany(t *testing.T) {
	f := newImportFixture()
	companyID := uuid.New()
	job := processingJob(t, companyID, 10)

	f.jobRepo.On("FindByID", mock.Anything, job.ID).Return(job, nil)

	_, err := f.service.Cancel(context.Background(), uuid.New(), job.ID)

	assert.ErrorIs(t, err, shared.ErrNotFound)
	f.jobRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestImportOFX_UpsertsBankMovements(t *testing.T) {
	f := newImportFixture()
	companyID := uuid.New()

	ofx := `OFXHEADER:100
DATA:OFXSGML

<OFX>
<BANKMSGSRSV1>
<STMTTRNRS>
<STMTRS>
<BANKTRANLIST>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250310
<TRNAMT>1500.00
<FITID>2025031001
<MEMO>PIX RECEBIDO
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250312
<TRNAMT>-230.50
<FITID>2025031201
<MEMO>PAGAMENTO FORNECEDOR
</STMTTRN>
</BANKTRANLIST>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

	f.movementRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(m *ledger.Movement) bool {
		return m.Origin == ledger.OriginBank &&
			m.Direction == ledger.DirectionIn &&
			m.Regime == ledger.RegimeCash &&
			m.ExternalRefID != nil && *m.ExternalRefID == "2025031001"
	})).Return(nil).Once()
	f.movementRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(m *ledger.Movement) bool {
		return m.Direction == ledger.DirectionOut &&
			m.ExternalRefID != nil && *m.ExternalRefID == "2025031201"
	})).Return(nil).Once()

	result, err := f.service.ImportOFX(context.Background(), companyID, strings.NewReader(ofx))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Skipped)
	f.movementRepo.AssertExpectations(t)
}

func TestImportOFX_FailedUpsertIsSkipped(t *testing.T) {
	f := newImportFixture()

	ofx := `<OFX>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250310
<TRNAMT>100.00
<FITID>F1
<MEMO>TED
</STMTTRN>
</OFX>`

	f.movementRepo.On("Upsert", mock.Anything, mock.Anything).Return(assert.AnError)

	result, err := f.service.ImportOFX(context.Background(), uuid.New(), strings.NewReader(ofx))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Skipped)
}
