package importing

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/importing"
	"github.com/ecomfin/backend/internal/domain/ledger"
	"github.com/ecomfin/backend/internal/domain/reconciliation"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/ecomfin/backend/internal/infrastructure/ingest"
)

// progressBatchSize is how many rows are processed between job progress
// writes and cancellation checks
const progressBatchSize = 25

// ItemResolver links a transaction item to an internal product when a
// confirmed SKU mapping exists. Implemented by the costing service.
type ItemResolver interface {
	ResolveItem(ctx context.Context, companyID uuid.UUID, ch channel.Code, item *reconciliation.TransactionItem) (bool, error)
}

// ImportResult summarizes one finished sales report import
type ImportResult struct {
	JobID     uuid.UUID          `json:"job_id"`
	Counters  importing.Counters `json:"counters"`
	RowErrors []ingest.RowError  `json:"row_errors,omitempty"`
	Truncated bool               `json:"row_errors_truncated,omitempty"`
	Cancelled bool               `json:"cancelled,omitempty"`
}

// OFXImportResult summarizes a bank statement import
type OFXImportResult struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportService runs file imports: parse, dedupe against existing
// transactions row by row, merge complementary fields, resolve SKUs and
// track progress on an import job the caller can poll or cancel.
type ImportService struct {
	txRepo       reconciliation.TransactionRepository
	jobRepo      importing.JobRepository
	movementRepo ledger.MovementRepository
	resolver     ItemResolver
	logger       *zap.Logger
}

// NewImportService creates a new ImportService
func NewImportService(
	txRepo reconciliation.TransactionRepository,
	jobRepo importing.JobRepository,
	movementRepo ledger.MovementRepository,
	resolver ItemResolver,
	logger *zap.Logger,
) *ImportService {
	return &ImportService{
		txRepo:       txRepo,
		jobRepo:      jobRepo,
		movementRepo: movementRepo,
		resolver:     resolver,
		logger:       logger,
	}
}

// CheckPeriod parses the upload and compares its dominant (month, year)
// against the period being closed. A mismatch is a warning for the user,
// never a block.
func (s *ImportService) CheckPeriod(
	fileName string,
	r io.Reader,
	ch channel.Code,
	expectedMonth, expectedYear int,
) (*ingest.PeriodCheck, error) {
	result, err := s.parseUpload(fileName, r, ch)
	if err != nil {
		return nil, err
	}
	return ingest.CheckPeriod(result.Records, expectedMonth, expectedYear), nil
}

// CheckOverlap parses the upload, samples its external references and asks
// storage how many already exist for this company and channel. The graded
// result warns the user before they confirm a probably-duplicate import.
func (s *ImportService) CheckOverlap(
	ctx context.Context,
	companyID uuid.UUID,
	ch channel.Code,
	fileName string,
	r io.Reader,
) (*ingest.OverlapCheck, error) {
	result, err := s.parseUpload(fileName, r, ch)
	if err != nil {
		return nil, err
	}

	refs := ingest.SampleReferences(result.Records)
	if len(refs) == 0 {
		return ingest.ClassifyOverlap(0, 0), nil
	}

	existing, err := s.txRepo.CountByExternalReferences(ctx, companyID, ch, refs)
	if err != nil {
		return nil, err
	}
	return ingest.ClassifyOverlap(len(refs), int(existing)), nil
}

// StartImport parses the upload, creates the progress job and persists it.
// The returned job is already PROCESSING; the caller runs Process (usually
// on a goroutine) and polls the job for progress.
func (s *ImportService) StartImport(
	ctx context.Context,
	companyID uuid.UUID,
	ch channel.Code,
	fileName string,
	r io.Reader,
) (*importing.Job, *ingest.ParseResult, error) {
	result, err := s.parseUpload(fileName, r, ch)
	if err != nil {
		return nil, nil, err
	}

	job, err := importing.NewJob(companyID, ch, fileName, result.TotalRows)
	if err != nil {
		return nil, nil, err
	}
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, nil, err
	}
	return job, result, nil
}

// Process runs the dedupe/merge pipeline over parsed records, updating the
// job as it goes. Row failures increment the error counter and move on.
// Between batches the job is reloaded from storage; a job cancelled by the
// user stops the run at the next batch boundary.
func (s *ImportService) Process(ctx context.Context, job *importing.Job, result *ingest.ParseResult) (*ImportResult, error) {
	log := s.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("company_id", job.CompanyID.String()),
		zap.String("channel", job.Channel.String()),
		zap.String("file", job.FileName))
	log.Info("import started", zap.Int("total_rows", result.TotalRows))

	// Parse-stage failures count against the job like row failures
	for i := 0; i < result.Errors.TotalCount(); i++ {
		job.RecordError()
	}

	cancelled := false
	for i, record := range result.Records {
		if err := s.processRecord(ctx, job, record); err != nil {
			result.Errors.Add(ingest.NewRowError(record.SourceRow, "",
				ingest.ErrCodePersistFailure, err.Error()))
			job.RecordError()
		}

		if (i+1)%progressBatchSize == 0 {
			if err := s.jobRepo.Update(ctx, job); err != nil {
				log.Warn("job progress write failed", zap.Error(err))
			}
			stored, err := s.jobRepo.FindByID(ctx, job.ID)
			if err == nil && stored.IsCancelled() {
				log.Info("import cancelled by user", zap.Int("rows_processed", job.Counters.Processed))
				cancelled = true
				break
			}
		}
	}

	if !cancelled {
		if err := job.Complete(); err != nil {
			return nil, err
		}
		if err := s.jobRepo.Update(ctx, job); err != nil {
			log.Warn("job finalize write failed", zap.Error(err))
		}
	}

	log.Info("import finished",
		zap.Int("imported", job.Counters.Imported),
		zap.Int("duplicates", job.Counters.Duplicates),
		zap.Int("errors", job.Counters.Errors),
		zap.Bool("cancelled", cancelled))

	return &ImportResult{
		JobID:     job.ID,
		Counters:  job.Counters,
		RowErrors: result.Errors.Errors(),
		Truncated: result.Errors.IsTruncated(),
		Cancelled: cancelled,
	}, nil
}

// Cancel flips a processing job to its terminal state. The repository only
// applies the write while the stored row is still PROCESSING, so cancelling
// an already finished job is a no-op surfaced as ErrNotFound.
func (s *ImportService) Cancel(ctx context.Context, companyID, jobID uuid.UUID) (*importing.Job, error) {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.CompanyID != companyID {
		return nil, shared.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return job, nil
	}
	if err := job.Cancel(); err != nil {
		return nil, err
	}
	if err := s.jobRepo.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob returns a job scoped to the company
func (s *ImportService) GetJob(ctx context.Context, companyID, jobID uuid.UUID) (*importing.Job, error) {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.CompanyID != companyID {
		return nil, shared.ErrNotFound
	}
	return job, nil
}

// ListJobs returns the most recent jobs of a company
func (s *ImportService) ListJobs(ctx context.Context, companyID uuid.UUID, limit int) ([]*importing.Job, error) {
	return s.jobRepo.FindByCompany(ctx, companyID, limit)
}

// ImportOFX reads a bank statement and upserts one cash movement per entry,
// keyed on the FITID so re-uploading the same statement changes nothing.
func (s *ImportService) ImportOFX(ctx context.Context, companyID uuid.UUID, r io.Reader) (*OFXImportResult, error) {
	txs, err := ingest.ParseOFX(r)
	if err != nil {
		return nil, err
	}

	result := &OFXImportResult{Total: len(txs)}
	for _, tx := range txs {
		direction := ledger.DirectionIn
		if tx.Debit {
			direction = ledger.DirectionOut
		}

		movement, err := ledger.NewMovement(companyID, ledger.OriginBank, "",
			direction, tx.Date, tx.Amount, tx.Memo)
		if err != nil {
			result.Skipped++
			continue
		}
		fitID := tx.FITID
		movement.ExternalRefID = &fitID

		if err := s.movementRepo.Upsert(ctx, movement); err != nil {
			s.logger.Error("bank movement upsert failed",
				zap.String("fitid", tx.FITID), zap.Error(err))
			result.Skipped++
			continue
		}
		result.Imported++
	}

	s.logger.Info("bank statement imported",
		zap.String("company_id", companyID.String()),
		zap.Int("entries", result.Total),
		zap.Int("imported", result.Imported))
	return result, nil
}

func (s *ImportService) parseUpload(fileName string, r io.Reader, ch channel.Code) (*ingest.ParseResult, error) {
	table, err := ingest.ReadTable(fileName, r)
	if err != nil {
		return nil, err
	}
	return ingest.ParseTable(table, ch)
}

// processRecord persists one parsed row: insert as a new transaction, or on
// a natural-key collision merge complementary fields into the existing one.
func (s *ImportService) processRecord(ctx context.Context, job *importing.Job, record *ingest.Record) error {
	candidate, err := s.buildTransaction(job.CompanyID, job.Channel, record)
	if err != nil {
		return err
	}

	for i := range candidate.Items {
		if _, err := s.resolver.ResolveItem(ctx, job.CompanyID, candidate.Channel, &candidate.Items[i]); err != nil {
			s.logger.Warn("item resolution failed", zap.Int("row", record.SourceRow), zap.Error(err))
		}
	}

	err = s.txRepo.Save(ctx, candidate)
	if err == nil {
		job.RecordImported()
		return nil
	}
	if !errors.Is(err, shared.ErrDuplicateKey) {
		return err
	}

	// Collision: a row with this natural key already exists. Merge instead
	// of failing, which also absorbs races between concurrent imports.
	existing, err := s.txRepo.FindByNaturalKey(ctx, candidate.NaturalKey())
	if err != nil {
		return fmt.Errorf("merge lookup after duplicate key: %w", err)
	}

	existing.MergeFill(candidate)
	mergeItems(existing, candidate)

	if err := s.txRepo.Update(ctx, existing); err != nil {
		return err
	}
	job.RecordDuplicate()
	return nil
}

// buildTransaction maps a parsed record to a candidate sale transaction
func (s *ImportService) buildTransaction(companyID uuid.UUID, ch channel.Code, record *ingest.Record) (*reconciliation.Transaction, error) {
	if record.Date == nil {
		return nil, fmt.Errorf("row %d has no valid date", record.SourceRow)
	}
	if !ch.IsValid() || ch == channel.CodeOutro {
		if detected := channel.Detect(record.StoreName); detected != channel.CodeOutro {
			ch = detected
		} else if !ch.IsValid() {
			ch = channel.CodeOutro
		}
	}

	txType, direction := reconciliation.TypeSale, reconciliation.DirectionCredit
	switch record.Kind {
	case ingest.KindPayout:
		txType = reconciliation.TypePayout
	case ingest.KindFee:
		txType, direction = reconciliation.TypeFee, reconciliation.DirectionDebit
	case ingest.KindRefund:
		txType, direction = reconciliation.TypeRefund, reconciliation.DirectionDebit
	}

	gross := record.Amount
	if direction == reconciliation.DirectionDebit {
		// Settlement reports sign fee and refund rows; the direction
		// already carries the sign
		gross = gross.Abs()
	}
	fees := reconciliation.FeeBreakdown{
		Commission:      record.Commission,
		FixedFee:        record.FixedFee,
		ShippingCost:    record.ShippingCost,
		AdsCost:         record.AdsCost,
		Tax:             record.Tax,
		OtherDeductions: record.OtherDeductions,
	}
	net := gross.Sub(fees.Total())

	tx, err := reconciliation.NewTransaction(companyID, ch,
		txType, direction, *record.Date, gross, net)
	if err != nil {
		return nil, err
	}

	ref := record.ExternalRef
	tx.ExternalReference = &ref
	tx.OrderID = record.OrderID
	tx.Fees = fees
	tx.SourceRow = record.SourceRow
	if record.StoreName != "" {
		label := record.StoreName
		tx.AccountLabel = &label
	}

	if record.HasItem() {
		unitPrice := decimal.Zero
		if record.UnitPrice != nil {
			unitPrice = *record.UnitPrice
		}
		item, err := reconciliation.NewTransactionItem(record.Description, record.Quantity, unitPrice)
		if err != nil {
			return nil, err
		}
		item.ChannelSKU = record.ChannelSKU
		item.LineTotal = record.LineTotal
		item.SourceRow = record.SourceRow
		if err := tx.AddItem(*item); err != nil {
			return nil, err
		}
	}

	return tx, nil
}

// mergeItems appends incoming item lines the existing transaction does not
// carry yet, matched by channel SKU. Later reports for the same order can
// add item granularity an earlier summary report lacked.
func mergeItems(existing, incoming *reconciliation.Transaction) {
	known := make(map[string]bool, len(existing.Items))
	for _, item := range existing.Items {
		if item.ChannelSKU != nil {
			known[*item.ChannelSKU] = true
		}
	}
	for _, item := range incoming.Items {
		if item.ChannelSKU == nil || known[*item.ChannelSKU] {
			continue
		}
		if err := existing.AddItem(item); err == nil {
			known[*item.ChannelSKU] = true
		}
	}
}
