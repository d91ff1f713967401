package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ecomfin/backend/internal/domain/costing"
	"github.com/ecomfin/backend/internal/domain/ledger"
	"github.com/ecomfin/backend/internal/domain/report"
	"github.com/ecomfin/backend/internal/infrastructure/export"
)

// projectionHistoryMonths is the trailing window the projection averages over
const projectionHistoryMonths = 6

// defaultProjectionMonths is how far forward to project when unspecified
const defaultProjectionMonths = 12

// cogsEntryName labels the attributed cost line in the DRE drill-down
const cogsEntryName = "Custo das mercadorias vendidas"

// CategoryClassifier maps a ledger movement to its DRE line. Movements
// reconciled against a typed category carry that type; the default
// classifier covers movements that only know their direction.
type CategoryClassifier interface {
	Classify(m ledger.Movement) report.CategoryType
}

// DirectionClassifier is the fallback classifier: inflows are revenue,
// outflows are operating expense. Attributed CMV enters the statement
// through the costing module, never through a movement, so COGS is not a
// possible outcome here.
type DirectionClassifier struct{}

// Classify maps a movement by direction
func (DirectionClassifier) Classify(m ledger.Movement) report.CategoryType {
	if m.Direction == ledger.DirectionIn {
		return report.CategoryRevenue
	}
	return report.CategoryOperating
}

// CashFlowMonth is one month of the cash regime series
type CashFlowMonth struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
	Net     decimal.Decimal `json:"net"`
	Balance decimal.Decimal `json:"balance"` // Running net from the period start
}

// CashFlow is the monthly cash view of the ledger for a period
type CashFlow struct {
	PeriodStart  time.Time       `json:"period_start"`
	PeriodEnd    time.Time       `json:"period_end"`
	Months       []CashFlowMonth `json:"months"`
	TotalInflow  decimal.Decimal `json:"total_inflow"`
	TotalOutflow decimal.Decimal `json:"total_outflow"`
	Net          decimal.Decimal `json:"net"`
}

// ReportService builds the financial views: DRE over accrual movements,
// cash flow over cash movements, receivables aging, and the forward
// projection. The regime carried by each movement decides which view it
// feeds, so the two never overlap.
type ReportService struct {
	movementRepo ledger.MovementRepository
	cmvRepo      costing.CMVRepository
	titleRepo    report.TitleRepository
	classifier   CategoryClassifier
	workbook     *export.ReceivablesWorkbookBuilder
	logger       *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(
	movementRepo ledger.MovementRepository,
	cmvRepo costing.CMVRepository,
	titleRepo report.TitleRepository,
	classifier CategoryClassifier,
	logger *zap.Logger,
) *ReportService {
	if classifier == nil {
		classifier = DirectionClassifier{}
	}
	return &ReportService{
		movementRepo: movementRepo,
		cmvRepo:      cmvRepo,
		titleRepo:    titleRepo,
		classifier:   classifier,
		workbook:     export.NewReceivablesWorkbookBuilder(),
		logger:       logger,
	}
}

// Statement builds the DRE for a period from accrual movements plus the
// attributed CMV total. The COGS line comes from the costing module, not
// from movements: attributing cost never writes to the ledger.
func (s *ReportService) Statement(ctx context.Context, companyID uuid.UUID, start, end time.Time) (*report.Statement, error) {
	regime := ledger.RegimeAccrual
	movements, err := s.movementRepo.FindAll(ctx, companyID, ledger.MovementFilter{
		Regime:   &regime,
		DateFrom: &start,
		DateTo:   &end,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]report.Entry, 0, len(movements)+1)
	for _, m := range movements {
		entries = append(entries, report.Entry{
			CategoryName: m.CategoryName,
			Type:         s.classifier.Classify(m),
			Amount:       m.Amount,
		})
	}

	cogs, err := s.cmvRepo.SumByPeriod(ctx, companyID, start, end)
	if err != nil {
		return nil, err
	}
	if cogs.IsPositive() {
		entries = append(entries, report.Entry{
			CategoryName: cogsEntryName,
			Type:         report.CategoryCOGS,
			Amount:       cogs,
		})
	}

	return report.BuildStatement(start, end, entries), nil
}

// CashFlow builds the monthly cash series for a period. Months inside the
// period with no movement still appear, with zero totals, so the series has
// no gaps.
func (s *ReportService) CashFlow(ctx context.Context, companyID uuid.UUID, start, end time.Time) (*CashFlow, error) {
	regime := ledger.RegimeCash
	movements, err := s.movementRepo.FindAll(ctx, companyID, ledger.MovementFilter{
		Regime:   &regime,
		DateFrom: &start,
		DateTo:   &end,
	})
	if err != nil {
		return nil, err
	}

	type monthTotals struct {
		in  decimal.Decimal
		out decimal.Decimal
	}
	totals := make(map[string]*monthTotals)
	for _, m := range movements {
		key := m.Date.Format("2006-01")
		t := totals[key]
		if t == nil {
			t = &monthTotals{}
			totals[key] = t
		}
		if m.Direction == ledger.DirectionIn {
			t.in = t.in.Add(m.Amount.Abs())
		} else {
			t.out = t.out.Add(m.Amount.Abs())
		}
	}

	flow := &CashFlow{PeriodStart: start, PeriodEnd: end}
	balance := decimal.Zero
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(end) {
		t := totals[cursor.Format("2006-01")]
		if t == nil {
			t = &monthTotals{}
		}
		net := t.in.Sub(t.out)
		balance = balance.Add(net)
		flow.Months = append(flow.Months, CashFlowMonth{
			Year:    cursor.Year(),
			Month:   int(cursor.Month()),
			Inflow:  t.in,
			Outflow: t.out,
			Net:     net,
			Balance: balance,
		})
		flow.TotalInflow = flow.TotalInflow.Add(t.in)
		flow.TotalOutflow = flow.TotalOutflow.Add(t.out)
		cursor = cursor.AddDate(0, 1, 0)
	}
	flow.Net = flow.TotalInflow.Sub(flow.TotalOutflow)

	return flow, nil
}

// Aging buckets the company's receivable titles as of today
func (s *ReportService) Aging(ctx context.Context, companyID uuid.UUID, today time.Time) (*report.AgingReport, error) {
	items, err := s.openItems(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return report.BuildAging(items, today), nil
}

// Projection projects revenue and cost forward from the trailing accrual
// history. A months value of zero or less projects the default horizon.
func (s *ReportService) Projection(ctx context.Context, companyID uuid.UUID, now time.Time, months int) (*report.Projection, error) {
	if months <= 0 {
		months = defaultProjectionMonths
	}
	history, err := s.trailingHistory(ctx, companyID, now)
	if err != nil {
		return nil, err
	}
	return report.BuildProjection(history, months), nil
}

// ReceivablesWorkbook assembles the full receivables export: the open item
// listing, the aging view, and the projection, rendered as an XLSX workbook.
// The caller owns the returned file.
func (s *ReportService) ReceivablesWorkbook(ctx context.Context, companyID uuid.UUID, companyName string, now time.Time) (*excelize.File, error) {
	items, err := s.openItems(ctx, companyID)
	if err != nil {
		return nil, err
	}
	projection, err := s.Projection(ctx, companyID, now, defaultProjectionMonths)
	if err != nil {
		return nil, err
	}

	return s.workbook.Build(export.ReceivablesData{
		CompanyName: companyName,
		GeneratedAt: now,
		Items:       items,
		Aging:       report.BuildAging(items, now),
		Projection:  projection,
	})
}

// CreateTitle registers a receivable or payable installment
func (s *ReportService) CreateTitle(
	ctx context.Context,
	companyID uuid.UUID,
	kind report.TitleKind,
	clientName, description string,
	dueDate time.Time,
	amount decimal.Decimal,
) (*report.Title, error) {
	title, err := report.NewTitle(companyID, kind, clientName, dueDate, amount)
	if err != nil {
		return nil, err
	}
	title.Description = description
	if err := s.titleRepo.Save(ctx, title); err != nil {
		return nil, err
	}
	return title, nil
}

// ListTitles lists the company's titles of a kind, oldest due first
func (s *ReportService) ListTitles(ctx context.Context, companyID uuid.UUID, kind report.TitleKind) ([]report.Title, error) {
	return s.titleRepo.FindByKind(ctx, companyID, kind)
}

// SettleTitle marks a title paid and upserts the matching cash movement.
// Settling is the cash event: the movement is keyed on the title ID, so
// settling twice after a reopen never duplicates it.
func (s *ReportService) SettleTitle(ctx context.Context, companyID, id uuid.UUID, at time.Time) (*report.Title, error) {
	title, err := s.titleRepo.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := title.Settle(at); err != nil {
		return nil, err
	}
	if err := s.titleRepo.Update(ctx, title); err != nil {
		return nil, err
	}

	movement, err := ledger.NewMovement(
		companyID,
		titleOrigin(title.Kind),
		ledger.TxTypeSettlement,
		titleDirection(title.Kind),
		at,
		title.Amount,
		title.ClientName,
	)
	if err != nil {
		return nil, err
	}
	ref := title.ID.String()
	movement.ExternalRefID = &ref
	if err := s.movementRepo.Upsert(ctx, movement); err != nil {
		return nil, err
	}

	s.logger.Info("title settled",
		zap.String("title_id", title.ID.String()),
		zap.String("kind", string(title.Kind)))
	return title, nil
}

// ReopenTitle reverts a settlement and removes its cash movement
func (s *ReportService) ReopenTitle(ctx context.Context, companyID, id uuid.UUID) (*report.Title, error) {
	title, err := s.titleRepo.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := title.Reopen(); err != nil {
		return nil, err
	}
	if err := s.titleRepo.Update(ctx, title); err != nil {
		return nil, err
	}
	if err := s.movementRepo.DeleteByOriginRef(ctx, companyID, titleOrigin(title.Kind), title.ID.String()); err != nil {
		return nil, err
	}
	return title, nil
}

// CancelTitle voids an open title. Cancelled titles never reached the
// ledger, so there is nothing to reverse.
func (s *ReportService) CancelTitle(ctx context.Context, companyID, id uuid.UUID) (*report.Title, error) {
	title, err := s.titleRepo.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := title.Cancel(); err != nil {
		return nil, err
	}
	if err := s.titleRepo.Update(ctx, title); err != nil {
		return nil, err
	}
	return title, nil
}

// openItems projects the company's receivable titles for aging and export
func (s *ReportService) openItems(ctx context.Context, companyID uuid.UUID) ([]report.OpenItem, error) {
	titles, err := s.titleRepo.FindByKind(ctx, companyID, report.TitleReceivable)
	if err != nil {
		return nil, err
	}
	items := make([]report.OpenItem, 0, len(titles))
	for i := range titles {
		items = append(items, titles[i].OpenItem())
	}
	return items, nil
}

// trailingHistory aggregates accrual movements into the monthly history the
// projection averages over. The window covers the last full months before
// the current one.
func (s *ReportService) trailingHistory(ctx context.Context, companyID uuid.UUID, now time.Time) ([]report.MonthlyHistory, error) {
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, -projectionHistoryMonths, 0)

	regime := ledger.RegimeAccrual
	movements, err := s.movementRepo.FindAll(ctx, companyID, ledger.MovementFilter{
		Regime:   &regime,
		DateFrom: &start,
		DateTo:   &end,
	})
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string]*report.MonthlyHistory)
	for _, m := range movements {
		if !m.Date.Before(end) {
			continue
		}
		key := m.Date.Format("2006-01")
		h := byMonth[key]
		if h == nil {
			h = &report.MonthlyHistory{Year: m.Date.Year(), Month: int(m.Date.Month())}
			byMonth[key] = h
		}
		if m.Direction == ledger.DirectionIn {
			h.Inflow = h.Inflow.Add(m.Amount.Abs())
		} else {
			h.Outflow = h.Outflow.Add(m.Amount.Abs())
		}
	}

	history := make([]report.MonthlyHistory, 0, projectionHistoryMonths)
	cursor := start
	for cursor.Before(end) {
		if h := byMonth[cursor.Format("2006-01")]; h != nil {
			history = append(history, *h)
		}
		cursor = cursor.AddDate(0, 1, 0)
	}
	return history, nil
}

// titleOrigin maps the title kind to its ledger origin
func titleOrigin(kind report.TitleKind) ledger.Origin {
	if kind == report.TitlePayable {
		return ledger.OriginPayable
	}
	return ledger.OriginReceivable
}

// titleDirection maps the title kind to the settlement direction
func titleDirection(kind report.TitleKind) ledger.Direction {
	if kind == report.TitlePayable {
		return ledger.DirectionOut
	}
	return ledger.DirectionIn
}
