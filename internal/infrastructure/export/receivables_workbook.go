package export

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ecomfin/backend/internal/domain/report"
	"github.com/ecomfin/backend/internal/domain/shared/valueobject"
)

const (
	sheetListing  = "Títulos"
	sheetAging    = "Aging"
	sheetClients  = "Por Cliente"
	sheetForecast = "Previsão"
	sheetSummary  = "Resumo"

	dateFormat     = "dd/mm/yyyy"
	currencyFormat = `"R$" #,##0.00`
)

var bucketLabels = map[report.AgingBucket]string{
	report.BucketCurrent: "A vencer",
	report.Bucket1To30:   "1 a 30 dias",
	report.Bucket31To60:  "31 a 60 dias",
	report.Bucket61To90:  "61 a 90 dias",
	report.BucketOver90:  "Acima de 90 dias",
}

var statusLabels = map[report.OpenItemStatus]string{
	report.OpenItemOpen:      "Em aberto",
	report.OpenItemPaid:      "Pago",
	report.OpenItemCancelled: "Cancelado",
}

// ReceivablesData is everything the receivables workbook renders
type ReceivablesData struct {
	CompanyName string
	GeneratedAt time.Time
	Items       []report.OpenItem
	Aging       *report.AgingReport
	Projection  *report.Projection
}

// ReceivablesWorkbookBuilder renders the accounts receivable workbook
type ReceivablesWorkbookBuilder struct{}

// NewReceivablesWorkbookBuilder creates a builder
func NewReceivablesWorkbookBuilder() *ReceivablesWorkbookBuilder {
	return &ReceivablesWorkbookBuilder{}
}

type workbookStyles struct {
	header   int
	date     int
	currency int
}

// Build produces the multi-sheet workbook. The caller owns the returned
// file and is responsible for closing it.
func (b *ReceivablesWorkbookBuilder) Build(data ReceivablesData) (*excelize.File, error) {
	f := excelize.NewFile()

	styles, err := newWorkbookStyles(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create workbook styles: %w", err)
	}

	f.SetSheetName("Sheet1", sheetListing)
	for _, sheet := range []string{sheetAging, sheetClients, sheetForecast, sheetSummary} {
		if _, err := f.NewSheet(sheet); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
	}

	if err := b.fillListing(f, styles, data); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := b.fillAging(f, styles, data.Aging); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := b.fillClients(f, styles, data); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := b.fillForecast(f, styles, data.Projection); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := b.fillSummary(f, data); err != nil {
		_ = f.Close()
		return nil, err
	}

	idx, err := f.GetSheetIndex(sheetListing)
	if err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

func newWorkbookStyles(f *excelize.File) (workbookStyles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return workbookStyles{}, err
	}

	dateFmt := dateFormat
	date, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return workbookStyles{}, err
	}

	currencyFmt := currencyFormat
	currency, err := f.NewStyle(&excelize.Style{CustomNumFmt: &currencyFmt})
	if err != nil {
		return workbookStyles{}, err
	}

	return workbookStyles{header: header, date: date, currency: currency}, nil
}

func (b *ReceivablesWorkbookBuilder) fillListing(f *excelize.File, styles workbookStyles, data ReceivablesData) error {
	writeHeaderRow(f, sheetListing, styles.header, []string{
		"Cliente", "Vencimento", "Valor", "Situação", "Dias em atraso",
	})

	today := data.GeneratedAt
	items := make([]report.OpenItem, len(data.Items))
	copy(items, data.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DueDate.Before(items[j].DueDate)
	})

	for i, item := range items {
		row := i + 2
		f.SetCellValue(sheetListing, fmt.Sprintf("A%d", row), item.ClientName)
		f.SetCellValue(sheetListing, fmt.Sprintf("B%d", row), item.DueDate)
		f.SetCellValue(sheetListing, fmt.Sprintf("C%d", row), item.Amount.InexactFloat64())
		f.SetCellValue(sheetListing, fmt.Sprintf("D%d", row), statusLabel(item.Status))

		if item.Status == report.OpenItemOpen {
			if overdue := item.DaysOverdue(today); overdue > 0 {
				f.SetCellValue(sheetListing, fmt.Sprintf("E%d", row), overdue)
			}
		}
	}

	lastRow := len(items) + 1
	if lastRow >= 2 {
		f.SetCellStyle(sheetListing, "B2", fmt.Sprintf("B%d", lastRow), styles.date)
		f.SetCellStyle(sheetListing, "C2", fmt.Sprintf("C%d", lastRow), styles.currency)
	}

	f.SetColWidth(sheetListing, "A", "A", 35)
	f.SetColWidth(sheetListing, "B", "E", 16)
	return nil
}

func (b *ReceivablesWorkbookBuilder) fillAging(f *excelize.File, styles workbookStyles, aging *report.AgingReport) error {
	writeHeaderRow(f, sheetAging, styles.header, []string{"Faixa", "Títulos", "Valor"})

	row := 2
	for _, bucket := range report.Buckets() {
		f.SetCellValue(sheetAging, fmt.Sprintf("A%d", row), bucketLabels[bucket])
		if aging != nil {
			f.SetCellValue(sheetAging, fmt.Sprintf("B%d", row), aging.Counts[bucket])
			f.SetCellValue(sheetAging, fmt.Sprintf("C%d", row), aging.Totals[bucket].InexactFloat64())
		}
		row++
	}

	f.SetCellValue(sheetAging, fmt.Sprintf("A%d", row), "Total em aberto")
	if aging != nil {
		f.SetCellValue(sheetAging, fmt.Sprintf("C%d", row), aging.TotalOpen.InexactFloat64())
	}

	f.SetCellStyle(sheetAging, "C2", fmt.Sprintf("C%d", row), styles.currency)
	f.SetColWidth(sheetAging, "A", "A", 22)
	f.SetColWidth(sheetAging, "B", "C", 16)
	return nil
}

type clientSummary struct {
	name    string
	total   decimal.Decimal
	open    decimal.Decimal
	overdue decimal.Decimal
}

func (b *ReceivablesWorkbookBuilder) fillClients(f *excelize.File, styles workbookStyles, data ReceivablesData) error {
	writeHeaderRow(f, sheetClients, styles.header, []string{
		"Cliente", "Total", "Em aberto", "Vencido",
	})

	byName := make(map[string]*clientSummary)
	for _, item := range data.Items {
		if item.Status == report.OpenItemCancelled {
			continue
		}
		s, ok := byName[item.ClientName]
		if !ok {
			s = &clientSummary{name: item.ClientName}
			byName[item.ClientName] = s
		}
		s.total = s.total.Add(item.Amount)
		if item.Status == report.OpenItemOpen {
			s.open = s.open.Add(item.Amount)
			if item.DaysOverdue(data.GeneratedAt) > 0 {
				s.overdue = s.overdue.Add(item.Amount)
			}
		}
	}

	clients := make([]*clientSummary, 0, len(byName))
	for _, s := range byName {
		clients = append(clients, s)
	}
	// Worst debtors first
	sort.SliceStable(clients, func(i, j int) bool {
		if !clients[i].overdue.Equal(clients[j].overdue) {
			return clients[i].overdue.GreaterThan(clients[j].overdue)
		}
		return clients[i].name < clients[j].name
	})

	for i, s := range clients {
		row := i + 2
		f.SetCellValue(sheetClients, fmt.Sprintf("A%d", row), s.name)
		f.SetCellValue(sheetClients, fmt.Sprintf("B%d", row), s.total.InexactFloat64())
		f.SetCellValue(sheetClients, fmt.Sprintf("C%d", row), s.open.InexactFloat64())
		f.SetCellValue(sheetClients, fmt.Sprintf("D%d", row), s.overdue.InexactFloat64())
	}

	lastRow := len(clients) + 1
	if lastRow >= 2 {
		f.SetCellStyle(sheetClients, "B2", fmt.Sprintf("D%d", lastRow), styles.currency)
	}

	f.SetColWidth(sheetClients, "A", "A", 35)
	f.SetColWidth(sheetClients, "B", "D", 16)
	return nil
}

func (b *ReceivablesWorkbookBuilder) fillForecast(f *excelize.File, styles workbookStyles, proj *report.Projection) error {
	writeHeaderRow(f, sheetForecast, styles.header, []string{
		"Mês", "Cenário", "Receita", "Custo", "Resultado",
	})

	if proj == nil {
		return nil
	}

	scenarios := []struct {
		key   report.Scenario
		label string
	}{
		{report.ScenarioOptimistic, "Otimista"},
		{report.ScenarioRealistic, "Realista"},
		{report.ScenarioPessimistic, "Pessimista"},
	}

	row := 2
	for _, sc := range scenarios {
		for _, month := range proj.Scenarios[sc.key] {
			f.SetCellValue(sheetForecast, fmt.Sprintf("A%d", row), month.MonthIndex)
			f.SetCellValue(sheetForecast, fmt.Sprintf("B%d", row), sc.label)
			f.SetCellValue(sheetForecast, fmt.Sprintf("C%d", row), month.Revenue.InexactFloat64())
			f.SetCellValue(sheetForecast, fmt.Sprintf("D%d", row), month.Cost.InexactFloat64())
			f.SetCellValue(sheetForecast, fmt.Sprintf("E%d", row), month.Result.InexactFloat64())
			row++
		}
	}

	if row > 2 {
		f.SetCellStyle(sheetForecast, "C2", fmt.Sprintf("E%d", row-1), styles.currency)
	}
	f.SetColWidth(sheetForecast, "A", "E", 14)
	return nil
}

func (b *ReceivablesWorkbookBuilder) fillSummary(f *excelize.File, data ReceivablesData) error {
	rows := [][]interface{}{
		{"Empresa", data.CompanyName},
		{"Gerado em", data.GeneratedAt.Format("02/01/2006")},
		{"Títulos", len(data.Items)},
	}
	if data.Aging != nil {
		ratioPct := data.Aging.Ratio.Mul(decimal.NewFromInt(100)).Round(2)
		rows = append(rows,
			[]interface{}{"Total em aberto", valueobject.NewMoneyBRL(data.Aging.TotalOpen).Display()},
			[]interface{}{"Total vencido", valueobject.NewMoneyBRL(data.Aging.Overdue).Display()},
			[]interface{}{"Inadimplência", fmt.Sprintf("%s%%", ratioPct.StringFixed(2))},
			[]interface{}{"Severidade", severityLabel(data.Aging.Severity)},
		)
	}

	for i, pair := range rows {
		for j, val := range pair {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			f.SetCellValue(sheetSummary, cell, val)
		}
	}

	f.SetColWidth(sheetSummary, "A", "A", 22)
	f.SetColWidth(sheetSummary, "B", "B", 28)
	return nil
}

func writeHeaderRow(f *excelize.File, sheet string, style int, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	f.SetRowStyle(sheet, 1, 1, style)
}

func statusLabel(s report.OpenItemStatus) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

func severityLabel(s report.DelinquencySeverity) string {
	switch s {
	case report.SeverityCritical:
		return "Crítica"
	case report.SeverityHigh:
		return "Alta"
	default:
		return "Normal"
	}
}
