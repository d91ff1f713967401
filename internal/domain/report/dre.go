package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one categorized amount feeding the DRE aggregation: a reconciled
// transaction or accrual movement already resolved to a category.
type Entry struct {
	CategoryName string
	Type         CategoryType
	Amount       decimal.Decimal
}

// Line is one DRE line with its per-category drill-down
type Line struct {
	Type      CategoryType               `json:"type"`
	Total     decimal.Decimal            `json:"total"`
	Breakdown map[string]decimal.Decimal `json:"breakdown"`
}

// Statement is the income statement (DRE) for a period
type Statement struct {
	PeriodStart  time.Time       `json:"period_start"`
	PeriodEnd    time.Time       `json:"period_end"`
	GrossRevenue decimal.Decimal `json:"gross_revenue"`
	Deductions   decimal.Decimal `json:"deductions"`
	NetRevenue   decimal.Decimal `json:"net_revenue"`
	COGS         decimal.Decimal `json:"cogs"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	Expenses     decimal.Decimal `json:"expenses"`
	NetIncome    decimal.Decimal `json:"net_income"`
	Lines        []Line          `json:"lines"`
}

// BuildStatement aggregates categorized entries into a DRE. Amounts are
// summed as absolute values per type and per category within each type:
//
//	net_revenue  = gross_revenue - deductions
//	gross_profit = net_revenue - COGS
//	net_income   = gross_profit - sum(expense types)
func BuildStatement(periodStart, periodEnd time.Time, entries []Entry) *Statement {
	totals := make(map[CategoryType]decimal.Decimal)
	breakdowns := make(map[CategoryType]map[string]decimal.Decimal)

	for _, e := range entries {
		if !e.Type.IsValid() {
			continue
		}
		amount := e.Amount.Abs()
		totals[e.Type] = totals[e.Type].Add(amount)
		if breakdowns[e.Type] == nil {
			breakdowns[e.Type] = make(map[string]decimal.Decimal)
		}
		name := e.CategoryName
		if name == "" {
			name = "Sem categoria"
		}
		breakdowns[e.Type][name] = breakdowns[e.Type][name].Add(amount)
	}

	stmt := &Statement{
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		GrossRevenue: totals[CategoryRevenue],
		Deductions:   totals[CategoryDeductions],
		COGS:         totals[CategoryCOGS],
	}
	stmt.NetRevenue = stmt.GrossRevenue.Sub(stmt.Deductions)
	stmt.GrossProfit = stmt.NetRevenue.Sub(stmt.COGS)

	expenses := decimal.Zero
	for _, t := range ExpenseTypes() {
		expenses = expenses.Add(totals[t])
	}
	stmt.Expenses = expenses
	stmt.NetIncome = stmt.GrossProfit.Sub(expenses)

	lineOrder := []CategoryType{
		CategoryRevenue, CategoryDeductions, CategoryCOGS,
		CategoryOperating, CategoryPayroll, CategoryAdministrative,
		CategoryMarketing, CategoryFinancial, CategoryTaxes,
	}
	for _, t := range lineOrder {
		breakdown := breakdowns[t]
		if breakdown == nil {
			breakdown = make(map[string]decimal.Decimal)
		}
		stmt.Lines = append(stmt.Lines, Line{Type: t, Total: totals[t], Breakdown: breakdown})
	}

	return stmt
}
