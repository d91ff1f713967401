package report

import (
	"github.com/shopspring/decimal"
)

// Scenario names the three projection scenarios
type Scenario string

const (
	ScenarioOptimistic  Scenario = "OPTIMISTIC"
	ScenarioRealistic   Scenario = "REALISTIC"
	ScenarioPessimistic Scenario = "PESSIMISTIC"
)

// scenarioFactor holds the revenue/cost multipliers of a scenario
type scenarioFactor struct {
	revenue decimal.Decimal
	cost    decimal.Decimal
}

var scenarioFactors = map[Scenario]scenarioFactor{
	ScenarioOptimistic:  {revenue: decimal.NewFromFloat(1.20), cost: decimal.NewFromFloat(0.90)},
	ScenarioRealistic:   {revenue: decimal.NewFromFloat(1.05), cost: decimal.NewFromFloat(1.00)},
	ScenarioPessimistic: {revenue: decimal.NewFromFloat(0.85), cost: decimal.NewFromFloat(1.05)},
}

// MonthlyHistory is one month of accrual-regime inflow/outflow
type MonthlyHistory struct {
	Year    int
	Month   int
	Inflow  decimal.Decimal
	Outflow decimal.Decimal
}

// ProjectedMonth is one projected month under a scenario
type ProjectedMonth struct {
	MonthIndex int             `json:"month_index"` // 1-based from the projection start
	Revenue    decimal.Decimal `json:"revenue"`
	Cost       decimal.Decimal `json:"cost"`
	Result     decimal.Decimal `json:"result"`
}

// Projection is the N-month forward projection for all three scenarios
type Projection struct {
	BaseRevenue decimal.Decimal               `json:"base_revenue"` // Monthly average of the trailing history
	BaseCost    decimal.Decimal               `json:"base_cost"`
	Scenarios   map[Scenario][]ProjectedMonth `json:"scenarios"`
}

// BuildProjection projects months forward from the trailing accrual history.
// Each scenario applies its revenue/cost multipliers to the monthly average,
// and every scenario's revenue compounds by (1 + 0.02*monthIndex).
func BuildProjection(history []MonthlyHistory, months int) *Projection {
	avgIn, avgOut := decimal.Zero, decimal.Zero
	if len(history) > 0 {
		n := decimal.NewFromInt(int64(len(history)))
		for _, h := range history {
			avgIn = avgIn.Add(h.Inflow)
			avgOut = avgOut.Add(h.Outflow)
		}
		avgIn = avgIn.Div(n)
		avgOut = avgOut.Div(n)
	}

	proj := &Projection{
		BaseRevenue: avgIn.Round(2),
		BaseCost:    avgOut.Round(2),
		Scenarios:   make(map[Scenario][]ProjectedMonth),
	}

	for scenario, factor := range scenarioFactors {
		series := make([]ProjectedMonth, 0, months)
		for i := 1; i <= months; i++ {
			growth := decimal.NewFromFloat(1).Add(
				decimal.NewFromFloat(0.02).Mul(decimal.NewFromInt(int64(i))))
			revenue := avgIn.Mul(factor.revenue).Mul(growth).Round(2)
			cost := avgOut.Mul(factor.cost).Round(2)
			series = append(series, ProjectedMonth{
				MonthIndex: i,
				Revenue:    revenue,
				Cost:       cost,
				Result:     revenue.Sub(cost),
			})
		}
		proj.Scenarios[scenario] = series
	}

	return proj
}
