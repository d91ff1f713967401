package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgingBucket labels how overdue an open item is
type AgingBucket string

const (
	BucketCurrent AgingBucket = "CURRENT" // Not yet due
	Bucket1To30   AgingBucket = "1_30"
	Bucket31To60  AgingBucket = "31_60"
	Bucket61To90  AgingBucket = "61_90"
	BucketOver90  AgingBucket = "OVER_90"
)

// Buckets returns all buckets in display order
func Buckets() []AgingBucket {
	return []AgingBucket{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, BucketOver90}
}

// DelinquencySeverity grades the portfolio delinquency ratio
type DelinquencySeverity string

const (
	SeverityNormal   DelinquencySeverity = "NORMAL"
	SeverityHigh     DelinquencySeverity = "HIGH"     // Ratio above 20%
	SeverityCritical DelinquencySeverity = "CRITICAL" // Ratio above 30%
)

// OpenItemStatus is the settlement state of a receivable/payable item
type OpenItemStatus string

const (
	OpenItemOpen      OpenItemStatus = "OPEN"
	OpenItemPaid      OpenItemStatus = "PAID"
	OpenItemCancelled OpenItemStatus = "CANCELLED"
)

// OpenItem is a receivable or payable installment feeding the aging report
type OpenItem struct {
	ClientName string
	DueDate    time.Time
	Amount     decimal.Decimal
	Status     OpenItemStatus
}

// DaysOverdue returns floor((today - due) in days); zero or negative means
// the item is not yet due.
func (i OpenItem) DaysOverdue(today time.Time) int {
	return int(today.Sub(i.DueDate).Hours() / 24)
}

// BucketFor places a days-overdue count into its aging bucket. An item due
// exactly 30 days ago falls in 1-30; exactly 31 days ago falls in 31-60.
func BucketFor(daysOverdue int) AgingBucket {
	switch {
	case daysOverdue <= 0:
		return BucketCurrent
	case daysOverdue <= 30:
		return Bucket1To30
	case daysOverdue <= 60:
		return Bucket31To60
	case daysOverdue <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

// AgingReport is the bucketed view of open items plus the portfolio
// delinquency signal
type AgingReport struct {
	Totals      map[AgingBucket]decimal.Decimal `json:"totals"`
	Counts      map[AgingBucket]int             `json:"counts"`
	TotalOpen   decimal.Decimal                 `json:"total_open"`
	TotalAmount decimal.Decimal                 `json:"total_amount"` // All non-cancelled
	Overdue     decimal.Decimal                 `json:"overdue"`
	Ratio       decimal.Decimal                 `json:"ratio"` // Overdue / all non-cancelled
	Severity    DelinquencySeverity             `json:"severity"`
}

// BuildAging buckets open items as of today and computes the delinquency
// ratio: sum(overdue open amounts) / sum(all non-cancelled amounts).
func BuildAging(items []OpenItem, today time.Time) *AgingReport {
	report := &AgingReport{
		Totals: make(map[AgingBucket]decimal.Decimal),
		Counts: make(map[AgingBucket]int),
	}
	for _, b := range Buckets() {
		report.Totals[b] = decimal.Zero
	}

	for _, item := range items {
		if item.Status == OpenItemCancelled {
			continue
		}
		report.TotalAmount = report.TotalAmount.Add(item.Amount)

		if item.Status != OpenItemOpen {
			continue
		}
		report.TotalOpen = report.TotalOpen.Add(item.Amount)

		bucket := BucketFor(item.DaysOverdue(today))
		report.Totals[bucket] = report.Totals[bucket].Add(item.Amount)
		report.Counts[bucket]++
		if bucket != BucketCurrent {
			report.Overdue = report.Overdue.Add(item.Amount)
		}
	}

	report.Severity = SeverityNormal
	if report.TotalAmount.IsPositive() {
		report.Ratio = report.Overdue.Div(report.TotalAmount).Round(4)
		switch {
		case report.Ratio.GreaterThan(decimal.NewFromFloat(0.30)):
			report.Severity = SeverityCritical
		case report.Ratio.GreaterThan(decimal.NewFromFloat(0.20)):
			report.Severity = SeverityHigh
		}
	}

	return report
}
