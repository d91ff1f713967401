package ingest

import (
	"time"
)

// periodSampleLimit caps how many rows the checks inspect. Sampling keeps
// pre-upload checks cheap on large files.
const periodSampleLimit = 100

// PeriodCheck is the result of comparing a file's dominant period against
// the period the user is closing. A mismatch is a warning, never a block.
type PeriodCheck struct {
	Valid         bool       `json:"valido"`
	DetectedMonth int        `json:"detected_month"`
	DetectedYear  int        `json:"detected_year"`
	ExpectedMonth int        `json:"expected_month"`
	ExpectedYear  int        `json:"expected_year"`
	SampledRows   int        `json:"sampled_rows"`
	RowsWithDates int        `json:"rows_with_dates"`
	MinDate       *time.Time `json:"min_date,omitempty"`
	MaxDate       *time.Time `json:"max_date,omitempty"`
}

// CheckPeriod samples up to 100 records, finds the most frequent
// (month, year) pair among their dates and compares it to the expected
// period. Records without a parseable date are skipped from the sample but
// do not fail the check. A file with no dated rows at all is reported as
// not valid because nothing can be confirmed about it.
func CheckPeriod(records []*Record, expectedMonth, expectedYear int) *PeriodCheck {
	check := &PeriodCheck{
		ExpectedMonth: expectedMonth,
		ExpectedYear:  expectedYear,
	}

	type monthYear struct {
		month int
		year  int
	}
	counts := make(map[monthYear]int)

	for _, r := range records {
		if check.SampledRows >= periodSampleLimit {
			break
		}
		check.SampledRows++
		if r.Date == nil {
			continue
		}
		check.RowsWithDates++

		d := *r.Date
		counts[monthYear{int(d.Month()), d.Year()}]++

		if check.MinDate == nil || d.Before(*check.MinDate) {
			check.MinDate = r.Date
		}
		if check.MaxDate == nil || d.After(*check.MaxDate) {
			check.MaxDate = r.Date
		}
	}

	if check.RowsWithDates == 0 {
		return check
	}

	var dominant monthYear
	best := 0
	for my, n := range counts {
		if n > best {
			dominant = my
			best = n
		}
	}

	check.DetectedMonth = dominant.month
	check.DetectedYear = dominant.year
	check.Valid = dominant.month == expectedMonth && dominant.year == expectedYear
	return check
}
