package ingest

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseBRDecimal parses a numeric cell tolerating Brazilian currency
// formatting: "R$ 1.234,56" becomes 1234.56. Currency symbols, whitespace
// and thousands separators are stripped, the decimal comma becomes a point.
// Malformed cells yield zero, never an error; row-level numeric noise must
// not abort a batch.
func ParseBRDecimal(raw string) decimal.Decimal {
	d, _ := ParseBRDecimalStrict(raw)
	return d
}

// ParseBRDecimalStrict is ParseBRDecimal reporting whether the cell held a
// parseable number. Callers that need to distinguish "0" from "garbage"
// use this variant.
func ParseBRDecimalStrict(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}

	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, "r$", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	if strings.Contains(s, ",") {
		// Brazilian format: dots are thousands separators, comma is decimal
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else if dots := strings.Count(s, "."); dots > 1 {
		// "1.234.567" with no comma: thousands separators only
		s = strings.ReplaceAll(s, ".", "")
	} else if i := strings.IndexByte(s, '.'); dots == 1 && i > 0 && len(s)-i-1 == 3 {
		// A lone dot with exactly three digits after it is a thousands
		// separator in these reports: "1.234" is 1234, not 1.234. Decimal
		// amounts always come with a comma or two decimal places.
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// ParseBRInt parses an integer cell with the same tolerance, truncating any
// fractional part. Malformed cells yield zero.
func ParseBRInt(raw string) int {
	d, ok := ParseBRDecimalStrict(raw)
	if !ok {
		return 0
	}
	return int(d.IntPart())
}

// dateLayouts are tried in order. Brazilian day-first layouts come before
// ISO so an ambiguous "03/04/2024" reads as April 3rd.
var dateLayouts = []struct {
	layout    string
	shortYear bool
}{
	{"02/01/2006", false},
	{"2006-01-02", false},
	{"02-01-2006", false},
	{"02.01.2006", false},
	{"02/01/06", true},
	{"02-01-06", true},
	{"02.01.06", true},
	{"2006-01-02T15:04:05", false},
	{"02/01/2006 15:04:05", false},
	{"02/01/2006 15:04", false},
}

// ParseBRDate parses a date cell accepting DD/MM/YYYY, YYYY-MM-DD,
// DD-MM-YYYY, DD.MM.YYYY and 2-digit-year variants. Two-digit years land in
// the 2000s. Dates outside the 2000..2100 year range are rejected so typos
// do not poison period detection.
func ParseBRDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	for _, dl := range dateLayouts {
		t, err := time.Parse(dl.layout, s)
		if err != nil {
			continue
		}
		// Go reads two-digit years 69..99 as 19xx; these files only ever
		// carry 2000s dates.
		if dl.shortYear && t.Year() < 2000 {
			t = t.AddDate(100, 0, 0)
		}
		if t.Year() < 2000 || t.Year() > 2100 {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
