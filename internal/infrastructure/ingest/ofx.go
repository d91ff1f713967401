package ingest

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OFXTransaction is one bank-statement entry from an OFX file
type OFXTransaction struct {
	FITID  string
	Date   time.Time
	Amount decimal.Decimal
	Memo   string
	// Debit reports whether the amount sign marks money leaving the account
	Debit bool
}

// ParseOFX reads bank-statement transactions from an OFX stream. OFX files
// in the wild are SGML-ish: tags open without closing pairs and values run
// to end of line, so this is a line scanner keyed on the STMTTRN blocks
// rather than an XML parse. Transactions missing a date or FITID are
// dropped; nothing fails the whole file short of a read error.
func ParseOFX(r io.Reader) ([]OFXTransaction, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var txs []OFXTransaction
	var current *OFXTransaction
	var hasAmount bool

	flush := func() {
		if current != nil && current.FITID != "" && !current.Date.IsZero() && hasAmount {
			txs = append(txs, *current)
		}
		current = nil
		hasAmount = false
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "<STMTTRN>"):
			flush()
			current = &OFXTransaction{}
		case strings.HasPrefix(line, "</STMTTRN>"):
			flush()
		}
		if current == nil {
			continue
		}

		switch tag, value := splitOFXTag(line); tag {
		case "DTPOSTED":
			if t, ok := parseOFXDate(value); ok {
				current.Date = t
			}
		case "TRNAMT":
			if d, err := decimal.NewFromString(strings.ReplaceAll(value, ",", ".")); err == nil {
				current.Amount = d.Abs()
				current.Debit = d.IsNegative()
				hasAmount = true
			}
		case "FITID":
			current.FITID = value
		case "MEMO":
			if current.Memo == "" {
				current.Memo = value
			}
		case "NAME":
			if current.Memo == "" {
				current.Memo = value
			}
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

// splitOFXTag splits "<TAG>value" into its tag name and value. Lines that
// are not tags return an empty tag.
func splitOFXTag(line string) (tag, value string) {
	if !strings.HasPrefix(line, "<") {
		return "", ""
	}
	end := strings.IndexByte(line, '>')
	if end < 0 {
		return "", ""
	}
	tag = line[1:end]
	if strings.HasPrefix(tag, "/") {
		return "", ""
	}
	value = strings.TrimSpace(line[end+1:])
	// Closed-pair variant: "<MEMO>text</MEMO>"
	if i := strings.Index(value, "</"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return tag, value
}

// parseOFXDate reads DTPOSTED values in YYYYMMDD[HHMMSS][.XXX][[gmt offset]]
// form. Everything past the date-time digits, including the timezone
// suffix, is discarded.
func parseOFXDate(raw string) (time.Time, bool) {
	digits := raw
	if i := strings.IndexAny(digits, "[."); i >= 0 {
		digits = digits[:i]
	}
	if len(digits) >= 14 {
		if t, err := time.Parse("20060102150405", digits[:14]); err == nil {
			return t, true
		}
	}
	if len(digits) >= 8 {
		if t, err := time.Parse("20060102", digits[:8]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
