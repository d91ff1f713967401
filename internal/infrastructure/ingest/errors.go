package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// Row-level error codes surfaced in import summaries
const (
	ErrCodeMalformedRow   = "ERR_INGEST_MALFORMED_ROW"
	ErrCodeMissingField   = "ERR_INGEST_MISSING_FIELD"
	ErrCodeInvalidNumber  = "ERR_INGEST_INVALID_NUMBER"
	ErrCodeInvalidDate    = "ERR_INGEST_INVALID_DATE"
	ErrCodePersistFailure = "ERR_INGEST_PERSIST_FAILURE"
)

// Structural errors that abort ingestion of the whole file
var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrInvalidEncoding = errors.New("invalid file encoding, expected UTF-8")
	ErrMissingHeader   = errors.New("file missing header row")
	ErrNoDataRows      = errors.New("file contains no data rows")
	ErrNoDateColumn    = errors.New("no recognizable date column found")
)

// RowError records a parse or persist failure for one row. Row errors never
// abort the batch; they accumulate in an ErrorCollection.
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// NewRowError creates a RowError
func NewRowError(row int, column, code, message string) RowError {
	return RowError{Row: row, Column: column, Code: code, Message: message}
}

// ErrorCollection accumulates row errors up to a cap, keeping the total
// count accurate past the cap so summaries stay honest on very bad files.
type ErrorCollection struct {
	errors     []RowError
	maxErrors  int
	totalCount int
}

// NewErrorCollection creates a collection keeping at most maxErrors examples
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorCollection{
		errors:    make([]RowError, 0, maxErrors),
		maxErrors: maxErrors,
	}
}

// Add records an error, keeping the example only while under the cap
func (ec *ErrorCollection) Add(err RowError) {
	ec.totalCount++
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// Errors returns the collected examples
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// TotalCount returns the total number of errors including dropped examples
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// HasErrors reports whether any error was recorded
func (ec *ErrorCollection) HasErrors() bool {
	return ec.totalCount > 0
}

// IsTruncated reports whether some examples were dropped
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.totalCount > ec.maxErrors
}

func (ec *ErrorCollection) String() string {
	if !ec.HasErrors() {
		return "no errors"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d error(s) found", ec.totalCount))
	if ec.IsTruncated() {
		sb.WriteString(fmt.Sprintf(" (showing first %d)", ec.maxErrors))
	}
	sb.WriteString(":\n")
	for _, err := range ec.errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}
