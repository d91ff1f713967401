package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Row is one data row of a tabular source, keyed by header name. LineNumber
// is 1-indexed counting the header as line 1.
type Row struct {
	LineNumber int
	Data       map[string]string
	RawFields  []string
}

// Get returns the trimmed cell value for a header, empty when absent
func (r *Row) Get(header string) string {
	return r.Data[header]
}

// IsEmpty reports whether every cell in the row is blank
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// Table is the format-independent result of reading a tabular file: the
// header row plus all non-empty data rows. CSV and XLSX readers both
// produce a Table so everything downstream is format-agnostic.
type Table struct {
	Headers []string
	Rows    []*Row
}

// CSVOption configures the CSV reader
type CSVOption func(*csvConfig)

type csvConfig struct {
	delimiter rune
}

// WithDelimiter overrides the field delimiter (default comma). Some
// marketplace exports use semicolons.
func WithDelimiter(d rune) CSVOption {
	return func(c *csvConfig) { c.delimiter = d }
}

// ReadCSV parses a CSV stream into a Table. The reader strips a UTF-8 BOM,
// validates the encoding, tolerates variable field counts and lazy quotes,
// and skips fully empty rows.
func ReadCSV(r io.Reader, opts ...CSVOption) (*Table, error) {
	cfg := &csvConfig{delimiter: ','}
	for _, opt := range opts {
		opt(cfg)
	}

	buf := bufio.NewReader(r)

	head, err := buf.Peek(3)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = buf.Discard(3)
	}

	if err := validateUTF8(buf); err != nil {
		return nil, err
	}

	reader := csv.NewReader(buf)
	reader.Comma = cfg.delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	table := &Table{Headers: make([]string, len(header))}
	for i, h := range header {
		table.Headers[i] = strings.TrimSpace(h)
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return table, fmt.Errorf("error reading row %d: %w", line, err)
		}

		row := &Row{
			LineNumber: line,
			Data:       make(map[string]string, len(table.Headers)),
			RawFields:  record,
		}
		for i, h := range table.Headers {
			if i < len(record) {
				row.Data[h] = strings.TrimSpace(record[i])
			} else {
				row.Data[h] = ""
			}
		}
		if row.IsEmpty() {
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// ReadCSVBytes parses an in-memory CSV payload
func ReadCSVBytes(data []byte, opts ...CSVOption) (*Table, error) {
	return ReadCSV(bytes.NewReader(data), opts...)
}

func validateUTF8(r *bufio.Reader) error {
	const checkSize = 4096
	content, err := r.Peek(checkSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file for encoding validation: %w", err)
	}
	if len(content) == 0 {
		return ErrEmptyFile
	}
	// The peek boundary can split a multi-byte rune; allow up to three
	// trailing bytes to be incomplete before rejecting the file.
	if len(content) == checkSize {
		for trim := 0; trim < 4; trim++ {
			if utf8.Valid(content[:len(content)-trim]) {
				return nil
			}
		}
		return ErrInvalidEncoding
	}
	if !utf8.Valid(content) {
		return ErrInvalidEncoding
	}
	return nil
}
