// Package ingest turns marketplace report files and bank statements into
// normalized records. Parsing is a pure transform: no persistence happens
// here, and row-level noise accumulates as errors instead of aborting.
package ingest

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format is a supported upload file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatOFX  Format = "ofx"
)

// DetectFormat maps a file name to its format by extension
func DetectFormat(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xls":
		return FormatXLSX, nil
	case ".ofx":
		return FormatOFX, nil
	default:
		return "", fmt.Errorf("unsupported file format: %s", filepath.Ext(fileName))
	}
}

// ReadTable reads a tabular upload (CSV or XLSX) into a Table. OFX files
// are not tabular; callers route them to ParseOFX instead.
func ReadTable(fileName string, r io.Reader) (*Table, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatXLSX:
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("file format %s is not tabular", format)
	}
}
