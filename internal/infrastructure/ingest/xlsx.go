package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX parses the first sheet of an Excel workbook into a Table. Like
// the CSV reader it trims cells and drops fully empty rows. Marketplace
// exports occasionally pad the top of the sheet; rows before the first
// non-empty one are skipped and that row becomes the header.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	// Find the header: first row with any non-blank cell
	headerIdx := -1
	for i, cells := range rows {
		for _, c := range cells {
			if strings.TrimSpace(c) != "" {
				headerIdx = i
				break
			}
		}
		if headerIdx >= 0 {
			break
		}
	}
	if headerIdx < 0 {
		return nil, ErrMissingHeader
	}

	table := &Table{Headers: make([]string, len(rows[headerIdx]))}
	for i, h := range rows[headerIdx] {
		table.Headers[i] = strings.TrimSpace(h)
	}

	for i := headerIdx + 1; i < len(rows); i++ {
		row := &Row{
			LineNumber: i + 1,
			Data:       make(map[string]string, len(table.Headers)),
			RawFields:  rows[i],
		}
		for j, h := range table.Headers {
			if h == "" {
				continue
			}
			if j < len(rows[i]) {
				row.Data[h] = strings.TrimSpace(rows[i][j])
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
