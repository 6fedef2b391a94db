package tabular

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/statements/internal/core"
)

// ParseXLSX reads the first sheet of a workbook whose first row is the header.
func ParseXLSX(data []byte) (core.RawBatch, error) {
	return ParseXLSXSheet(data, "")
}

// ParseXLSXSheet reads the named sheet, or the first sheet if name is empty.
//
// The workbook format drops trailing empty cells, so rows shorter than the
// header are padded with empty strings. Rows longer than the header are an
// error. Rows with no cells are skipped.
func ParseXLSXSheet(data []byte, name string) (core.RawBatch, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := name
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return core.RawBatch{}, nil
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	headerIdx := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return core.RawBatch{}, nil
	}

	headers := NormalizeHeaders(rows[headerIdx])
	batch := core.RawBatch{}

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		if len(row) > len(headers) {
			return nil, &ParseError{
				Line: i + 1,
				Err:  fmt.Errorf("%w: %d cells, header has %d", ErrFieldCount, len(row), len(headers)),
			}
		}
		cells := make([]string, len(headers))
		copy(cells, row)
		batch = append(batch, core.NewRawRecord(headers, cells))
	}

	return batch, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
