// Package tabular parses header-first tabular documents (CSV, XLSX) into raw
// record batches.
//
// Header cells are normalized with NormalizeHeader. Every row is zipped with
// the header positionally; a row with a different number of cells than the
// header aborts the whole parse.
package tabular

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/JonMunkholm/statements/internal/core"
)

// ErrFieldCount is the cause of a ParseError for rows whose length differs
// from the header's.
var ErrFieldCount = csv.ErrFieldCount

// ParseError reports where a document stopped parsing.
type ParseError struct {
	Line   int // 1-based line (CSV) or row (XLSX)
	Column int // 1-based column, 0 if unknown
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("line %d, column %d: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NormalizeHeader lowercases a header cell and replaces spaces with
// underscores. Applying it twice gives the same result as applying it once.
func NormalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(h), " ", "_")
}

// NormalizeHeaders applies NormalizeHeader to every cell of a header row.
func NormalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = NormalizeHeader(h)
	}
	return out
}

// Parser implements core.TabularParser for CSV and XLSX.
type Parser struct {
	// Sheet selects the XLSX sheet to read. Empty means the first sheet.
	Sheet string
}

// Parse dispatches on format.
func (p Parser) Parse(format core.Format, data []byte) (core.RawBatch, error) {
	switch format {
	case core.FormatCSV, "":
		return ParseCSVBytes(data)
	case core.FormatXLSX:
		return ParseXLSXSheet(data, p.Sheet)
	default:
		return nil, fmt.Errorf("unsupported tabular format %q", format)
	}
}
