package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"

	"github.com/JonMunkholm/statements/internal/core"
)

// ParseCSV reads a comma-separated document whose first row is the header.
//
// Empty input yields an empty batch. Blank lines are skipped. A quote inside
// an unquoted field is kept as a literal character. On any error no records
// are returned.
func ParseCSV(r io.Reader) (core.RawBatch, error) {
	cr := csv.NewReader(Sanitize(r))
	cr.ReuseRecord = false
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return core.RawBatch{}, nil
	}
	if err != nil {
		return nil, toParseError(err, 1)
	}
	headers := NormalizeHeaders(header)
	cr.FieldsPerRecord = len(headers)

	batch := core.RawBatch{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, toParseError(err, line)
		}
		batch = append(batch, core.NewRawRecord(headers, row))
	}

	return batch, nil
}

// ParseCSVBytes is ParseCSV over an in-memory document.
func ParseCSVBytes(data []byte) (core.RawBatch, error) {
	return ParseCSV(bytes.NewReader(data))
}

func toParseError(err error, line int) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Column: columnFor(pe), Err: pe.Err}
	}
	return &ParseError{Line: line, Err: err}
}

// columnFor drops the column for field count errors, where the csv package
// reports the position of the first field rather than a meaningful column.
func columnFor(pe *csv.ParseError) int {
	if errors.Is(pe.Err, csv.ErrFieldCount) {
		return 0
	}
	return pe.Column
}
