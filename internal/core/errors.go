package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDocument is returned when a JSON document is neither a record
	// batch nor a single record object.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrNoExtractor is returned when free-text content arrives and no text
	// extractor is configured.
	ErrNoExtractor = errors.New("no text extractor configured for free-text content")

	// ErrNoFetcher is returned by RunSource when the pipeline has no fetcher.
	ErrNoFetcher = errors.New("no fetcher configured")
)

// CastError reports a field that could not be converted to its target type.
type CastError struct {
	Provider string // provider tag of the record
	Index    int    // position of the record in its batch
	Field    string // field name, empty for shape errors
	Value    string // offending raw value
	Err      error  // underlying cause
}

func (e *CastError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("cast %s record %d: %v", e.Provider, e.Index, e.Err)
	}
	return fmt.Sprintf("cast %s record %d: field %q value %q: %v", e.Provider, e.Index, e.Field, e.Value, e.Err)
}

func (e *CastError) Unwrap() error {
	return e.Err
}

var (
	// ErrNotNumber is the cause of a CastError for non-numeric fields.
	ErrNotNumber = errors.New("invalid number")

	// ErrNotTimestamp is the cause of a CastError for unparsable dates.
	ErrNotTimestamp = errors.New("invalid timestamp")

	// ErrRecordShape is the cause of a CastError when a record does not have
	// exactly the fields its provider expects.
	ErrRecordShape = errors.New("unexpected record shape")
)
